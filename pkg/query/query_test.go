package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaworkspace/meta/pkg/reposcan"
)

func TestParseAndMatchConjunction(t *testing.T) {
	q, err := Parse("dirty:true AND tag:backend AND branch:main")
	require.NoError(t, err)
	require.Len(t, q, 3)

	repo := reposcan.RepoState{IsDirty: true, Branch: "main", Tags: []string{"backend"}}
	assert.True(t, q.Matches(repo, time.Now()))

	q2, err := Parse("dirty:true AND tag:frontend")
	require.NoError(t, err)
	assert.False(t, q2.Matches(repo, time.Now()))
}

func TestParseCaseInsensitiveAND(t *testing.T) {
	q, err := Parse("dirty:true and branch:main")
	require.NoError(t, err)
	assert.Len(t, q, 2)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("not-a-condition")
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)

	_, err = Parse("unknownfield:true")
	require.Error(t, err)

	_, err = Parse("dirty:notabool")
	require.Error(t, err)
}

func TestModifiedInIgnoresUnknownLastCommitTime(t *testing.T) {
	q, err := Parse("modified_in:1d")
	require.NoError(t, err)
	assert.False(t, q.Matches(reposcan.RepoState{HasLastCommit: false}, time.Now()))

	recentRepo := reposcan.RepoState{HasLastCommit: true, LastCommitTime: time.Now().Add(-time.Hour)}
	assert.True(t, q.Matches(recentRepo, time.Now()))

	staleRepo := reposcan.RepoState{HasLastCommit: true, LastCommitTime: time.Now().Add(-72 * time.Hour)}
	assert.False(t, q.Matches(staleRepo, time.Now()))
}

func TestDurationUnits(t *testing.T) {
	cases := map[string]time.Duration{
		"30m": 30 * time.Minute,
		"2h":  2 * time.Hour,
		"5d":  5 * 24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for raw, want := range cases {
		got, err := parseDuration(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
