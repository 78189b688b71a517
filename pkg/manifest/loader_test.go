package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFindWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".meta", `{"projects":{}}`)
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	path, isYAML, err := Find(sub, "")
	require.NoError(t, err)
	assert.False(t, isYAML)
	assert.Equal(t, filepath.Join(root, ".meta"), path)
}

func TestFindNotFound(t *testing.T) {
	root := t.TempDir()
	_, _, err := Find(root, "")
	require.Error(t, err)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestParseJSONSimpleAndRecordForms(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".meta", `{
		"projects": {
			"core": "git@example.com:org/core.git",
			"app": {"repo": "git@example.com:org/app.git", "path": "apps/app", "tags": ["backend"], "depends_on": ["core"]}
		},
		"ignore": ["node_modules", "vendor"]
	}`)

	m, err := Parse(path, false)
	require.NoError(t, err)
	require.Len(t, m.Projects, 2)

	assert.Equal(t, ProjectInfo{Name: "core", Path: "core", Repo: "git@example.com:org/core.git"}, m.Projects[0])
	assert.Equal(t, "app", m.Projects[1].Name)
	assert.Equal(t, "apps/app", m.Projects[1].Path)
	assert.Equal(t, []string{"core"}, m.Projects[1].DependsOn)
	assert.Equal(t, []string{"node_modules", "vendor"}, m.Ignore)
}

func TestParseYAMLPreservesOrderAndDefaultsPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".meta.yaml", `
projects:
  zeta: git@example.com:org/zeta.git
  alpha:
    repo: git@example.com:org/alpha.git
    provides: ["x"]
ignore:
  - dist
`)

	m, err := Parse(path, true)
	require.NoError(t, err)
	require.Len(t, m.Projects, 2)
	assert.Equal(t, "zeta", m.Projects[0].Name)
	assert.Equal(t, "alpha", m.Projects[1].Name)
	assert.Equal(t, "alpha", m.Projects[1].Path)
	assert.Equal(t, []string{"x"}, m.Projects[1].Provides)
}

func TestParseDuplicateProjectNameFails(t *testing.T) {
	dir := t.TempDir()
	// The projects object is read token by token, so a key that appears
	// twice reaches the duplicate check instead of being collapsed the way
	// a map decode would collapse it.
	path := writeFile(t, dir, ".meta", `{"projects":{"core":"git@example.com:org/core.git","core":"git@example.com:org/other.git"}}`)
	_, err := Parse(path, false)
	require.Error(t, err)
	var dupErr *DuplicateProjectError
	assert.ErrorAs(t, err, &dupErr)
}

func TestParseReadError(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.meta"), false)
	require.Error(t, err)
	var readErr *ReadError
	assert.ErrorAs(t, err, &readErr)
}

func TestParseMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".meta", `{not valid json`)
	_, err := Parse(path, false)
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
