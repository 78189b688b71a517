package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir string) {
	t.Helper()
	content := `{"projects":{"a":{"path":"a"},"b":{"path":"b"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".meta"), []byte(content), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
}

func TestRunFansOutWhenNoPluginClaimsCommand(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root)

	outcome, err := Run(Request{Cwd: root, CommandTokens: []string{"touch", "marker.txt"}})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.False(t, outcome.PluginHandled)
	require.Len(t, outcome.Results, 2)

	_, err = os.Stat(filepath.Join(root, "a", "marker.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "b", "marker.txt"))
	assert.NoError(t, err)
}

func TestRunFiltersByInclude(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root)

	outcome, err := Run(Request{Cwd: root, CommandTokens: []string{"touch", "only-a.txt"}, Include: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, "a", outcome.Results[0].Project)
}

func TestRunNoManifestErrorsUnlessBootstrapClone(t *testing.T) {
	root := t.TempDir()
	_, err := Run(Request{Cwd: root, CommandTokens: []string{"status"}})
	assert.Error(t, err)

	outcome, err := Run(Request{Cwd: root, CommandTokens: []string{"git", "clone", "https://example.com/r.git"}})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.False(t, outcome.PluginHandled)
}
