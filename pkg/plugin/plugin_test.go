package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakePlugin writes an executable shell script that answers the
// meta-plugin handshake, standing in for a real third-party plugin
// binary in tests.
func writeFakePlugin(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestDiscoverFindsExecutableWithReservedPrefixAndQueriesInfo(t *testing.T) {
	pluginsDir := filepath.Join(t.TempDir(), pluginDir)
	require.NoError(t, os.MkdirAll(pluginsDir, 0o755))

	writeFakePlugin(t, pluginsDir, "meta-docker", `
if [ "$1" = "--meta-plugin-info" ]; then
  echo '{"name":"docker","version":"1.0","commands":["docker","docker compose"]}'
fi
`)
	writeFakePlugin(t, pluginsDir, "not-a-plugin", `echo nope`)

	plugins := Discover(filepath.Dir(pluginsDir))
	require.Len(t, plugins, 1)
	assert.Equal(t, "docker", plugins[0].Info.Name)
	assert.Contains(t, plugins[0].Info.Commands, "docker compose")
}

func TestDiscoverSkipsNonExecutableCandidate(t *testing.T) {
	pluginsDir := filepath.Join(t.TempDir(), pluginDir)
	require.NoError(t, os.MkdirAll(pluginsDir, 0o755))
	path := filepath.Join(pluginsDir, "meta-broken")
	require.NoError(t, os.WriteFile(path, []byte("not executable"), 0o644))

	plugins := Discover(filepath.Dir(pluginsDir))
	assert.Empty(t, plugins)
}

func TestResolveLongestPrefixWins(t *testing.T) {
	plugins := []Plugin{
		{Info: Info{Name: "git", Commands: []string{"git"}}},
		{Info: Info{Name: "snap", Commands: []string{"git snapshot create"}}},
	}

	match, ok := Resolve(plugins, []string{"git", "snapshot", "create", "foo"})
	require.True(t, ok)
	assert.Equal(t, "git snapshot create", match.MatchedCmd)
	assert.Equal(t, []string{"foo"}, match.RemainingArgs)
}

func TestResolveNoMatch(t *testing.T) {
	plugins := []Plugin{{Info: Info{Name: "docker", Commands: []string{"docker"}}}}
	_, ok := Resolve(plugins, []string{"npm", "install"})
	assert.False(t, ok)
}

func TestDispatchParsesExecutionPlan(t *testing.T) {
	dir := t.TempDir()
	path := writeFakePlugin(t, dir, "meta-snap", `
if [ "$1" = "--meta-plugin-exec" ]; then
  cat > /dev/null
  echo '{"plan":{"commands":[{"dir":"./r1","cmd":"git stash"}],"parallel":false}}'
fi
`)
	match := Match{Plugin: Plugin{Path: path}, MatchedCmd: "git snapshot create"}
	outcome := Dispatch(match, Request{Command: "git snapshot create", Args: []string{"foo"}})

	require.NotNil(t, outcome.Plan)
	require.Len(t, outcome.Plan.Commands, 1)
	assert.Equal(t, "git stash", outcome.Plan.Commands[0].Cmd)
	assert.False(t, outcome.Failed)
}

func TestDispatchSilentSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeFakePlugin(t, dir, "meta-quiet", `cat > /dev/null`)
	outcome := Dispatch(Match{Plugin: Plugin{Path: path}}, Request{})
	assert.True(t, outcome.SilentOK)
	assert.False(t, outcome.Failed)
}

func TestDispatchForwardsProse(t *testing.T) {
	dir := t.TempDir()
	path := writeFakePlugin(t, dir, "meta-prose", `cat > /dev/null; echo "hello from plugin"`)
	outcome := Dispatch(Match{Plugin: Plugin{Path: path}}, Request{})
	assert.Equal(t, "hello from plugin\n", outcome.Prose)
}

func TestDispatchPropagatesNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	path := writeFakePlugin(t, dir, "meta-fail", `cat > /dev/null; exit 3`)
	outcome := Dispatch(Match{Plugin: Plugin{Path: path}}, Request{})
	assert.True(t, outcome.Failed)
	assert.Equal(t, 3, outcome.ExitCode)
}
