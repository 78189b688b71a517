// Package testutil provides shared test fixtures: disposable git
// repositories for exercising gitutil, snapshot, and atomic-batch
// behavior against a real `git` binary rather than a mock.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewGitRepo creates a git repository in a fresh temp directory, with one
// commit on branch "main" containing a single file. It returns the
// repository's absolute path.
func NewGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "init", "-q", "-b", "main")
	run(t, dir, "config", "user.email", "test@example.com")
	run(t, dir, "config", "user.name", "Test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run(t, dir, "add", "README.md")
	run(t, dir, "commit", "-q", "-m", "initial commit")
	return dir
}

// WriteAndStage writes content to a file in repoPath and stages it,
// leaving the working tree dirty.
func WriteAndStage(t *testing.T, repoPath, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, name), []byte(content), 0o644))
	run(t, repoPath, "add", name)
}

// Commit commits currently staged changes.
func Commit(t *testing.T, repoPath, message string) {
	t.Helper()
	run(t, repoPath, "commit", "-q", "-m", message)
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v failed: %s", args, out)
}
