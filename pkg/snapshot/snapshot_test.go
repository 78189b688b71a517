package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaworkspace/meta/internal/testutil"
	"github.com/metaworkspace/meta/pkg/gitutil"
	"github.com/metaworkspace/meta/pkg/manifest"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "release_2024_06", Sanitize("release/2024.06"))
	assert.Equal(t, "my-snap_1", Sanitize("my-snap_1"))
}

func TestCaptureSkipsUnclonedProjectsAndPersists(t *testing.T) {
	workspaceRoot := t.TempDir()
	repo := testutil.NewGitRepo(t)
	testutil.WriteAndStage(t, repo, "a.txt", "1\n")
	testutil.Commit(t, repo, "initial")

	projects := []manifest.ProjectInfo{
		{Name: "cloned", Path: relPath(t, workspaceRoot, repo)},
		{Name: "not-cloned", Path: "nowhere"},
	}

	snap, err := Capture("before-refactor", workspaceRoot, projects, "pre-refactor checkpoint")
	require.NoError(t, err)
	require.Len(t, snap.Projects, 1)
	assert.Equal(t, "cloned", snap.Projects[0].Name)
	assert.NotEmpty(t, snap.Projects[0].CommitHash)

	loaded, err := Load(workspaceRoot, "before-refactor")
	require.NoError(t, err)
	assert.Equal(t, snap.Projects[0].CommitHash, loaded.Projects[0].CommitHash)
}

func TestListSortsByCreatedAtDescending(t *testing.T) {
	workspaceRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(dir(workspaceRoot), 0o755))

	writeRawSnapshot(t, workspaceRoot, "older", "2024-01-01T00:00:00Z")
	writeRawSnapshot(t, workspaceRoot, "newer", "2024-06-01T00:00:00Z")

	snaps, err := List(workspaceRoot)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "newer", snaps[0].Name)
	assert.Equal(t, "older", snaps[1].Name)
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	workspaceRoot := t.TempDir()
	err := Delete(workspaceRoot, "ghost")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRestoreRefusesDirtyWithoutForce(t *testing.T) {
	workspaceRoot := t.TempDir()
	repo := testutil.NewGitRepo(t)
	testutil.WriteAndStage(t, repo, "a.txt", "1\n")
	testutil.Commit(t, repo, "initial")
	relP := relPath(t, workspaceRoot, repo)

	snap, err := Capture("checkpoint", workspaceRoot, []manifest.ProjectInfo{{Name: "core", Path: relP}}, "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "dirty.txt"), []byte("oops\n"), 0o644))

	result := Restore(workspaceRoot, snap, false)
	assert.Empty(t, result.Restored)
	assert.Contains(t, result.Failed["core"], "dirty-working-tree")
}

func TestRestoreForceStashesAndReturnsToCommit(t *testing.T) {
	workspaceRoot := t.TempDir()
	repo := testutil.NewGitRepo(t)
	testutil.WriteAndStage(t, repo, "a.txt", "1\n")
	testutil.Commit(t, repo, "initial")
	relP := relPath(t, workspaceRoot, repo)

	snap, err := Capture("checkpoint", workspaceRoot, []manifest.ProjectInfo{{Name: "core", Path: relP}}, "")
	require.NoError(t, err)

	testutil.WriteAndStage(t, repo, "b.txt", "2\n")
	testutil.Commit(t, repo, "second")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "uncommitted.txt"), []byte("x\n"), 0o644))

	result := Restore(workspaceRoot, snap, true)
	assert.Contains(t, result.Restored, "core")
	assert.Empty(t, result.Failed)

	head, ok := gitutil.HeadCommit(repo)
	require.True(t, ok)
	assert.Equal(t, snap.Projects[0].CommitHash, head)
}

func TestRestoreForceWithTrackedModificationLeavesTreeClean(t *testing.T) {
	workspaceRoot := t.TempDir()
	repo := testutil.NewGitRepo(t)
	testutil.WriteAndStage(t, repo, "a.txt", "1\n")
	testutil.Commit(t, repo, "initial")
	relP := relPath(t, workspaceRoot, repo)

	snap, err := Capture("checkpoint", workspaceRoot, []manifest.ProjectInfo{{Name: "core", Path: relP}}, "")
	require.NoError(t, err)

	testutil.WriteAndStage(t, repo, "b.txt", "2\n")
	testutil.Commit(t, repo, "second")
	// Modify a tracked file rather than adding an untracked one: a plain
	// `git stash push` does stash this, so a pop-back-after-reset would
	// re-dirty the tree. Restore must leave it clean.
	require.NoError(t, os.WriteFile(filepath.Join(repo, "a.txt"), []byte("modified\n"), 0o644))

	result := Restore(workspaceRoot, snap, true)
	assert.Contains(t, result.Restored, "core")
	assert.Empty(t, result.Failed)
	assert.NotEmpty(t, result.Warnings)

	head, ok := gitutil.HeadCommit(repo)
	require.True(t, ok)
	assert.Equal(t, snap.Projects[0].CommitHash, head)

	dirty, ok := gitutil.IsDirty(repo)
	require.True(t, ok)
	assert.False(t, dirty, "working tree should be clean after restore, not re-dirtied by a stash pop")
}

func relPath(t *testing.T, base, target string) string {
	t.Helper()
	rel, err := filepath.Rel(base, target)
	require.NoError(t, err)
	return rel
}

func writeRawSnapshot(t *testing.T, workspaceRoot, name, createdAt string) {
	t.Helper()
	content := `{"name":"` + name + `","created_at":"` + createdAt + `","workspace_root":"` + workspaceRoot + `","projects":[]}`
	require.NoError(t, os.WriteFile(pathFor(workspaceRoot, name), []byte(content), 0o644))
}
