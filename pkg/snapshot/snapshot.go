// Package snapshot captures, persists, lists, restores, and deletes
// workspace snapshots: a per-project (branch, HEAD, dirty-file) capture
// used as a rollback point for destructive multi-repo operations.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/metaworkspace/meta/pkg/gitutil"
	"github.com/metaworkspace/meta/pkg/logger"
	"github.com/metaworkspace/meta/pkg/manifest"
)

var log = logger.New("meta:snapshot")

const dirName = ".meta-snapshots"

// ProjectSnapshot is one project's captured git state.
type ProjectSnapshot struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Branch     string   `json:"branch"`
	CommitHash string   `json:"commit_hash"`
	IsDirty    bool     `json:"is_dirty"`
	StashRef   string   `json:"stash_ref,omitempty"`
	DirtyFiles []string `json:"dirty_files,omitempty"`
}

// WorkspaceSnapshot is the persisted, whole-workspace capture.
type WorkspaceSnapshot struct {
	Name          string            `json:"name"`
	CreatedAt     time.Time         `json:"created_at"`
	Description   string            `json:"description,omitempty"`
	WorkspaceRoot string            `json:"workspace_root"`
	Projects      []ProjectSnapshot `json:"projects"`
}

// NotFoundError is returned when a named snapshot does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot-not-found: %q", e.Name)
}

// Sanitize maps any character that is not ASCII alphanumeric, '-', or '_'
// to '_', producing a safe snapshot filename stem.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func dir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, dirName)
}

func pathFor(workspaceRoot, name string) string {
	return filepath.Join(dir(workspaceRoot), Sanitize(name)+".json")
}

// Capture records the current git state of every project with a .git
// directory (projects that are not yet cloned are skipped) and persists
// it as one JSON file under <workspaceRoot>/.meta-snapshots/.
func Capture(name, workspaceRoot string, projects []manifest.ProjectInfo, description string) (*WorkspaceSnapshot, error) {
	snap := &WorkspaceSnapshot{
		Name:          name,
		CreatedAt:     time.Now().UTC(),
		Description:   description,
		WorkspaceRoot: workspaceRoot,
	}

	for _, p := range projects {
		absPath := filepath.Join(workspaceRoot, p.Path)
		if _, err := os.Stat(filepath.Join(absPath, ".git")); err != nil {
			log.Printf("skipping %s: no .git directory", p.Name)
			continue
		}

		ps := ProjectSnapshot{Name: p.Name, Path: p.Path}
		if branch, ok := gitutil.CurrentBranch(absPath); ok {
			ps.Branch = branch
		}
		if commit, ok := gitutil.HeadCommit(absPath); ok {
			ps.CommitHash = commit
		}
		if dirty, ok := gitutil.IsDirty(absPath); ok {
			ps.IsDirty = dirty
		}
		if files, ok := gitutil.DirtyFiles(absPath); ok {
			ps.DirtyFiles = files
		}
		snap.Projects = append(snap.Projects, ps)
	}

	if err := os.MkdirAll(dir(workspaceRoot), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(pathFor(workspaceRoot, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	return snap, nil
}

// Load reads a persisted snapshot by name.
func Load(workspaceRoot, name string) (*WorkspaceSnapshot, error) {
	data, err := os.ReadFile(pathFor(workspaceRoot, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, err
	}
	var snap WorkspaceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %q: %w", name, err)
	}
	return &snap, nil
}

// List returns every persisted snapshot's metadata, sorted by CreatedAt
// descending (most recent first).
func List(workspaceRoot string) ([]WorkspaceSnapshot, error) {
	entries, err := os.ReadDir(dir(workspaceRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snaps []WorkspaceSnapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir(workspaceRoot), e.Name()))
		if err != nil {
			log.Printf("skipping unreadable snapshot file %s: %v", e.Name(), err)
			continue
		}
		var snap WorkspaceSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			log.Printf("skipping corrupt snapshot file %s: %v", e.Name(), err)
			continue
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })
	return snaps, nil
}

// Delete removes a named snapshot file.
func Delete(workspaceRoot, name string) error {
	err := os.Remove(pathFor(workspaceRoot, name))
	if os.IsNotExist(err) {
		return &NotFoundError{Name: name}
	}
	return err
}

// RestoreResult aggregates per-project outcomes of a restore.
type RestoreResult struct {
	Restored []string
	Failed   map[string]string
	Skipped  []string
	Warnings []string
}

// Restore resets every project in snap back to its captured
// (branch, commit). If force is false, a currently-dirty project is
// recorded as failed rather than touched. If force is true, a dirty
// project's pre-restore changes are stashed (best-effort) before the
// reset and left stashed: the backup is never popped back onto the
// freshly reset tree, so the project ends clean at exactly the
// snapshotted commit, with the pre-restore changes recoverable from
// `git stash list`.
func Restore(workspaceRoot string, snap *WorkspaceSnapshot, force bool) RestoreResult {
	result := RestoreResult{Failed: map[string]string{}}

	for _, ps := range snap.Projects {
		absPath := filepath.Join(workspaceRoot, ps.Path)

		dirty, ok := gitutil.IsDirty(absPath)
		if !ok {
			result.Failed[ps.Name] = "dirty-working-tree: unable to read git status"
			continue
		}

		if dirty {
			if !force {
				result.Failed[ps.Name] = "dirty-working-tree: working tree has uncommitted changes"
				continue
			}
			if gitutil.StashPush(absPath, "meta-snapshot-restore-backup") {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: pre-restore changes stashed as meta-snapshot-restore-backup", ps.Name))
			} else {
				log.Printf("best-effort stash push failed for %s, continuing with force restore", ps.Name)
			}
		}

		if !gitutil.Checkout(absPath, ps.Branch) {
			result.Failed[ps.Name] = fmt.Sprintf("checkout %q failed", ps.Branch)
			continue
		}
		if !gitutil.ResetHard(absPath, ps.CommitHash) {
			result.Failed[ps.Name] = fmt.Sprintf("reset --hard %q failed", ps.CommitHash)
			continue
		}

		result.Restored = append(result.Restored, ps.Name)
	}

	return result
}
