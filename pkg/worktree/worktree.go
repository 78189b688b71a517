// Package worktree recognizes the `.worktrees/<set-name>/` directory
// layout and enumerates its member checkouts by parsing each member's
// `.git` pointer file. Detection relies on plain file probes rather
// than a git library, kept dependency-free.
package worktree

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Set describes a detected worktree-set directory.
type Set struct {
	Dir  string
	Name string
}

// Member is one member checkout within a worktree set.
type Member struct {
	Alias     string // "." for the set root, otherwise the subdirectory name
	Dir       string // absolute path to the member's working directory
	PrimaryCheckout string // the primary checkout this member's .git points into
}

// Detect reports whether path contains a `.worktrees` path component and,
// if so, the worktree-set directory and name.
func Detect(path string) (Set, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Set{}, false
	}

	var components []string
	for dir := abs; ; {
		parent := filepath.Dir(dir)
		components = append([]string{filepath.Base(dir)}, components...)
		if parent == dir {
			break
		}
		dir = parent
	}

	for i, part := range components {
		if part == ".worktrees" && i+1 < len(components) {
			setDir := filepath.Join(components[:i+2]...)
			return Set{Dir: setDir, Name: components[i+1]}, true
		}
	}
	return Set{}, false
}

// Members enumerates every worktree member within a set directory:
// every subdirectory (including the set directory itself) whose `.git`
// entry is a regular file rather than a directory. Results are sorted
// by alias, with the set root ("." alias) sorted first.
func Members(setDir string) ([]Member, error) {
	var members []Member

	if m, ok := memberFromDir(setDir, "."); ok {
		members = append(members, m)
	}

	entries, err := os.ReadDir(setDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		childDir := filepath.Join(setDir, e.Name())
		if m, ok := memberFromDir(childDir, e.Name()); ok {
			members = append(members, m)
		}
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].Alias == "." {
			return true
		}
		if members[j].Alias == "." {
			return false
		}
		return members[i].Alias < members[j].Alias
	})
	return members, nil
}

func memberFromDir(dir, alias string) (Member, bool) {
	gitPath := filepath.Join(dir, ".git")
	info, err := os.Stat(gitPath)
	if err != nil || info.IsDir() {
		return Member{}, false
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return Member{}, false
	}
	line := strings.TrimSpace(string(content))
	const marker = "gitdir: "
	if !strings.HasPrefix(line, marker) {
		return Member{}, false
	}
	gitdir := strings.TrimPrefix(line, marker)

	// gitdir points at .../<primary-checkout>/.git/worktrees/<name>;
	// the primary checkout is three levels up, with the <name>,
	// worktrees, and .git components stripped.
	primary := filepath.Dir(filepath.Dir(filepath.Dir(gitdir)))

	return Member{Alias: alias, Dir: dir, PrimaryCheckout: primary}, true
}
