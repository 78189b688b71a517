// Package reposcan collects the observed per-repo RepoState the query
// engine (C6) and context reporter (C11) both evaluate against. State is
// gathered on demand from git and a fixed build-system probe table; it is
// never persisted.
package reposcan

import (
	"os"
	"path/filepath"
	"time"

	"github.com/metaworkspace/meta/pkg/gitutil"
	"github.com/metaworkspace/meta/pkg/manifest"
)

// RepoState is the observed state of one project's checkout.
type RepoState struct {
	Name         string
	Path         string
	Branch       string
	Tags         []string
	IsDirty       bool
	HasStaged     bool
	HasUnstaged   bool
	HasUntracked  bool
	ModifiedCount int
	Ahead         int
	Behind        int

	HasLastCommit     bool
	LastCommitTime    time.Time
	LastCommitHash    string
	LastCommitMessage string

	BuildSystems []string
}

// buildSystemMarkers is the fixed language/build-system probe table: each
// marker file under a project's root identifies a build system.
var buildSystemMarkers = []struct {
	System string
	Marker string
}{
	{"go", "go.mod"},
	{"npm", "package.json"},
	{"cargo", "Cargo.toml"},
	{"python", "pyproject.toml"},
	{"python", "setup.py"},
	{"ruby", "Gemfile"},
	{"maven", "pom.xml"},
	{"gradle", "build.gradle"},
	{"dotnet", "*.csproj"},
}

// Collect gathers RepoState for one project rooted at absPath (the
// project's directory, workspaceRoot-joined path already resolved by the
// caller).
func Collect(info manifest.ProjectInfo, absPath string) RepoState {
	state := RepoState{Name: info.Name, Path: info.Path, Tags: info.Tags}

	if branch, ok := gitutil.CurrentBranch(absPath); ok {
		state.Branch = branch
	}

	if lines, ok := statusLines(absPath); ok {
		for _, line := range lines {
			if len(line) < 2 {
				continue
			}
			x, y := line[0], line[1]
			switch {
			case x == '?' && y == '?':
				state.HasUntracked = true
			default:
				if x != ' ' {
					state.HasStaged = true
				}
				if y != ' ' {
					state.HasUnstaged = true
				}
			}
		}
		state.IsDirty = state.HasStaged || state.HasUnstaged || state.HasUntracked
		state.ModifiedCount = len(lines)
	}

	if ahead, behind, ok := gitutil.AheadBehind(absPath); ok {
		state.Ahead = ahead
		state.Behind = behind
	}

	if hash, ok := gitutil.LastCommitHash(absPath); ok {
		state.LastCommitHash = hash
		state.HasLastCommit = true
	}
	if ts, ok := gitutil.LastCommitTime(absPath); ok {
		state.LastCommitTime = ts
	}
	if msg, ok := gitutil.LastCommitMessage(absPath); ok {
		state.LastCommitMessage = msg
	}

	state.BuildSystems = detectBuildSystems(absPath)
	return state
}

func detectBuildSystems(absPath string) []string {
	var systems []string
	seen := map[string]bool{}
	for _, marker := range buildSystemMarkers {
		matched := false
		if filepath.Base(marker.Marker) != marker.Marker {
			continue
		}
		if containsGlobChar(marker.Marker) {
			matches, _ := filepath.Glob(filepath.Join(absPath, marker.Marker))
			matched = len(matches) > 0
		} else if _, err := os.Stat(filepath.Join(absPath, marker.Marker)); err == nil {
			matched = true
		}
		if matched && !seen[marker.System] {
			seen[marker.System] = true
			systems = append(systems, marker.System)
		}
	}
	return systems
}

func containsGlobChar(s string) bool {
	for _, c := range s {
		if c == '*' || c == '?' || c == '[' {
			return true
		}
	}
	return false
}

func statusLines(absPath string) ([]string, bool) {
	return gitutil.PorcelainLines(absPath)
}
