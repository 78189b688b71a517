// Package gitutil provides thin, typed wrappers over git subprocess
// invocations. No operation ever returns an error for "git said no": a
// non-zero exit, a missing git binary, or unparsable output all collapse
// to a zero value and ok=false.
package gitutil

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/metaworkspace/meta/pkg/logger"
)

var log = logger.New("meta:gitutil")

// IsHexString reports whether s contains only hexadecimal characters; used
// to validate commit SHAs read back from git.
func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func run(repoPath string, args ...string) (string, bool) {
	out, ok := runRaw(repoPath, args...)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(out), true
}

// runRaw is run without trimming, for output whose leading whitespace is
// significant (porcelain status columns).
func runRaw(repoPath string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		log.Printf("git %s in %s failed: %v", strings.Join(args, " "), repoPath, err)
		return "", false
	}
	return string(out), true
}

// CurrentBranch returns the checked-out branch name, or ok=false if HEAD is
// detached or the repo is invalid.
func CurrentBranch(repoPath string) (string, bool) {
	out, ok := run(repoPath, "branch", "--show-current")
	if !ok || out == "" {
		return "", false
	}
	return out, true
}

// IsDirty reports whether the working tree has any uncommitted changes.
func IsDirty(repoPath string) (bool, bool) {
	out, ok := porcelain(repoPath)
	if !ok {
		return false, false
	}
	return len(out) > 0, true
}

// DirtyFileCount returns the number of porcelain status lines.
func DirtyFileCount(repoPath string) (int, bool) {
	lines, ok := porcelain(repoPath)
	if !ok {
		return 0, false
	}
	return len(lines), true
}

// DirtyFiles returns the file paths reported by `git status --porcelain`,
// stripped of their two-character status prefix and following space.
func DirtyFiles(repoPath string) ([]string, bool) {
	lines, ok := porcelain(repoPath)
	if !ok {
		return nil, false
	}
	files := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) > 3 {
			files = append(files, line[3:])
		}
	}
	return files, true
}

// PorcelainLines returns the raw, non-blank lines of
// `git status --porcelain`, including their two-character XY status
// prefix, for callers (reposcan) that need to distinguish staged from
// unstaged from untracked changes.
func PorcelainLines(repoPath string) ([]string, bool) {
	return porcelain(repoPath)
}

func porcelain(repoPath string) ([]string, bool) {
	out, ok := runRaw(repoPath, "status", "--porcelain")
	if !ok {
		return nil, false
	}
	if strings.TrimSpace(out) == "" {
		return nil, true
	}
	lines := strings.Split(out, "\n")
	nonBlank := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonBlank = append(nonBlank, l)
		}
	}
	return nonBlank, true
}

// AheadBehind returns the commit counts by which HEAD is ahead of and
// behind its upstream.
func AheadBehind(repoPath string) (ahead, behind int, ok bool) {
	out, success := run(repoPath, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if !success {
		return 0, 0, false
	}
	parts := strings.Fields(out)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(parts[0])
	b, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return a, b, true
}

// HeadCommit returns the 40-character hex SHA of HEAD.
func HeadCommit(repoPath string) (string, bool) {
	out, ok := run(repoPath, "rev-parse", "HEAD")
	if !ok || !IsHexString(out) {
		return "", false
	}
	return out, true
}

// LastCommitTime returns the unix timestamp of HEAD's commit.
func LastCommitTime(repoPath string) (time.Time, bool) {
	out, ok := run(repoPath, "log", "-1", "--format=%ct")
	if !ok {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// LastCommitHash returns the 40-character hex SHA of HEAD (alias of
// HeadCommit, kept distinct for call-site clarity in RepoState collection).
func LastCommitHash(repoPath string) (string, bool) {
	return HeadCommit(repoPath)
}

// LastCommitMessage returns the subject line of HEAD's commit.
func LastCommitMessage(repoPath string) (string, bool) {
	return run(repoPath, "log", "-1", "--format=%s")
}

// ResetHard runs `git reset --hard <commit>`.
func ResetHard(repoPath, commit string) bool {
	_, ok := run(repoPath, "reset", "--hard", commit)
	return ok
}

// Checkout runs `git checkout <ref>`.
func Checkout(repoPath, ref string) bool {
	_, ok := run(repoPath, "checkout", ref)
	return ok
}

// StashPush runs `git stash push -m <message>`.
func StashPush(repoPath, message string) bool {
	_, ok := run(repoPath, "stash", "push", "-m", message)
	return ok
}

// StashPop runs `git stash pop`.
func StashPop(repoPath string) bool {
	_, ok := run(repoPath, "stash", "pop")
	return ok
}

// IsAuthError reports whether an error message indicates a git/remote
// authentication failure, used by the context reporter to avoid treating
// auth failures as "uncloned repo" absences.
func IsAuthError(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	for _, marker := range []string{"authentication", "not logged into", "unauthorized", "forbidden", "permission denied"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
