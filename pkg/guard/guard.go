// Package guard inspects shell commands from an AI-agent tool-use hook
// and denies a fixed set of destructive git/filesystem patterns. It
// reads a JSON hook payload on stdin and, on a match, writes a single
// deny decision to stdout; it never fails the hook itself, since a bug
// here would otherwise block every tool call. Checks run as an ordered
// registry of deterministic pattern matchers over an untrusted payload,
// failing open on any internal error.
package guard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/metaworkspace/meta/pkg/logger"
)

var log = logger.New("meta:guard")

// HookInput is the subset of the tool-use hook payload the guard reads.
type HookInput struct {
	ToolInput struct {
		Command string `json:"command"`
	} `json:"tool_input"`
}

// Decision is the JSON line emitted to stdout on a deny.
type Decision struct {
	HookSpecificOutput HookSpecificOutput `json:"hookSpecificOutput"`
}

// HookSpecificOutput carries the permission verdict and rationale.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

// PatternName identifies one entry in the fixed pattern registry.
type PatternName string

const (
	GitForcePush         PatternName = "git_force_push"
	GitResetHard         PatternName = "git_reset_hard"
	GitCleanForce        PatternName = "git_clean_force"
	GitCheckoutDot       PatternName = "git_checkout_dot"
	GitBranchForceDelete PatternName = "git_branch_force_delete"
	GitStashDestructive  PatternName = "git_stash_destructive"
	RmRfRoot             PatternName = "rm_rf_root"
)

var defaultMessages = map[PatternName]string{
	GitForcePush:         "git push --force can overwrite remote history; use --force-with-lease instead, or run `meta git snapshot create <name>` before force pushing",
	GitResetHard:         "git reset --hard discards uncommitted changes irreversibly; run `meta git snapshot create <name>` first so it can be restored",
	GitCleanForce:        "git clean -fd permanently deletes untracked files and directories; run `meta git snapshot create <name>` before cleaning",
	GitCheckoutDot:       "git checkout . discards all uncommitted working-tree changes; run `meta git snapshot create <name>` before reverting",
	GitBranchForceDelete: "git branch -D permanently deletes a branch, including unmerged commits; run `meta git snapshot create <name>` before deleting",
	GitStashDestructive:  "this stash operation permanently discards stashed changes; run `meta git snapshot create <name>` first",
	RmRfRoot:             "rm -rf against a workspace-root-like path would delete the workspace; run `meta git snapshot create <name>` before destructive operations",
}

// RuleConfig is one pattern's {enabled, message} override.
type RuleConfig struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message,omitempty"`
}

// Config maps pattern name to its rule; a pattern absent from the map
// uses the embedded default (enabled, default message).
type Config map[PatternName]RuleConfig

// DefaultConfig returns every pattern enabled with its default message.
func DefaultConfig() Config {
	cfg := make(Config, len(defaultMessages))
	for name, msg := range defaultMessages {
		cfg[name] = RuleConfig{Enabled: true, Message: msg}
	}
	return cfg
}

// LoadConfig resolves the effective config by precedence: project-local
// .meta-guard.yaml/.meta-guard.json, then $HOME/.meta-guard.yaml/.json,
// then embedded defaults. Files are applied lowest precedence first, so a
// project-level rule overrides a home-level one; within one level the
// .json file is applied after the .yaml file.
// A present-but-unparsable file is logged and skipped, never fatal (only
// a failure to parse the embedded default is a startup bug).
func LoadConfig(projectDir string) Config {
	cfg := DefaultConfig()
	for _, path := range []string{
		homeGuardPath("/.meta-guard.yaml"),
		homeGuardPath("/.meta-guard.json"),
		projectDir + "/.meta-guard.yaml",
		projectDir + "/.meta-guard.json",
	} {
		if path == "" {
			continue
		}
		overrideFile(cfg, path)
	}
	return cfg
}

func homeGuardPath(suffix string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + suffix
}

func overrideFile(cfg Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var overrides map[PatternName]RuleConfig
	var parseErr error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		parseErr = yaml.Unmarshal(data, &overrides)
	} else {
		parseErr = json.Unmarshal(data, &overrides)
	}
	if parseErr != nil {
		log.Printf("ignoring unparsable guard config %s: %v", path, parseErr)
		return
	}
	for name, rule := range overrides {
		existing := cfg[name]
		if rule.Message == "" {
			rule.Message = existing.Message
		}
		cfg[name] = rule
	}
}

type check struct {
	name PatternName
	fn   func(segment string) bool
}

// registry is the fixed, ordered list of destructive-pattern checks.
// On a segment that matches more than one pattern, the earliest entry
// wins: it decides the deny message and the debug trace line.
var registry = []check{
	{GitForcePush, matchGitForcePush},
	{GitResetHard, matchGitResetHard},
	{GitCleanForce, matchGitCleanForce},
	{GitCheckoutDot, matchGitCheckoutDot},
	{GitBranchForceDelete, matchGitBranchForceDelete},
	{GitStashDestructive, matchGitStashDestructive},
	{RmRfRoot, matchRmRfRoot},
}

// Split lexically splits command on &&, ||, ;, and a standalone | (one
// not adjacent to another |). Quoting is not honoured: this is a
// deliberately simple lexical split, not a shell parse.
func Split(command string) []string {
	var segments []string
	var current strings.Builder
	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '&' && i+1 < len(runes) && runes[i+1] == '&':
			segments = append(segments, current.String())
			current.Reset()
			i++
		case c == '|' && i+1 < len(runes) && runes[i+1] == '|':
			segments = append(segments, current.String())
			current.Reset()
			i++
		case c == ';':
			segments = append(segments, current.String())
			current.Reset()
		case c == '|':
			// standalone pipe: not preceded or followed by another '|'
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	segments = append(segments, current.String())

	trimmed := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s != "" {
			trimmed = append(trimmed, s)
		}
	}
	return trimmed
}

// Evaluate runs command through the pattern registry segment by
// segment, returning the first triggered pattern (and its segment), if
// any.
func Evaluate(cfg Config, command string) (PatternName, string, bool) {
	for _, segment := range Split(command) {
		for _, c := range registry {
			rule, has := cfg[c.name]
			if has && !rule.Enabled {
				continue
			}
			if c.fn(segment) {
				return c.name, segment, true
			}
		}
	}
	return "", "", false
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

func isGit(tokens []string) bool {
	return hasToken(tokens, "git")
}

func shortFlagChars(tokens []string) map[rune]bool {
	chars := map[rune]bool{}
	for _, t := range tokens {
		if strings.HasPrefix(t, "--") || !strings.HasPrefix(t, "-") {
			continue
		}
		for _, r := range t[1:] {
			chars[r] = true
		}
	}
	return chars
}

func matchGitForcePush(segment string) bool {
	tokens := strings.Fields(segment)
	if !isGit(tokens) || !hasToken(tokens, "push") {
		return false
	}
	hasForce := false
	hasLease := false
	for _, t := range tokens {
		if t == "--force" || t == "-f" {
			hasForce = true
		}
		if t == "--force-with-lease" || strings.HasPrefix(t, "--force-with-lease=") {
			hasLease = true
		}
	}
	return hasForce && !hasLease
}

func matchGitResetHard(segment string) bool {
	tokens := strings.Fields(segment)
	return isGit(tokens) && hasToken(tokens, "reset") && hasToken(tokens, "--hard")
}

func matchGitCleanForce(segment string) bool {
	tokens := strings.Fields(segment)
	if !isGit(tokens) || !hasToken(tokens, "clean") {
		return false
	}
	chars := shortFlagChars(tokens)
	return chars['f'] && chars['d']
}

func matchGitCheckoutDot(segment string) bool {
	tokens := strings.Fields(segment)
	if !isGit(tokens) || !hasToken(tokens, "checkout") {
		return false
	}
	joined := strings.Join(tokens, " ")
	return strings.HasSuffix(joined, "checkout .") || strings.HasSuffix(joined, "checkout -- .")
}

func matchGitBranchForceDelete(segment string) bool {
	tokens := strings.Fields(segment)
	return isGit(tokens) && hasToken(tokens, "branch") && hasToken(tokens, "-D")
}

func matchGitStashDestructive(segment string) bool {
	tokens := strings.Fields(segment)
	if !isGit(tokens) || !hasToken(tokens, "stash") {
		return false
	}
	return hasToken(tokens, "drop") || hasToken(tokens, "clear")
}

var dangerousRmPaths = map[string]bool{
	"":           true,
	"~":          true,
	"$HOME":      true,
	".":          true,
	"..":         true,
	".meta":      true,
	".meta.yaml": true,
	".meta.yml":  true,
	"*":          true,
	"./*":        true,
	"../*":       true,
}

func matchRmRfRoot(segment string) bool {
	tokens := strings.Fields(segment)
	if !hasToken(tokens, "rm") {
		return false
	}
	chars := shortFlagChars(tokens)
	if !(chars['r'] && chars['f']) {
		return false
	}
	for _, t := range tokens {
		if t == "rm" || strings.HasPrefix(t, "-") {
			continue
		}
		path := strings.TrimSuffix(t, "/")
		if dangerousRmPaths[path] {
			return true
		}
	}
	return false
}

// Run reads the hook payload from r, evaluates it against cfg, and
// writes a deny Decision to w on a match. It reports no error to its
// caller: any internal failure (bad JSON, read error) fails open, i.e.
// allows silently, by design of the hook contract.
func Run(r io.Reader, w io.Writer, debugOut io.Writer, cfg Config) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		log.Printf("reading hook input failed, failing open: %v", err)
		return
	}

	var input HookInput
	if err := json.Unmarshal(data, &input); err != nil {
		log.Printf("malformed hook input, failing open: %v", err)
		return
	}
	if strings.TrimSpace(input.ToolInput.Command) == "" {
		return
	}

	name, segment, triggered := Evaluate(cfg, input.ToolInput.Command)
	if !triggered {
		return
	}

	if os.Getenv("META_DEBUG_GUARD") != "" && debugOut != nil {
		fmt.Fprintf(debugOut, "meta:guard triggered=%s segment=%q\n", name, segment)
	}

	message := cfg[name].Message
	if message == "" {
		message = defaultMessages[name]
	}

	decision := Decision{HookSpecificOutput: HookSpecificOutput{
		HookEventName:            "PreToolUse",
		PermissionDecision:       "deny",
		PermissionDecisionReason: message,
	}}
	line, err := json.Marshal(decision)
	if err != nil {
		log.Printf("encoding deny decision failed, failing open: %v", err)
		return
	}
	fmt.Fprintln(w, string(line))
}
