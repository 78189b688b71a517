// Package plugin discovers meta-prefixed subprocess executables,
// negotiates their JSON handshake, and dispatches user command tokens to
// the longest-matching plugin.
package plugin

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/metaworkspace/meta/pkg/fanout"
	"github.com/metaworkspace/meta/pkg/logger"
)

var log = logger.New("meta:plugin")

const (
	infoFlag = "--meta-plugin-info"
	execFlag = "--meta-plugin-exec"
	prefix   = "meta-"
	pluginDir = ".meta-plugins"
)

// HelpMode controls how a plugin's help text relates to built-in help.
type HelpMode int

const (
	HelpNone HelpMode = iota
	HelpOverride
	HelpPrepend
)

// Help is the optional structured help block a plugin may advertise.
type Help struct {
	Usage    string            `json:"usage,omitempty"`
	Commands map[string]string `json:"commands,omitempty"`
	Examples []string          `json:"examples,omitempty"`
	Note     string            `json:"note,omitempty"`
	Mode     HelpMode          `json:"-"`
}

// Info is the PluginInfo handshake response.
type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Commands    []string `json:"commands"`
	Description string   `json:"description,omitempty"`
	Help        *Help    `json:"help,omitempty"`
}

// Plugin is a discovered, successfully info-queried executable.
type Plugin struct {
	Path string
	Info Info
}

// Request is the PluginRequest JSON value written to a dispatched
// plugin's stdin.
type Request struct {
	Command  string            `json:"command"`
	Args     []string          `json:"args"`
	Projects []string          `json:"projects"`
	Cwd      string            `json:"cwd"`
	Options  RequestOptions    `json:"options"`
}

// RequestOptions is the consolidated option set forwarded to a plugin.
type RequestOptions struct {
	JSONOutput     bool     `json:"json_output"`
	Verbose        bool     `json:"verbose"`
	Parallel       bool     `json:"parallel"`
	DryRun         bool     `json:"dry_run"`
	Silent         bool     `json:"silent"`
	Recursive      bool     `json:"recursive"`
	Depth          *int     `json:"depth,omitempty"`
	IncludeFilters []string `json:"include_filters,omitempty"`
	ExcludeFilters []string `json:"exclude_filters,omitempty"`
	Strict         bool     `json:"strict"`
}

// planEnvelope is the optional {"plan": ExecutionPlan} response shape.
type planEnvelope struct {
	Plan *fanout.ExecutionPlan `json:"plan"`
}

// Discover walks upward from startDir collecting every .meta-plugins
// directory, then also checks $HOME/.meta-plugins and every PATH entry,
// deduping by canonical directory path. Within each directory, every
// file named with the reserved meta- prefix and carrying the executable
// bit is a candidate; candidates are info-queried and the
// first-successful-load wins on a name collision.
func Discover(startDir string) []Plugin {
	dirs := candidateDirs(startDir)

	seenNames := map[string]bool{}
	var plugins []Plugin
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
				continue
			}
			full := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				continue
			}
			pluginInfo, ok := queryInfo(full)
			if !ok {
				log.Printf("plugin %s failed --meta-plugin-info, skipping", full)
				continue
			}
			if seenNames[pluginInfo.Name] {
				continue
			}
			seenNames[pluginInfo.Name] = true
			plugins = append(plugins, Plugin{Path: full, Info: pluginInfo})
		}
	}
	return plugins
}

func candidateDirs(startDir string) []string {
	seen := map[string]bool{}
	var dirs []string

	add := func(dir string) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		dirs = append(dirs, abs)
	}

	dir := startDir
	for {
		add(filepath.Join(dir, pluginDir))
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, pluginDir))
	}

	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		if p != "" {
			add(p)
		}
	}

	return dirs
}

func queryInfo(path string) (Info, bool) {
	cmd := exec.Command(path, infoFlag)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return Info{}, false
	}
	var info Info
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return Info{}, false
	}
	return info, true
}

// Match is a resolved dispatch target: the plugin, the matched command
// prefix, and the remaining argument tokens.
type Match struct {
	Plugin       Plugin
	MatchedCmd   string
	RemainingArgs []string
}

// Resolve picks the plugin whose advertised command is the longest
// matching prefix of the user's command tokens. A match is exact
// equality, a token-boundary prefix, or (as a fallback) first-token
// equality. On a tie, discovery order breaks it (the first plugin
// encountered in plugins wins), since dispatch order is otherwise
// unspecified.
func Resolve(plugins []Plugin, commandTokens []string) (Match, bool) {
	userCmd := strings.Join(commandTokens, " ")

	bestLen := -1
	var best Match
	found := false

	for _, p := range plugins {
		for _, advertised := range p.Info.Commands {
			matchLen, ok := matchPrefix(advertised, userCmd)
			if !ok {
				continue
			}
			if matchLen > bestLen {
				bestLen = matchLen
				remaining := strings.TrimSpace(userCmd[matchLen:])
				var args []string
				if remaining != "" {
					args = strings.Fields(remaining)
				}
				best = Match{Plugin: p, MatchedCmd: advertised, RemainingArgs: args}
				found = true
			}
		}
	}

	if !found {
		return Match{}, false
	}
	return best, true
}

// matchPrefix reports the matched length of advertised against userCmd,
// per the exact/prefix/first-token rules in C9's dispatch algorithm.
func matchPrefix(advertised, userCmd string) (int, bool) {
	if advertised == userCmd {
		return len(advertised), true
	}
	if strings.HasPrefix(userCmd, advertised+" ") {
		return len(advertised), true
	}
	firstToken := strings.Fields(userCmd)
	advertisedFirst := strings.Fields(advertised)
	if len(firstToken) > 0 && len(advertisedFirst) > 0 && firstToken[0] == advertisedFirst[0] {
		return len(advertisedFirst[0]), true
	}
	return 0, false
}

// Outcome reports how a dispatched plugin invocation resolved.
type Outcome struct {
	SilentOK bool
	Prose    string
	Plan     *fanout.ExecutionPlan
	ExitCode int
	Failed   bool
}

// Dispatch invokes match's plugin with --meta-plugin-exec, writes req as
// JSON to its stdin, streams its stderr to stderr live, and classifies
// its stdout per the empty/prose/plan-envelope rule.
func Dispatch(match Match, req Request) Outcome {
	cmd := exec.Command(match.Plugin.Path, execFlag)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Outcome{Failed: true, ExitCode: -1}
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return Outcome{Failed: true, ExitCode: -1}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Outcome{Failed: true, ExitCode: -1}
	}
	go func() {
		defer stdin.Close()
		stdin.Write(payload)
	}()

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	trimmed := strings.TrimSpace(stdout.String())
	if trimmed == "" {
		return Outcome{SilentOK: exitCode == 0, ExitCode: exitCode, Failed: exitCode != 0}
	}

	var envelope planEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil && envelope.Plan != nil {
		return Outcome{Plan: envelope.Plan, ExitCode: exitCode, Failed: exitCode != 0}
	}

	return Outcome{Prose: stdout.String(), ExitCode: exitCode, Failed: exitCode != 0}
}

// RunHelp asks the chosen plugin for help text by running it with
// --help, falling back to synthesizing from Info.Help when the process
// produces nothing usable.
func RunHelp(p Plugin) string {
	cmd := exec.Command(p.Path, "--help")
	out, err := cmd.Output()
	if err == nil && len(bytes.TrimSpace(out)) > 0 {
		return string(out)
	}
	return synthesizeHelp(p.Info)
}

func synthesizeHelp(info Info) string {
	if info.Help == nil {
		return fmt.Sprintf("%s: %s\n", info.Name, info.Description)
	}
	var b strings.Builder
	if info.Help.Usage != "" {
		fmt.Fprintf(&b, "Usage: %s\n", info.Help.Usage)
	}
	for name, desc := range info.Help.Commands {
		fmt.Fprintf(&b, "  %s\t%s\n", name, desc)
	}
	for _, ex := range info.Help.Examples {
		fmt.Fprintf(&b, "  %s\n", ex)
	}
	if info.Help.Note != "" {
		fmt.Fprintln(&b, info.Help.Note)
	}
	return b.String()
}

// readStdinRequest decodes one Request from r, the plugin side of the
// --meta-plugin-exec handshake. Nothing in this repository calls it; the
// test doubles in plugin_test.go are shell scripts that discard stdin.
func readStdinRequest(r io.Reader) (Request, error) {
	var req Request
	dec := json.NewDecoder(bufio.NewReader(r))
	if err := dec.Decode(&req); err != nil {
		return Request{}, err
	}
	return req, nil
}
