// Package dispatch wires together manifest discovery, project
// filtering, plugin dispatch, and fan-out fallback into the single
// sequence the CLI entry point runs for every non-hook invocation.
package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/metaworkspace/meta/pkg/fanout"
	"github.com/metaworkspace/meta/pkg/logger"
	"github.com/metaworkspace/meta/pkg/manifest"
	"github.com/metaworkspace/meta/pkg/plugin"
	"github.com/metaworkspace/meta/pkg/projectset"
)

var log = logger.New("meta:dispatch")

// Request is one parsed CLI invocation.
type Request struct {
	Cwd              string
	ManifestOverride string
	CommandTokens    []string
	Include          []string
	Exclude          []string
	Tags             []string
	Parallel         bool
	DryRun           bool
	JSONOutput       bool
	Silent           bool
}

// Outcome reports how the request was ultimately handled.
type Outcome struct {
	PluginHandled bool
	Results       []fanout.Result
	Success       bool
	ExitCode      int
}

// Run executes the C13 sequence: locate the workspace root, filter the
// project set, consult plugin dispatch, and fall back to raw fan-out.
// The git-clone bootstrap exception means a command of that shape never
// reaches the fan-out fallback with zero projects.
func Run(req Request) (Outcome, error) {
	manifestPath, isYAML, err := manifest.Find(req.Cwd, req.ManifestOverride)
	if err != nil {
		if isBootstrapClone(req.CommandTokens) {
			return runBootstrapOnly(req)
		}
		return Outcome{}, err
	}
	workspaceRoot := filepath.Dir(manifestPath)

	m, err := manifest.Parse(manifestPath, isYAML)
	if err != nil {
		return Outcome{}, err
	}

	projects, err := projectset.Filter(m.Projects, projectset.Options{
		Include: req.Include,
		Exclude: req.Exclude,
		Tags:    req.Tags,
	})
	if err != nil {
		return Outcome{}, err
	}

	plugins := plugin.Discover(req.Cwd)
	if match, ok := plugin.Resolve(plugins, req.CommandTokens); ok {
		return dispatchToPlugin(req, workspaceRoot, projects, match)
	}

	if isBootstrapClone(req.CommandTokens) {
		log.Printf("bootstrap clone with no plugin handler, exiting without fan-out")
		return Outcome{ExitCode: 0, Success: true}, nil
	}

	return fanOutRaw(req, workspaceRoot, projects)
}

func runBootstrapOnly(req Request) (Outcome, error) {
	if !isBootstrapClone(req.CommandTokens) {
		return Outcome{}, fmt.Errorf("workspace-not-found: no manifest located from %s", req.Cwd)
	}
	plugins := plugin.Discover(req.Cwd)
	if match, ok := plugin.Resolve(plugins, req.CommandTokens); ok {
		return dispatchToPlugin(req, req.Cwd, nil, match)
	}
	return Outcome{ExitCode: 0, Success: true}, nil
}

func isBootstrapClone(tokens []string) bool {
	return len(tokens) >= 1 && tokens[0] == "git" && len(tokens) >= 2 && tokens[1] == "clone"
}

func dispatchToPlugin(req Request, workspaceRoot string, projects []manifest.ProjectInfo, match plugin.Match) (Outcome, error) {
	projectPaths := make([]string, len(projects))
	for i, p := range projects {
		projectPaths[i] = filepath.Join(workspaceRoot, p.Path)
	}

	pluginReq := plugin.Request{
		Command:  match.MatchedCmd,
		Args:     match.RemainingArgs,
		Projects: projectPaths,
		Cwd:      req.Cwd,
		Options: plugin.RequestOptions{
			JSONOutput: req.JSONOutput,
			Parallel:   req.Parallel,
			DryRun:     req.DryRun,
			Silent:     req.Silent,
		},
	}

	result := plugin.Dispatch(match, pluginReq)
	outcome := Outcome{PluginHandled: true, ExitCode: result.ExitCode, Success: !result.Failed}

	if result.Prose != "" {
		fmt.Fprint(os.Stdout, result.Prose)
	}
	if result.Plan != nil {
		names := make([]string, len(result.Plan.Commands))
		for i, c := range result.Plan.Commands {
			names[i] = c.Dir
		}
		results, success := fanout.RunPlan(*result.Plan, names, fanout.Options{
			DryRun:     req.DryRun,
			JSONOutput: req.JSONOutput,
			Silent:     req.Silent,
		})
		outcome.Results = results
		outcome.Success = success
		if !success {
			outcome.ExitCode = 1
		}
	}

	return outcome, nil
}

func fanOutRaw(req Request, workspaceRoot string, projects []manifest.ProjectInfo) (Outcome, error) {
	named := make([]fanout.NamedDir, len(projects))
	for i, p := range projects {
		named[i] = fanout.NamedDir{Name: p.Name, Dir: filepath.Join(workspaceRoot, p.Path)}
	}

	command := strings.Join(req.CommandTokens, " ")
	plan, names := fanout.PlanForCommand(command, named, req.Parallel)
	results, success := fanout.RunPlan(plan, names, fanout.Options{
		DryRun:     req.DryRun,
		Parallel:   req.Parallel,
		JSONOutput: req.JSONOutput,
		Silent:     req.Silent,
	})

	exitCode := 0
	if !success {
		exitCode = 1
	}
	return Outcome{Results: results, Success: success, ExitCode: exitCode}, nil
}
