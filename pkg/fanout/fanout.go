// Package fanout executes a command (or a plugin-supplied execution plan)
// across a set of project directories, sequentially or in parallel, with
// dry-run support and structured per-project result capture. Parallel
// execution uses a sourcegraph/conc worker pool bounded by available
// CPUs.
package fanout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sourcegraph/conc/pool"

	"github.com/metaworkspace/meta/pkg/console"
	"github.com/metaworkspace/meta/pkg/logger"
)

var log = logger.New("meta:fanout")

// PlanCommand is one (directory, command, env) tuple within an
// ExecutionPlan, the unit plugins use to delegate work back to this
// engine.
type PlanCommand struct {
	Dir string
	Cmd string
	Env map[string]string
}

// ExecutionPlan is the sole means by which a plugin delegates work to the
// fan-out engine.
type ExecutionPlan struct {
	Commands []PlanCommand
	Parallel bool
}

// Options controls how a fan-out run behaves.
type Options struct {
	DryRun       bool
	Parallel     bool
	JSONOutput   bool
	Silent       bool
	StaggerDelay time.Duration
	Out          *os.File // defaults to os.Stdout when nil

	// StopOnFailure halts a sequential run after the first project
	// failure instead of continuing through the rest of the plan. It is
	// ignored in parallel mode, where an unknown subset of projects may
	// already be in flight by the time a failure is observed. The
	// atomic batch (C8) is the one caller that sets this: rollback
	// depends on a well-defined "first failing project" boundary.
	StopOnFailure bool
}

// Result captures one project's outcome.
type Result struct {
	Project  string `json:"project"`
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// NamedDir pairs a project name with the directory to run commands in,
// used to build a plan from an ordered project list while preserving
// manifest order for sequential runs and result reporting.
type NamedDir struct {
	Name string
	Dir  string
}

// PlanForCommand builds an ExecutionPlan that runs the same command string
// against each ordered project directory, returning the plan alongside the
// parallel names slice RunPlan expects.
func PlanForCommand(command string, projects []NamedDir, parallel bool) (ExecutionPlan, []string) {
	plan := ExecutionPlan{Parallel: parallel}
	names := make([]string, len(projects))
	for i, p := range projects {
		plan.Commands = append(plan.Commands, PlanCommand{Dir: p.Dir, Cmd: command})
		names[i] = p.Name
	}
	return plan, names
}

// RunPlan executes a plugin-returned ExecutionPlan. names[i] labels
// plan.Commands[i] for result reporting; pass nil to label by directory.
func RunPlan(plan ExecutionPlan, names []string, opts Options) ([]Result, bool) {
	if names == nil {
		names = make([]string, len(plan.Commands))
		for i, c := range plan.Commands {
			names[i] = c.Dir
		}
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	results := make([]Result, len(plan.Commands))
	execOne := func(i int) {
		cmd := plan.Commands[i]
		name := names[i]

		if opts.DryRun {
			results[i] = Result{Project: name, Success: true}
			if !opts.JSONOutput {
				fmt.Fprintln(out, console.FormatInfoMessage(fmt.Sprintf("[dry-run] %s: would run %q in %s", name, cmd.Cmd, cmd.Dir)))
			}
			return
		}

		res := execute(name, cmd)
		results[i] = res
		if !opts.JSONOutput && !opts.Silent {
			writeHuman(out, res)
		}
	}

	runParallel := opts.Parallel || plan.Parallel
	if runParallel {
		p := pool.New().WithMaxGoroutines(workerCount())
		for i := range plan.Commands {
			i := i
			p.Go(func() {
				if opts.StaggerDelay > 0 {
					time.Sleep(time.Duration(i) * opts.StaggerDelay / time.Duration(max(1, len(plan.Commands))))
				}
				execOne(i)
			})
		}
		p.Wait()
	} else {
		ran := 0
		for i := range plan.Commands {
			execOne(i)
			ran = i + 1
			if opts.StopOnFailure && !results[i].Success {
				break
			}
			if opts.StaggerDelay > 0 && i < len(plan.Commands)-1 {
				time.Sleep(opts.StaggerDelay)
			}
		}
		results = results[:ran]
	}

	if opts.JSONOutput {
		emitJSON(out, results)
	}

	overallSuccess := true
	for _, r := range results {
		if !r.Success {
			overallSuccess = false
			break
		}
	}
	return results, overallSuccess
}

func execute(name string, cmd PlanCommand) Result {
	shell := exec.Command("sh", "-c", cmd.Cmd)
	shell.Dir = cmd.Dir
	shell.Env = os.Environ()
	for k, v := range cmd.Env {
		shell.Env = append(shell.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	shell.Stdout = &stdout
	shell.Stderr = &stderr

	err := shell.Run()
	exitCode := 0
	success := true
	if err != nil {
		success = false
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		log.Printf("project %s command failed: %v", name, err)
	}

	return Result{
		Project:  name,
		Success:  success,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

func writeHuman(out *os.File, res Result) {
	fmt.Fprintln(out, console.ProjectHeader(res.Project))
	if res.Stdout != "" {
		fmt.Fprint(out, res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprint(out, res.Stderr)
	}
	if !res.Success {
		fmt.Fprintln(out, console.FormatErrorMessage(fmt.Sprintf("%s exited %d", res.Project, res.ExitCode)))
	}
}

func emitJSON(out *os.File, results []Result) {
	data, err := json.Marshal(results)
	if err != nil {
		log.Printf("encoding --json results failed: %v", err)
		return
	}
	fmt.Fprintln(out, string(data))
}

func workerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// NewSpinner returns a spinner for interactive (TTY) progress feedback
// during a long fan-out; callers should call Start/Stop around the run and
// skip it entirely in --json or non-TTY modes.
func NewSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
