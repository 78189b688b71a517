// Package cli wires the core packages into Cobra subcommands: the
// explicit built-ins (snapshot, query, context, worktree, batch, guard)
// plus the raw fan-out/plugin-dispatch fallback every other command
// line takes. Each subcommand is built by its own NewXCommand()
// constructor returning a configured *cobra.Command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metaworkspace/meta/pkg/console"
	"github.com/metaworkspace/meta/pkg/dispatch"
)

// fanoutFlags are the option flags shared by every command that ends up
// consulting the dispatcher, mirroring the CLI surface the dispatcher's
// Request expects.
type fanoutFlags struct {
	include  []string
	exclude  []string
	tags     []string
	parallel bool
	dryRun   bool
	jsonOut  bool
	silent   bool
}

func addFanoutFlags(cmd *cobra.Command, f *fanoutFlags) {
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "Only operate on these project names")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Exclude these project names")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Only operate on projects carrying all of these tags")
	cmd.Flags().BoolVar(&f.parallel, "parallel", false, "Run across projects concurrently")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print what would run without executing it")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Emit machine-readable JSON output")
	cmd.Flags().BoolVar(&f.silent, "silent", false, "Suppress per-project command output")
}

// NewRootCommand builds the root `meta` command: its own subcommands
// plus a catch-all that forwards any unrecognized command line through
// the dispatcher (plugin routing, then raw fan-out).
func NewRootCommand(version string) *cobra.Command {
	var manifestOverride string
	flags := &fanoutFlags{}

	root := &cobra.Command{
		Use:     "meta",
		Short:   "Operate on many git repositories as one workspace",
		Version: version,
		Long: `meta orchestrates a workspace of git repositories declared in a
.meta manifest: filtering a project set, fanning a command out across
it, and layering snapshots, queries, and plugins on top.

Common tasks:
  meta snapshot create before-refactor   # capture workspace state
  meta query "dirty:true AND tag:backend" # select projects by predicate
  meta context                           # summarize the workspace
  meta git status                        # fan a git command out`,
		DisableFlagParsing: false,
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runDispatch(cmd, args, manifestOverride, flags)
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output (also controlled by DEBUG=meta:*)")
	root.PersistentFlags().StringVar(&manifestOverride, "manifest", "", "Manifest filename to use instead of the default search order")
	addFanoutFlags(root, flags)
	root.FParseErrWhitelist.UnknownFlags = true

	root.AddCommand(NewSnapshotCommand())
	root.AddCommand(NewQueryCommand(&manifestOverride))
	root.AddCommand(NewContextCommand(&manifestOverride))
	root.AddCommand(NewWorktreeCommand())
	root.AddCommand(NewBatchCommand(&manifestOverride))
	root.AddCommand(NewGuardCommand())

	return root
}

func runDispatch(cmd *cobra.Command, args []string, manifestOverride string, flags *fanoutFlags) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	outcome, err := dispatch.Run(dispatch.Request{
		Cwd:              cwd,
		ManifestOverride: manifestOverride,
		CommandTokens:    args,
		Include:          flags.include,
		Exclude:          flags.exclude,
		Tags:             flags.tags,
		Parallel:         flags.parallel,
		DryRun:           flags.dryRun,
		JSONOutput:       flags.jsonOut,
		Silent:           flags.silent,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
	if !outcome.Success {
		os.Exit(nonZeroExit(outcome.ExitCode))
	}
	return nil
}

func nonZeroExit(code int) int {
	if code == 0 {
		return 1
	}
	return code
}
