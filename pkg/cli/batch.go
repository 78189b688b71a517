package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/metaworkspace/meta/pkg/atomicbatch"
	"github.com/metaworkspace/meta/pkg/console"
	"github.com/metaworkspace/meta/pkg/projectset"
)

// NewBatchCommand builds `meta batch -- <command...>`: snapshot, run
// sequentially, auto-rollback on the first project failure.
func NewBatchCommand(manifestOverride *string) *cobra.Command {
	flags := &fanoutFlags{}

	cmd := &cobra.Command{
		Use:   "batch -- <command...>",
		Short: "Run a command across projects with an automatic rollback on failure",
		Long: `batch snapshots the workspace, then runs the given command against
each project in manifest order. If any project's command fails, every
project is reset back to its pre-batch branch and HEAD.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, m, err := loadWorkspace(*manifestOverride)
			if err != nil {
				return err
			}

			projects, err := projectset.Filter(m.Projects, projectset.Options{
				Include: flags.include,
				Exclude: flags.exclude,
				Tags:    flags.tags,
			})
			if err != nil {
				return err
			}

			snapshotName := "batch-" + uuid.NewString()
			command := strings.Join(args, " ")

			result, err := atomicbatch.Execute(command, snapshotName, workspaceRoot, projects, os.Stdout)
			if err != nil {
				return err
			}

			if result.RolledBack {
				fmt.Println(console.FormatWarningMessage(fmt.Sprintf("batch failed, rolled back to pre-batch state (snapshot %q)", result.SnapshotName)))
				if result.Rollback != nil {
					for name, reason := range result.Rollback.Failed {
						fmt.Println(console.FormatErrorMessage(fmt.Sprintf("rollback of %s failed: %s", name, reason)))
					}
				}
				os.Exit(1)
			}

			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("batch succeeded across %d projects", len(result.Results))))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&flags.include, "include", nil, "Only operate on these project names")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "Exclude these project names")
	cmd.Flags().StringSliceVar(&flags.tags, "tag", nil, "Only operate on projects carrying all of these tags")
	return cmd
}
