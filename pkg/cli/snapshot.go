package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/metaworkspace/meta/pkg/console"
	"github.com/metaworkspace/meta/pkg/manifest"
	"github.com/metaworkspace/meta/pkg/snapshot"
)

// NewSnapshotCommand builds `meta snapshot {create,list,restore,delete}`.
func NewSnapshotCommand() *cobra.Command {
	var manifestOverride string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture and restore per-project git state for rollback",
	}
	cmd.PersistentFlags().StringVar(&manifestOverride, "manifest", "", "Manifest filename to use instead of the default search order")

	cmd.AddCommand(newSnapshotCreateCommand(&manifestOverride))
	cmd.AddCommand(newSnapshotListCommand(&manifestOverride))
	cmd.AddCommand(newSnapshotRestoreCommand(&manifestOverride))
	cmd.AddCommand(newSnapshotDeleteCommand(&manifestOverride))
	return cmd
}

func loadWorkspace(manifestOverride string) (workspaceRoot string, m *manifest.Manifest, err error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, err
	}
	manifestPath, isYAML, err := manifest.Find(cwd, manifestOverride)
	if err != nil {
		return "", nil, err
	}
	workspaceRoot = filepath.Dir(manifestPath)
	m, err = manifest.Parse(manifestPath, isYAML)
	return workspaceRoot, m, err
}

func newSnapshotCreateCommand(manifestOverride *string) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Capture the current branch/HEAD/dirty-state of every cloned project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, m, err := loadWorkspace(*manifestOverride)
			if err != nil {
				return err
			}
			snap, err := snapshot.Capture(args[0], workspaceRoot, m.Projects, description)
			if err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("captured %q (%d projects)", snap.Name, len(snap.Projects))))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Optional free-text description")
	return cmd
}

func newSnapshotListCommand(manifestOverride *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, _, err := loadWorkspace(*manifestOverride)
			if err != nil {
				return err
			}
			snaps, err := snapshot.List(workspaceRoot)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(snaps))
			for _, s := range snaps {
				rows = append(rows, []string{s.Name, s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), fmt.Sprintf("%d", len(s.Projects)), s.Description})
			}
			fmt.Println(console.Table([]string{"Name", "Created At", "Projects", "Description"}, rows))
			return nil
		},
	}
}

func newSnapshotRestoreCommand(manifestOverride *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Reset every snapshotted project back to its captured branch/HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, _, err := loadWorkspace(*manifestOverride)
			if err != nil {
				return err
			}
			snap, err := snapshot.Load(workspaceRoot, args[0])
			if err != nil {
				return err
			}
			result := snapshot.Restore(workspaceRoot, snap, force)
			for _, name := range result.Restored {
				fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("restored %s", name)))
			}
			for name, reason := range result.Failed {
				fmt.Println(console.FormatErrorMessage(fmt.Sprintf("%s: %s", name, reason)))
			}
			for _, warning := range result.Warnings {
				fmt.Println(console.FormatWarningMessage(warning))
			}
			if len(result.Failed) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Stash dirty working trees before restoring instead of failing")
	return cmd
}

func newSnapshotDeleteCommand(manifestOverride *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a persisted snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, _, err := loadWorkspace(*manifestOverride)
			if err != nil {
				return err
			}
			if err := snapshot.Delete(workspaceRoot, args[0]); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("deleted %q", args[0])))
			return nil
		},
	}
}
