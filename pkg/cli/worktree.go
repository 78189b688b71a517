package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metaworkspace/meta/pkg/console"
	"github.com/metaworkspace/meta/pkg/worktree"
)

// NewWorktreeCommand builds `meta worktree list`.
func NewWorktreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worktree",
		Short: "Inspect .worktrees/<set> layouts",
	}

	listCmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List the member checkouts of a worktree set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if path == "." {
				path = cwd
			}

			set, ok := worktree.Detect(path)
			if !ok {
				return fmt.Errorf("no .worktrees component found in %s", path)
			}

			members, err := worktree.Members(set.Dir)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(members))
			for _, m := range members {
				rows = append(rows, []string{m.Alias, m.Dir, m.PrimaryCheckout})
			}
			fmt.Println(console.Table([]string{"Alias", "Dir", "Primary Checkout"}, rows))
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	return cmd
}
