package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/metaworkspace/meta/pkg/guard"
)

// NewGuardCommand builds `meta guard`: the hook entry point. It reads a
// tool-use hook payload from stdin and, on a destructive-pattern match,
// writes a deny decision to stdout. It always exits zero: the guard
// never fails the hook, by design of the hook contract.
func NewGuardCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "guard",
		Short:  "Evaluate a tool-use hook payload against the destructive-command patterns",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				cwd = "."
			}
			cfg := guard.LoadConfig(cwd)
			guard.Run(os.Stdin, os.Stdout, os.Stderr, cfg)
			return nil
		},
	}
}
