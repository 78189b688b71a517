package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/metaworkspace/meta/pkg/console"
	"github.com/metaworkspace/meta/pkg/manifest"
	"github.com/metaworkspace/meta/pkg/query"
	"github.com/metaworkspace/meta/pkg/reposcan"
)

// NewQueryCommand builds `meta query <predicate>`.
func NewQueryCommand(manifestOverride *string) *cobra.Command {
	var namesOnly bool

	cmd := &cobra.Command{
		Use:   "query <predicate>",
		Short: "Select projects matching a dirty/branch/tag/age predicate",
		Long: `Evaluates a conjunction of field:value conditions against each
project's observed git state, e.g.:

  meta query "dirty:true AND tag:backend AND branch:main"
  meta query "modified_in:2d"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query.Parse(args[0])
			if err != nil {
				return err
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			manifestPath, isYAML, err := manifest.Find(cwd, *manifestOverride)
			if err != nil {
				return err
			}
			workspaceRoot := filepath.Dir(manifestPath)
			m, err := manifest.Parse(manifestPath, isYAML)
			if err != nil {
				return err
			}

			now := time.Now()
			var matched []string
			for _, p := range m.Projects {
				absPath := filepath.Join(workspaceRoot, p.Path)
				state := reposcan.Collect(p, absPath)
				if q.Matches(state, now) {
					matched = append(matched, p.Name)
				}
			}

			if namesOnly {
				fmt.Println(strings.Join(matched, "\n"))
				return nil
			}
			for _, name := range matched {
				fmt.Println(console.FormatSuccessMessage(name))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&namesOnly, "names-only", false, "Print one matching project name per line, no styling")
	return cmd
}
