package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/metaworkspace/meta/pkg/console"
	"github.com/metaworkspace/meta/pkg/logger"
	"github.com/metaworkspace/meta/pkg/manifest"
	"github.com/metaworkspace/meta/pkg/workspacecontext"
)

var (
	contextCache workspacecontext.Cache
	contextLog   = logger.New("meta:context")
)

// NewContextCommand builds `meta context`.
func NewContextCommand(manifestOverride *string) *cobra.Command {
	var jsonOut, noStatus, withDeps, watch bool

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Summarize the workspace: repos, branches, dirty state, dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			manifestPath, isYAML, err := manifest.Find(cwd, *manifestOverride)
			if err != nil {
				return err
			}
			workspaceRoot := filepath.Dir(manifestPath)

			render := func() error {
				m, err := manifest.Parse(manifestPath, isYAML)
				if err != nil {
					return err
				}
				return renderContext(workspaceRoot, m.Projects, jsonOut, noStatus, withDeps)
			}

			if err := render(); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndRerender(workspaceRoot, manifestPath, render)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full structure as JSON")
	cmd.Flags().BoolVar(&noStatus, "no-status", false, "Skip per-repo git status collection")
	cmd.Flags().BoolVar(&withDeps, "deps", false, "Include the dependency adjacency listing")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-render whenever the manifest or a repo's HEAD changes")
	return cmd
}

func renderContext(workspaceRoot string, projects []manifest.ProjectInfo, jsonOut, noStatus, withDeps bool) error {
	opts := workspacecontext.Options{
		Name:     filepath.Base(workspaceRoot),
		NoStatus: noStatus,
		WithDeps: withDeps,
	}

	var ctx workspacecontext.WorkspaceContext
	if cached, ok := contextCache.Get(workspaceRoot, projects); ok {
		ctx = cached
	} else {
		ctx = workspacecontext.Collect(workspaceRoot, projects, opts)
		contextCache.Put(workspaceRoot, projects, ctx)
	}

	if jsonOut {
		out, err := workspacecontext.RenderJSON(ctx)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(workspacecontext.RenderMarkdown(ctx))
	return nil
}

// watchAndRerender watches the manifest file and the .git/HEAD of every
// immediate subdirectory of workspaceRoot that has one, calling render
// again on each write, create, or rename event. Projects whose path lies
// more than one level below the workspace root are not watched. It runs
// until the process is interrupted.
func watchAndRerender(workspaceRoot, manifestPath string, render func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(manifestPath); err != nil {
		contextLog.Printf("failed to watch manifest %s: %v", manifestPath, err)
	}

	entries, _ := os.ReadDir(workspaceRoot)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		headPath := filepath.Join(workspaceRoot, e.Name(), ".git", "HEAD")
		if _, err := os.Stat(headPath); err == nil {
			if err := watcher.Add(headPath); err != nil {
				contextLog.Printf("failed to watch %s: %v", headPath, err)
			}
		}
	}

	fmt.Println(console.FormatMuted("watching for manifest and repo HEAD changes, press Ctrl+C to stop"))
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			contextLog.Printf("watch event %s on %s, re-rendering", event.Op, event.Name)
			if err := render(); err != nil {
				fmt.Println(console.FormatErrorMessage(err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			contextLog.Printf("watch error: %v", err)
		}
	}
}
