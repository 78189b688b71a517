// Package workspacecontext composes a whole-workspace summary (repos,
// branches, dirty counts, dependencies) for human or machine
// consumption. A short-TTL Cache lets repeated renders within one
// process (such as `meta context --watch`) reuse a computed summary; the
// cache is held in memory only and is not persisted, so separate
// invocations each run their own git probes. A single typed report
// struct renders to either Markdown or JSON.
package workspacecontext

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/metaworkspace/meta/pkg/depgraph"
	"github.com/metaworkspace/meta/pkg/logger"
	"github.com/metaworkspace/meta/pkg/manifest"
	"github.com/metaworkspace/meta/pkg/reposcan"
)

var log = logger.New("meta:workspacecontext")

// RepoContext is one project's summarized state. Pointer fields are nil
// when no_status was requested, so the Markdown renderer can omit whole
// columns instead of printing a column of empty cells.
type RepoContext struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Remote        string   `json:"remote,omitempty"`
	Branch        *string  `json:"branch,omitempty"`
	Dirty         *bool    `json:"dirty,omitempty"`
	ModifiedCount *int     `json:"modified_count,omitempty"`
	Ahead         *int     `json:"ahead,omitempty"`
	Behind        *int     `json:"behind,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// DependencyEdge is one project's sorted depends_on list, for the
// adjacency-list dependency section.
type DependencyEdge struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
}

// WorkspaceContext is the full composed summary.
type WorkspaceContext struct {
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	RepoCount    int              `json:"repo_count"`
	Repos        []RepoContext    `json:"repos"`
	Commands     []string         `json:"commands,omitempty"`
	Dependencies []DependencyEdge `json:"dependencies,omitempty"`
}

// Options controls one Collect call.
type Options struct {
	Name        string
	Description string
	Commands    []string
	NoStatus    bool
	WithDeps    bool
}

// Collect computes a WorkspaceContext for the given projects rooted at
// workspaceRoot. Per-repo git state is gathered in parallel unless
// opts.NoStatus is set.
func Collect(workspaceRoot string, projects []manifest.ProjectInfo, opts Options) WorkspaceContext {
	ctx := WorkspaceContext{
		Name:        opts.Name,
		Description: opts.Description,
		RepoCount:   len(projects),
		Commands:    opts.Commands,
		Repos:       make([]RepoContext, len(projects)),
	}

	if opts.NoStatus {
		for i, p := range projects {
			ctx.Repos[i] = RepoContext{Name: p.Name, Path: p.Path, Remote: p.Repo, Tags: p.Tags}
		}
	} else {
		p := pool.New().WithMaxGoroutines(maxParallelism())
		for i, proj := range projects {
			i, proj := i, proj
			p.Go(func() {
				ctx.Repos[i] = collectOne(workspaceRoot, proj)
			})
		}
		p.Wait()
	}

	if opts.WithDeps {
		ctx.Dependencies = buildDependencyEdges(projects)
	}

	return ctx
}

func collectOne(workspaceRoot string, p manifest.ProjectInfo) RepoContext {
	absPath := filepath.Join(workspaceRoot, p.Path)
	rc := RepoContext{Name: p.Name, Path: p.Path, Remote: p.Repo, Tags: p.Tags}

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err != nil {
		return rc
	}

	state := reposcan.Collect(p, absPath)
	branch := state.Branch
	rc.Branch = &branch
	dirty := state.IsDirty
	rc.Dirty = &dirty
	modified := state.ModifiedCount
	rc.ModifiedCount = &modified
	ahead := state.Ahead
	rc.Ahead = &ahead
	behind := state.Behind
	rc.Behind = &behind
	return rc
}

func buildDependencyEdges(projects []manifest.ProjectInfo) []DependencyEdge {
	graph := depgraph.Build(projects)
	edges := make([]DependencyEdge, 0, len(projects))
	for i, name := range graph.Nodes {
		deps := make([]string, 0, len(graph.Edges[i]))
		for _, j := range graph.Edges[i] {
			deps = append(deps, graph.Nodes[j])
		}
		sort.Strings(deps)
		edges = append(edges, DependencyEdge{Name: name, DependsOn: deps})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Name < edges[j].Name })
	return edges
}

func maxParallelism() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// RenderJSON encodes ctx as JSON.
func RenderJSON(ctx WorkspaceContext) (string, error) {
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RenderMarkdown renders ctx as the default human-facing report: a
// header, a repo table whose columns are restricted to fields present
// on at least one repo, a key-commands block, and an optional
// dependency adjacency listing.
func RenderMarkdown(ctx WorkspaceContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", nonEmpty(ctx.Name, "Workspace"))
	if ctx.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", ctx.Description)
	}
	fmt.Fprintf(&b, "%d repositories\n\n", ctx.RepoCount)

	renderRepoTable(&b, ctx.Repos)

	if len(ctx.Commands) > 0 {
		fmt.Fprintf(&b, "\n## Commands\n\n")
		for _, c := range ctx.Commands {
			fmt.Fprintf(&b, "- `%s`\n", c)
		}
	}

	if len(ctx.Dependencies) > 0 {
		fmt.Fprintf(&b, "\n## Dependencies\n\n")
		for _, e := range ctx.Dependencies {
			if len(e.DependsOn) == 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s → %s\n", e.Name, strings.Join(e.DependsOn, ", "))
		}
	}

	return b.String()
}

func renderRepoTable(b *strings.Builder, repos []RepoContext) {
	hasBranch, hasDirty, hasModified, hasAhead, hasBehind := false, false, false, false, false
	for _, r := range repos {
		hasBranch = hasBranch || r.Branch != nil
		hasDirty = hasDirty || r.Dirty != nil
		hasModified = hasModified || r.ModifiedCount != nil
		hasAhead = hasAhead || r.Ahead != nil
		hasBehind = hasBehind || r.Behind != nil
	}

	headers := []string{"Name", "Path"}
	if hasBranch {
		headers = append(headers, "Branch")
	}
	if hasDirty {
		headers = append(headers, "Dirty")
	}
	if hasModified {
		headers = append(headers, "Modified")
	}
	if hasAhead {
		headers = append(headers, "Ahead")
	}
	if hasBehind {
		headers = append(headers, "Behind")
	}

	fmt.Fprintln(b, strings.Join(headers, " | "))
	fmt.Fprintln(b, strings.Join(dashes(len(headers)), " | "))
	for _, r := range repos {
		row := []string{r.Name, r.Path}
		if hasBranch {
			row = append(row, derefStr(r.Branch))
		}
		if hasDirty {
			row = append(row, derefBool(r.Dirty))
		}
		if hasModified {
			row = append(row, derefInt(r.ModifiedCount))
		}
		if hasAhead {
			row = append(row, derefInt(r.Ahead))
		}
		if hasBehind {
			row = append(row, derefInt(r.Behind))
		}
		fmt.Fprintln(b, strings.Join(row, " | "))
	}
}

func dashes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "---"
	}
	return out
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "yes"
	}
	return "no"
}

func derefInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// cacheEntry is one cached WorkspaceContext plus the signals used to
// invalidate it.
type cacheEntry struct {
	workspaceRoot string
	computedAt    time.Time
	context       WorkspaceContext
	refMtimes     map[string]time.Time // project name -> newest known .git ref mtime
}

// Cache holds the single most-recently-computed WorkspaceContext, valid
// for 30 seconds unless invalidated sooner by a ref mtime change.
type Cache struct {
	mu    sync.Mutex
	entry *cacheEntry
}

const ttl = 30 * time.Second

// Get returns a cached context for workspaceRoot if it is still valid,
// per the invalidation rule: workspace root differs, TTL elapsed, or
// any known repo's .git/HEAD or tracked-branch ref has a newer mtime
// than when the cache was computed. A repo with no .git directory never
// invalidates the cache (it may simply be uncloned).
func (c *Cache) Get(workspaceRoot string, projects []manifest.ProjectInfo) (WorkspaceContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil || c.entry.workspaceRoot != workspaceRoot {
		return WorkspaceContext{}, false
	}
	if time.Since(c.entry.computedAt) > ttl {
		return WorkspaceContext{}, false
	}

	for _, p := range projects {
		mtime, ok := refMtime(filepath.Join(workspaceRoot, p.Path))
		if !ok {
			continue
		}
		known, had := c.entry.refMtimes[p.Name]
		if !had || mtime.After(known) {
			return WorkspaceContext{}, false
		}
	}

	return c.entry.context, true
}

// Put stores ctx as the cached value for workspaceRoot, snapshotting
// each project's current ref mtime for future invalidation checks.
func (c *Cache) Put(workspaceRoot string, projects []manifest.ProjectInfo, ctx WorkspaceContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	refMtimes := make(map[string]time.Time, len(projects))
	for _, p := range projects {
		if mtime, ok := refMtime(filepath.Join(workspaceRoot, p.Path)); ok {
			refMtimes[p.Name] = mtime
		}
	}
	c.entry = &cacheEntry{
		workspaceRoot: workspaceRoot,
		computedAt:    time.Now(),
		context:       ctx,
		refMtimes:     refMtimes,
	}
}

// refMtime returns the newest mtime across .git/HEAD and the branch ref
// it points to, for repos that have a .git directory at all.
func refMtime(absPath string) (time.Time, bool) {
	gitDir := filepath.Join(absPath, ".git")
	headPath := filepath.Join(gitDir, "HEAD")
	headInfo, err := os.Stat(headPath)
	if err != nil {
		return time.Time{}, false
	}
	newest := headInfo.ModTime()

	headBytes, err := os.ReadFile(headPath)
	if err == nil {
		content := strings.TrimSpace(string(headBytes))
		if strings.HasPrefix(content, "ref: ") {
			refPath := filepath.Join(gitDir, strings.TrimPrefix(content, "ref: "))
			if refInfo, err := os.Stat(refPath); err == nil && refInfo.ModTime().After(newest) {
				newest = refInfo.ModTime()
			}
		}
	}
	return newest, true
}
