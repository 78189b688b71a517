// Package depgraph builds, validates, and queries the inter-project
// dependency graph declared via each project's depends_on/provides
// manifest fields. Nodes are stored in a flat table and edges are integer
// indices, sidestepping the ownership cycles a bidirectional
// parent/child pointer graph would introduce.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/metaworkspace/meta/pkg/logger"
	"github.com/metaworkspace/meta/pkg/manifest"
)

var log = logger.New("meta:depgraph")

// Graph is an arena-indexed dependency graph: Nodes[i] depends on
// Nodes[j] for every j in Edges[i].
type Graph struct {
	Nodes    []string
	Edges    [][]int
	indexOf  map[string]int
	warnings []string
}

// Warnings returns the non-fatal warnings accumulated while resolving
// depends_on entries and duplicate providers.
func (g *Graph) Warnings() []string { return g.warnings }

// Build constructs a Graph from a project list. Pass 1 registers node
// names and the providers index (each provides entry maps to a project
// name, last writer wins on collision). Pass 2 resolves each
// depends_on entry against a project name first, then the providers
// index; unresolved entries are warned and skipped.
func Build(projects []manifest.ProjectInfo) *Graph {
	g := &Graph{indexOf: make(map[string]int, len(projects))}
	for i, p := range projects {
		g.Nodes = append(g.Nodes, p.Name)
		g.indexOf[p.Name] = i
	}
	g.Edges = make([][]int, len(projects))

	providers := make(map[string]string)
	for _, p := range projects {
		for _, provided := range p.Provides {
			if existing, ok := providers[provided]; ok && existing != p.Name {
				g.warn(fmt.Sprintf("provider %q declared by %q is redeclared by %q; last writer wins", provided, existing, p.Name))
			}
			providers[provided] = p.Name
		}
	}

	for i, p := range projects {
		for _, dep := range p.DependsOn {
			if depIdx, ok := g.indexOf[dep]; ok {
				g.Edges[i] = append(g.Edges[i], depIdx)
				continue
			}
			if providerName, ok := providers[dep]; ok {
				g.Edges[i] = append(g.Edges[i], g.indexOf[providerName])
				continue
			}
			g.warn(fmt.Sprintf("project %q depends_on unresolved entry %q", p.Name, dep))
		}
	}
	return g
}

func (g *Graph) warn(msg string) {
	log.Printf("%s", msg)
	g.warnings = append(g.warnings, msg)
}

// CycleError is returned by ExecutionOrder when the graph is not acyclic.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency-cycle: nodes not resolvable to a topological order: %v", e.Remaining)
}

// ExecutionOrder returns a topological order (dependencies before
// dependents) using Kahn's algorithm. If the result does not cover every
// node, the graph contains a cycle.
func (g *Graph) ExecutionOrder() ([]string, error) {
	n := len(g.Nodes)
	inDegree := make([]int, n)
	// inDegree counts dependents' dependencies, so build reverse adjacency:
	// dependents[j] = list of i such that i depends on j.
	dependents := make([][]int, n)
	for i, deps := range g.Edges {
		inDegree[i] = len(deps)
		for _, j := range deps {
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	sort.Ints(queue)

	order := make([]string, 0, n)
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		order = append(order, g.Nodes[idx])
		next := make([]int, 0)
		for _, dependent := range dependents[idx] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		sort.Ints(next)
		queue = append(queue, next...)
	}

	if len(order) != n {
		remaining := make([]string, 0, n-len(order))
		done := make(map[string]struct{}, len(order))
		for _, name := range order {
			done[name] = struct{}{}
		}
		for _, name := range g.Nodes {
			if _, ok := done[name]; !ok {
				remaining = append(remaining, name)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}
	return order, nil
}

// Impact returns the direct and transitive dependents of project (every
// node whose dependency chain includes it), via BFS over reverse edges.
func (g *Graph) Impact(project string) ([]string, error) {
	startIdx, ok := g.indexOf[project]
	if !ok {
		return nil, fmt.Errorf("unknown project %q", project)
	}

	dependents := make([][]int, len(g.Nodes))
	for i, deps := range g.Edges {
		for _, j := range deps {
			dependents[j] = append(dependents[j], i)
		}
	}

	visited := map[int]bool{startIdx: true}
	queue := []int{startIdx}
	var result []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dependent := range dependents[cur] {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			result = append(result, g.Nodes[dependent])
			queue = append(queue, dependent)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Cycles returns every cycle found via DFS with a recursion-stack set; each
// back-edge contributes the path slice from the back-edge target onward.
func (g *Graph) Cycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.Nodes))
	var stack []int
	var cycles [][]string

	var visit func(i int)
	visit = func(i int) {
		color[i] = gray
		stack = append(stack, i)
		for _, j := range g.Edges[i] {
			switch color[j] {
			case white:
				visit(j)
			case gray:
				// Found a back-edge into j; extract the cycle path.
				for k, idx := range stack {
					if idx == j {
						path := append([]int{}, stack[k:]...)
						names := make([]string, len(path))
						for m, p := range path {
							names[m] = g.Nodes[p]
						}
						cycles = append(cycles, names)
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
	}

	for i := range g.Nodes {
		if color[i] == white {
			visit(i)
		}
	}
	return cycles
}

// TransitiveDependencies returns project and everything it (transitively)
// depends on, via BFS over forward edges. Used by the project filter's
// "transitive closure of X" dependency predicate.
func (g *Graph) TransitiveDependencies(project string) ([]string, error) {
	startIdx, ok := g.indexOf[project]
	if !ok {
		return nil, fmt.Errorf("unknown project %q", project)
	}
	visited := map[int]bool{startIdx: true}
	queue := []int{startIdx}
	result := []string{project}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, j := range g.Edges[cur] {
			if visited[j] {
				continue
			}
			visited[j] = true
			result = append(result, g.Nodes[j])
			queue = append(queue, j)
		}
	}
	return result, nil
}
