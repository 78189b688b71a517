// Package projectset applies include/exclude/tag/dependency filters to a
// manifest's project list, producing an insertion-ordered subset.
package projectset

import (
	"github.com/metaworkspace/meta/pkg/depgraph"
	"github.com/metaworkspace/meta/pkg/manifest"
	"github.com/metaworkspace/meta/pkg/sliceutil"
)

// Options controls which projects Filter keeps. A nil/empty Include or
// Exclude means "no constraint"; all the Tags given must be present on a
// kept project.
type Options struct {
	Include []string
	Exclude []string
	Tags    []string

	// DependencyClosureOf, when non-empty, restricts the result to the
	// transitive closure of this project name's dependencies (consulting
	// the dependency graph).
	DependencyClosureOf string
}

// Filter applies opts to projects, preserving the manifest's original
// iteration order on ties.
func Filter(projects []manifest.ProjectInfo, opts Options) ([]manifest.ProjectInfo, error) {
	var closure map[string]struct{}
	if opts.DependencyClosureOf != "" {
		g := depgraph.Build(projects)
		names, err := g.TransitiveDependencies(opts.DependencyClosureOf)
		if err != nil {
			return nil, err
		}
		closure = make(map[string]struct{}, len(names))
		for _, n := range names {
			closure[n] = struct{}{}
		}
	}

	result := make([]manifest.ProjectInfo, 0, len(projects))
	for _, p := range projects {
		if len(opts.Include) > 0 && !sliceutil.Contains(opts.Include, p.Name) {
			continue
		}
		if len(opts.Exclude) > 0 && sliceutil.Contains(opts.Exclude, p.Name) {
			continue
		}
		if len(opts.Tags) > 0 {
			matchesAll := true
			for _, tag := range opts.Tags {
				if !sliceutil.Contains(p.Tags, tag) {
					matchesAll = false
					break
				}
			}
			if !matchesAll {
				continue
			}
		}
		if closure != nil {
			if _, ok := closure[p.Name]; !ok {
				continue
			}
		}
		result = append(result, p)
	}
	return result, nil
}
