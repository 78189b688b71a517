package projectset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaworkspace/meta/pkg/manifest"
)

func sample() []manifest.ProjectInfo {
	return []manifest.ProjectInfo{
		{Name: "core"},
		{Name: "api", Tags: []string{"backend"}, DependsOn: []string{"core"}},
		{Name: "web", Tags: []string{"frontend"}},
		{Name: "worker", Tags: []string{"backend", "async"}, DependsOn: []string{"api"}},
	}
}

func TestFilterIncludeExclude(t *testing.T) {
	result, err := Filter(sample(), Options{Include: []string{"api", "web"}})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "api", result[0].Name)
	assert.Equal(t, "web", result[1].Name)

	result, err = Filter(sample(), Options{Exclude: []string{"web"}})
	require.NoError(t, err)
	names := namesOf(result)
	assert.NotContains(t, names, "web")
	assert.Equal(t, []string{"core", "api", "worker"}, names)
}

func TestFilterByTags(t *testing.T) {
	result, err := Filter(sample(), Options{Tags: []string{"backend"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "worker"}, namesOf(result))
}

func TestFilterDependencyClosure(t *testing.T) {
	result, err := Filter(sample(), Options{DependencyClosureOf: "worker"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"worker", "api", "core"}, namesOf(result))
}

func namesOf(projects []manifest.ProjectInfo) []string {
	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	return names
}
