package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaworkspace/meta/pkg/manifest"
)

func idx(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestExecutionOrderWithProvides(t *testing.T) {
	// U (no deps), A (-> U), B (-> A, U), W (-> provides-of-B "x")
	projects := []manifest.ProjectInfo{
		{Name: "U"},
		{Name: "A", DependsOn: []string{"U"}},
		{Name: "B", DependsOn: []string{"A", "U"}, Provides: []string{"x"}},
		{Name: "W", DependsOn: []string{"x"}},
	}
	g := Build(projects)
	order, err := g.ExecutionOrder()
	require.NoError(t, err)
	require.Len(t, order, 4)

	assert.Less(t, idx(order, "U"), idx(order, "A"))
	assert.Less(t, idx(order, "A"), idx(order, "B"))
	assert.Less(t, idx(order, "B"), idx(order, "W"))
}

func TestExecutionOrderCycleFails(t *testing.T) {
	projects := []manifest.ProjectInfo{
		{Name: "A", DependsOn: []string{"B"}},
		{Name: "B", DependsOn: []string{"A"}},
	}
	g := Build(projects)
	_, err := g.ExecutionOrder()
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"A", "B"}, cycleErr.Remaining)
}

func TestUnresolvedDependencyIsWarnedNotFatal(t *testing.T) {
	projects := []manifest.ProjectInfo{
		{Name: "A", DependsOn: []string{"ghost"}},
	}
	g := Build(projects)
	order, err := g.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, order)
	require.Len(t, g.Warnings(), 1)
}

func TestImpact(t *testing.T) {
	projects := []manifest.ProjectInfo{
		{Name: "U"},
		{Name: "A", DependsOn: []string{"U"}},
		{Name: "B", DependsOn: []string{"A"}},
		{Name: "C"},
	}
	g := Build(projects)
	impact, err := g.Impact("U")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, impact)
}

func TestCyclesDFS(t *testing.T) {
	projects := []manifest.ProjectInfo{
		{Name: "A", DependsOn: []string{"B"}},
		{Name: "B", DependsOn: []string{"C"}},
		{Name: "C", DependsOn: []string{"A"}},
	}
	g := Build(projects)
	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0], 3)
}

func TestTransitiveDependencies(t *testing.T) {
	projects := []manifest.ProjectInfo{
		{Name: "U"},
		{Name: "A", DependsOn: []string{"U"}},
		{Name: "B", DependsOn: []string{"A"}},
	}
	g := Build(projects)
	deps, err := g.TransitiveDependencies("B")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"B", "A", "U"}, deps)
}
