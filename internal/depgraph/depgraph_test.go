package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/validation"
	"github.com/alexwday/report-designer/internal/workspace"
)

func twoSectionTree() []workspace.Section {
	return []workspace.Section{
		{
			ID: "sec-1", Position: 1,
			Subsections: []workspace.Subsection{
				{ID: "sub-a", SectionID: "sec-1", Position: 1},
				{ID: "sub-b", SectionID: "sec-1", Position: 2},
			},
		},
		{
			ID: "sec-2", Position: 2,
			Subsections: []workspace.Subsection{
				{ID: "sub-c", SectionID: "sec-2", Position: 1},
				{ID: "sub-d", SectionID: "sec-2", Position: 2},
			},
		},
	}
}

// ==== Dependency Expansion ====

func TestExpandDependenciesSectionReference(t *testing.T) {
	ix := NewIndex(twoSectionTree())

	deps := ix.ExpandDependencies("sub-c", validation.Dependencies{
		SectionIDs: []string{"sec-1"},
	})
	assert.Equal(t, []string{"sub-a", "sub-b"}, deps)
}

func TestExpandDependenciesNeverSelfReferences(t *testing.T) {
	ix := NewIndex(twoSectionTree())

	// Explicit self-listing and membership in a referenced section both
	// drop out.
	deps := ix.ExpandDependencies("sub-b", validation.Dependencies{
		SectionIDs:    []string{"sec-1"},
		SubsectionIDs: []string{"sub-b", "sub-c"},
	})
	assert.NotContains(t, deps, "sub-b")
	assert.Equal(t, []string{"sub-a", "sub-c"}, deps)
}

func TestExpandDependenciesDeduplicates(t *testing.T) {
	ix := NewIndex(twoSectionTree())

	deps := ix.ExpandDependencies("sub-d", validation.Dependencies{
		SectionIDs:    []string{"sec-1"},
		SubsectionIDs: []string{"sub-a", "sub-c"},
	})
	assert.Equal(t, []string{"sub-a", "sub-b", "sub-c"}, deps)
}

// ==== Topological Order ====

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	ix := NewIndex(twoSectionTree())
	ids := []string{"sub-a", "sub-b", "sub-c", "sub-d"}
	dependsOn := map[string][]string{
		"sub-a": {"sub-d"},
	}

	order, err := ix.TopologicalOrder(ids, dependsOn)
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["sub-d"], pos["sub-a"])
}

func TestTopologicalOrderNaturalDocumentOrderTieBreak(t *testing.T) {
	// Two unrelated subsections at (section 2, position 1) and
	// (section 1, position 2): document order wins.
	sections := []workspace.Section{
		{ID: "sec-1", Position: 1, Subsections: []workspace.Subsection{
			{ID: "later", SectionID: "sec-1", Position: 2},
		}},
		{ID: "sec-2", Position: 2, Subsections: []workspace.Subsection{
			{ID: "earlier-section-two", SectionID: "sec-2", Position: 1},
		}},
	}
	ix := NewIndex(sections)

	order, err := ix.TopologicalOrder([]string{"earlier-section-two", "later"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"later", "earlier-section-two"}, order)
}

func TestTopologicalOrderIgnoresOutOfBatchDependencies(t *testing.T) {
	ix := NewIndex(twoSectionTree())

	order, err := ix.TopologicalOrder([]string{"sub-a", "sub-b"}, map[string][]string{
		"sub-a": {"sub-d"}, // not in this batch
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sub-a", "sub-b"}, order)
}

func TestTopologicalOrderRejectsSelfCycle(t *testing.T) {
	ix := NewIndex(twoSectionTree())

	order, err := ix.TopologicalOrder([]string{"sub-a"}, map[string][]string{
		"sub-a": {"sub-a"},
	})
	require.Error(t, err)
	assert.Nil(t, order)
	assert.Contains(t, err.Error(), "Circular subsection dependency detected on subsection 'sub-a'")
}

func TestTopologicalOrderRejectsCycle(t *testing.T) {
	ix := NewIndex(twoSectionTree())

	order, err := ix.TopologicalOrder([]string{"sub-a", "sub-b", "sub-c"}, map[string][]string{
		"sub-a": {"sub-b"},
		"sub-b": {"sub-a"},
	})
	require.Error(t, err)
	assert.Nil(t, order)
	assert.Contains(t, err.Error(), "Circular subsection dependencies detected: sub-a, sub-b")
}

func TestTopologicalOrderIsValidLinearization(t *testing.T) {
	ix := NewIndex(twoSectionTree())
	ids := []string{"sub-a", "sub-b", "sub-c", "sub-d"}
	dependsOn := map[string][]string{
		"sub-b": {"sub-a"},
		"sub-c": {"sub-b"},
		"sub-d": {"sub-b", "sub-a"},
	}

	order, err := ix.TopologicalOrder(ids, dependsOn)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	for dependent, deps := range dependsOn {
		for _, dep := range deps {
			assert.Less(t, pos[dep], pos[dependent],
				"%s must precede %s", dep, dependent)
		}
	}
}
