// Package depgraph expands section/subsection dependency references into a
// per-subsection dependency map and produces a deterministic generation
// order over it.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/validation"
	"github.com/alexwday/report-designer/internal/workspace"
)

// Subsections that are referenced but unknown to the tree sort after every
// real position, in id order.
const unknownPosition = 10_000_000

// Index holds the positional facts of a template's tree needed for
// dependency expansion and tie-breaking.
type Index struct {
	sectionSubs   map[string][]string
	sectionPos    map[string]int
	subsectionPos map[string]int
}

// NewIndex builds an Index from the section tree.
func NewIndex(sections []workspace.Section) *Index {
	ix := &Index{
		sectionSubs:   map[string][]string{},
		sectionPos:    map[string]int{},
		subsectionPos: map[string]int{},
	}
	for _, sec := range sections {
		ids := make([]string, 0, len(sec.Subsections))
		for _, sub := range sec.Subsections {
			ids = append(ids, sub.ID)
			ix.sectionPos[sub.ID] = sec.Position
			ix.subsectionPos[sub.ID] = sub.Position
		}
		ix.sectionSubs[sec.ID] = ids
	}
	return ix
}

// orderKey is the deterministic tie-break: natural document order first,
// then id for subsections the tree does not know about.
func (ix *Index) orderKey(id string) (int, int, string) {
	secPos, ok := ix.sectionPos[id]
	if !ok {
		return unknownPosition, unknownPosition, id
	}
	return secPos, ix.subsectionPos[id], id
}

// ExpandDependencies turns a subsection's declared dependencies into a flat
// list of subsection ids: each referenced section contributes its
// subsections in position order, then directly referenced subsections are
// appended. Self-references and duplicates are dropped.
func (ix *Index) ExpandDependencies(subsectionID string, deps validation.Dependencies) []string {
	var out []string
	seen := map[string]bool{subsectionID: true}

	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, sectionID := range deps.SectionIDs {
		for _, id := range ix.sectionSubs[sectionID] {
			add(id)
		}
	}
	for _, id := range deps.SubsectionIDs {
		add(id)
	}
	return out
}

// TopologicalOrder linearizes ids so that every dependency precedes its
// dependent. Dependencies outside ids are ignored. Ties are broken by
// natural document order, so an unconstrained template generates front to
// back. A cycle is a fatal error: dropping cyclic members silently would
// produce a report missing content with nothing visibly wrong.
func (ix *Index) TopologicalOrder(ids []string, dependsOn map[string][]string) ([]string, error) {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	indegree := make(map[string]int, len(ids))
	dependents := map[string][]string{}
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range dependsOn[id] {
			if dep == id {
				return nil, errors.NewCircularDependencyError(
					fmt.Sprintf("Circular subsection dependency detected on subsection '%s'", id))
			}
			if !inSet[dep] {
				// Out-of-batch dependency: ordering cannot apply.
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	ready := make([]string, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	ix.sortByDocumentOrder(ready)

	order := make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := false
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			ix.sortByDocumentOrder(ready)
		}
	}

	if len(order) != len(ids) {
		var stuck []string
		for _, id := range ids {
			if indegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, errors.NewCircularDependencyError(
			fmt.Sprintf("Circular subsection dependencies detected: %s", strings.Join(stuck, ", ")))
	}
	return order, nil
}

func (ix *Index) sortByDocumentOrder(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		si, pi, ii := ix.orderKey(ids[i])
		sj, pj, ij := ix.orderKey(ids[j])
		if si != sj {
			return si < sj
		}
		if pi != pj {
			return pi < pj
		}
		return ii < ij
	})
}
