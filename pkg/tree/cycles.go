package tree

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/wintree/pkg/model"
)

// CycleGroups reports every set of items whose parent references form a
// loop, including self-references. Each group is sorted by ID and the
// groups are ordered by their first ID. Build calls it when it has to
// break a loop; see Forest.Cycles.
func CycleGroups(items []model.Item) [][]string {
	index := make(map[string]int64, len(items))
	ids := make([]string, 0, len(items))
	for i := range items {
		if _, dup := index[items[i].ID]; dup {
			continue
		}
		index[items[i].ID] = int64(len(ids))
		ids = append(ids, items[i].ID)
	}

	g := simple.NewDirectedGraph()
	for i := range ids {
		g.AddNode(simple.Node(int64(i)))
	}

	var groups [][]string
	seen := make(map[string]bool, len(items))
	for i := range items {
		it := &items[i]
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		if it.ParentID == "" {
			continue
		}
		if it.ParentID == it.ID {
			groups = append(groups, []string{it.ID})
			continue
		}
		p, ok := index[it.ParentID]
		if !ok {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(index[it.ID]), simple.Node(p)))
	}

	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		group := make([]string, len(scc))
		for i, n := range scc {
			group[i] = ids[n.ID()]
		}
		slices.Sort(group)
		groups = append(groups, group)
	}

	slices.SortFunc(groups, func(a, b []string) int {
		return strings.Compare(a[0], b[0])
	})
	return groups
}
