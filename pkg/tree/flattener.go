package tree

import (
	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
	"github.com/vanderheijden86/wintree/pkg/model"
)

// Flattener owns the expansion state and the most recently built forest.
// Expansion state survives rebuilds; it changes only through
// ToggleExpansion, ExpandAll, CollapseAll, ExpandPath, ExpandToLevel and
// Reset.
//
// A Flattener is not safe for concurrent use.
type Flattener struct {
	expanded map[string]struct{}
	forest   *Forest
	criteria []model.SortCriterion
}

// NewFlattener creates a flattener with nothing expanded.
func NewFlattener() *Flattener {
	return &Flattener{expanded: make(map[string]struct{})}
}

// BuildTreeRows builds, sorts and flattens items. The resulting forest
// and criteria are kept for later toggles and Rows calls.
func (fl *Flattener) BuildTreeRows(items []model.Item, criteria []model.SortCriterion) []model.Row {
	forest := Build(items)
	SortForest(forest, criteria)
	fl.forest = forest
	fl.criteria = criteria
	return fl.Flatten(forest)
}

// Resort reorders the current forest with new criteria and reflattens it.
func (fl *Flattener) Resort(criteria []model.SortCriterion) []model.Row {
	fl.criteria = criteria
	SortForest(fl.forest, criteria)
	return fl.Rows()
}

// Criteria returns the criteria of the last build or resort.
func (fl *Flattener) Criteria() []model.SortCriterion {
	return fl.criteria
}

// Forest returns the current forest (nil before the first build).
func (fl *Flattener) Forest() *Forest {
	return fl.forest
}

// Rows flattens the current forest.
func (fl *Flattener) Rows() []model.Row {
	return fl.Flatten(fl.forest)
}

// Flatten walks the forest depth-first in pre-order. Every node emits its
// own row; children are emitted only when the node is expanded.
func (fl *Flattener) Flatten(f *Forest) []model.Row {
	if f == nil || len(f.Roots) == 0 {
		return nil
	}
	defer metrics.Timer(metrics.TreeFlatten)()

	rows := make([]model.Row, 0, len(f.Roots))
	var appendVisible func(nodes []*Node)
	appendVisible = func(nodes []*Node) {
		for _, n := range nodes {
			expanded := fl.IsExpanded(n.ID())
			rows = append(rows, model.Row{
				ID:          n.ID(),
				Level:       n.Level,
				Expanded:    expanded,
				HasChildren: n.HasChildren(),
				Item:        n.Item,
			})
			if expanded {
				appendVisible(n.Children)
			}
		}
	}
	appendVisible(f.Roots)
	return rows
}

// IsExpanded reports whether id is in the expansion set.
func (fl *Flattener) IsExpanded(id string) bool {
	_, ok := fl.expanded[id]
	return ok
}

// ExpandedCount returns the size of the expansion set.
func (fl *Flattener) ExpandedCount() int {
	return len(fl.expanded)
}

// ToggleExpansion flips id in the expansion set when its node has at least
// one child. It returns false for leaves and unknown IDs, in which case
// the rows are unchanged and no re-render is needed.
func (fl *Flattener) ToggleExpansion(id string) bool {
	node := fl.forest.Node(id)
	if node == nil || !node.HasChildren() {
		return false
	}
	if fl.IsExpanded(id) {
		delete(fl.expanded, id)
	} else {
		fl.expanded[id] = struct{}{}
	}
	return true
}

// ExpandAll marks every node with children as expanded.
func (fl *Flattener) ExpandAll() {
	fl.forest.Walk(func(n *Node) bool {
		if n.HasChildren() {
			fl.expanded[n.ID()] = struct{}{}
		}
		return true
	})
}

// CollapseAll marks every node with children as collapsed.
func (fl *Flattener) CollapseAll() {
	fl.forest.Walk(func(n *Node) bool {
		delete(fl.expanded, n.ID())
		return true
	})
}

// ExpandToLevel expands nodes above level and collapses the rest, so the
// visible tree is exactly level+1 deep.
func (fl *Flattener) ExpandToLevel(level int) {
	fl.forest.Walk(func(n *Node) bool {
		if n.HasChildren() && n.Level < level {
			fl.expanded[n.ID()] = struct{}{}
		} else {
			delete(fl.expanded, n.ID())
		}
		return true
	})
}

// ExpandPath expands every ancestor of id so its row becomes visible.
// It returns false for unknown IDs.
func (fl *Flattener) ExpandPath(id string) bool {
	node := fl.forest.Node(id)
	if node == nil {
		return false
	}
	for p := node.Parent; p != nil; p = p.Parent {
		fl.expanded[p.ID()] = struct{}{}
	}
	return true
}

// Reset clears the expansion set.
func (fl *Flattener) Reset() {
	debug.LogIf(len(fl.expanded) > 0, "tree: clearing %d expanded ids", len(fl.expanded))
	fl.expanded = make(map[string]struct{})
}
