// Package tree turns a flat item collection with parent references into a
// sorted forest and flattens it into render rows honoring expand/collapse
// state.
package tree

import (
	"slices"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/order"
)

// Node is one item placed in the forest.
type Node struct {
	Item     *model.Item // Reference to the source item
	Children []*Node     // Ordered child nodes
	Level    int         // Nesting level (0 = root)
	Parent   *Node       // Back-reference, nil for roots
}

// ID returns the item ID of the node.
func (n *Node) ID() string {
	return n.Item.ID
}

// HasChildren reports whether the node can be expanded.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// Forest is the result of Build: root nodes plus an ID index.
type Forest struct {
	Roots []*Node

	byID   map[string]*Node
	broken []string   // IDs whose parent link was dropped to break a cycle
	cycles [][]string // the loops those IDs sat on, from CycleGroups
}

// Node returns the node for id, or nil.
func (f *Forest) Node(id string) *Node {
	if f == nil {
		return nil
	}
	return f.byID[id]
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.byID)
}

// BrokenCycles returns the IDs that were forced to root because their
// parent chain looped back on itself.
func (f *Forest) BrokenCycles() []string {
	if f == nil {
		return nil
	}
	return f.broken
}

// Cycles returns every parent loop found in the input, each sorted by ID.
func (f *Forest) Cycles() [][]string {
	if f == nil {
		return nil
	}
	return f.cycles
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func (f *Forest) Walk(fn func(*Node) bool) {
	if f == nil {
		return
	}
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if fn(n) {
				walk(n.Children)
			}
		}
	}
	walk(f.Roots)
}

// Build constructs the forest from items in two passes: index every item
// by ID, then link each item to its parent or make it a root. Sibling
// order is insertion order; call SortForest to apply criteria.
//
// Dangling parent references make the item a root. Parent chains that
// loop back on themselves are broken by dropping the parent link of the
// first node seen twice on the chain. Items with a duplicate ID after the
// first occurrence are ignored.
//
// The forest keeps pointers into items; callers must not mutate the slice
// while the forest is in use.
func Build(items []model.Item) *Forest {
	defer metrics.Timer(metrics.TreeBuild)()

	f := &Forest{byID: make(map[string]*Node, len(items))}
	if len(items) == 0 {
		return f
	}

	// Step 1: index by ID, first occurrence wins
	nodes := make([]*Node, 0, len(items))
	index := make(map[string]int, len(items))
	for i := range items {
		item := &items[i]
		if _, dup := index[item.ID]; dup {
			debug.Log("tree: ignoring duplicate item id %q", item.ID)
			continue
		}
		index[item.ID] = len(nodes)
		node := &Node{Item: item}
		nodes = append(nodes, node)
		f.byID[item.ID] = node
	}

	// Step 2: resolve parent indexes; -1 means root
	parent := make([]int, len(nodes))
	for i, n := range nodes {
		parent[i] = -1
		if pid := n.Item.ParentID; pid != "" {
			if p, ok := index[pid]; ok {
				parent[i] = p
			}
		}
	}

	// Step 3: break cycles with a per-chain visiting mark
	const (
		unvisited = iota
		onChain
		resolved
	)
	state := make([]uint8, len(nodes))
	var chain []int
	for i := range nodes {
		if state[i] != unvisited {
			continue
		}
		chain = chain[:0]
		cur := i
		for cur >= 0 && state[cur] == unvisited {
			state[cur] = onChain
			chain = append(chain, cur)
			cur = parent[cur]
		}
		if cur >= 0 && state[cur] == onChain {
			parent[cur] = -1
			f.broken = append(f.broken, nodes[cur].Item.ID)
			metrics.CyclesBroken.Inc()
			debug.Log("tree: parent cycle through %q, treating it as root", nodes[cur].Item.ID)
		}
		for _, c := range chain {
			state[c] = resolved
		}
	}

	if len(f.broken) > 0 {
		f.cycles = CycleGroups(items)
		for _, g := range f.cycles {
			debug.Log("tree: cycle %v", g)
		}
	}

	// Step 4: link in insertion order
	for i, n := range nodes {
		if p := parent[i]; p >= 0 {
			n.Parent = nodes[p]
			nodes[p].Children = append(nodes[p].Children, n)
		} else {
			f.Roots = append(f.Roots, n)
		}
	}

	assignLevels(f.Roots, 0)
	return f
}

func assignLevels(nodes []*Node, level int) {
	for _, n := range nodes {
		n.Level = level
		assignLevels(n.Children, level+1)
	}
}

// SortForest reorders the roots and every sibling group with the same
// criteria. Structure and levels are unchanged.
func SortForest(f *Forest, criteria []model.SortCriterion) {
	if f == nil {
		return
	}
	defer metrics.Timer(metrics.ForestSort)()

	sortNodes(f.Roots, criteria)
	f.Walk(func(n *Node) bool {
		sortNodes(n.Children, criteria)
		return true
	})
}

func sortNodes(nodes []*Node, criteria []model.SortCriterion) {
	if len(nodes) <= 1 {
		return
	}
	slices.SortStableFunc(nodes, func(a, b *Node) int {
		return order.Compare(a.Item, b.Item, criteria)
	})
}
