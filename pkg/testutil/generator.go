// Package testutil provides deterministic item fixtures for the row tree
// and assertions shared by package tests. All generators are seeded, so
// the same config always yields the same items.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/wintree/pkg/model"
)

// GeneratorConfig controls item generation.
type GeneratorConfig struct {
	Seed            int64     // Random seed for determinism (0 = use current time)
	IDPrefix        string    // Prefix for item IDs (default: "it")
	BaseTime        time.Time // Base time for timestamps (default: fixed time)
	WithPriority    bool      // Assign random priorities 0-4
	WithTimestamps  bool      // Assign created/updated times
	DanglingPercent int       // Share of non-root items pointing at a missing parent
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:           42,
		IDPrefix:       "it",
		BaseTime:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		WithPriority:   true,
		WithTimestamps: true,
	}
}

// Generator creates item fixtures with various forest shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "it"
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) item(i int, parent string) model.Item {
	it := model.Item{
		ID:       fmt.Sprintf("%s-%d", g.cfg.IDPrefix, i),
		ParentID: parent,
		Title:    fmt.Sprintf("Item %d", i),
		Status:   model.StatusOpen,
	}
	if g.cfg.WithPriority {
		it.Priority = model.IntPtr(g.rng.Intn(5))
	}
	if g.cfg.WithTimestamps {
		it.CreatedAt = g.cfg.BaseTime.Add(time.Duration(i) * time.Hour)
		it.UpdatedAt = it.CreatedAt.Add(time.Duration(g.rng.Intn(72)) * time.Hour)
	}
	return it
}

// Flat creates n root items with no hierarchy.
func (g *Generator) Flat(n int) []model.Item {
	items := make([]model.Item, n)
	for i := range items {
		items[i] = g.item(i, "")
	}
	return items
}

// Chain creates a single path: item-0 <- item-1 <- ... <- item-(n-1).
func (g *Generator) Chain(n int) []model.Item {
	items := make([]model.Item, n)
	for i := range items {
		parent := ""
		if i > 0 {
			parent = items[i-1].ID
		}
		items[i] = g.item(i, parent)
	}
	return items
}

// Star creates one hub with n direct children.
func (g *Generator) Star(n int) []model.Item {
	items := make([]model.Item, 0, n+1)
	hub := g.item(0, "")
	items = append(items, hub)
	for i := 1; i <= n; i++ {
		items = append(items, g.item(i, hub.ID))
	}
	return items
}

// Tree creates a complete tree of the given depth where every inner node
// has breadth children. depth 0 is a single root.
func (g *Generator) Tree(depth, breadth int) []model.Item {
	var items []model.Item
	var grow func(parent string, level int)
	grow = func(parent string, level int) {
		it := g.item(len(items), parent)
		items = append(items, it)
		if level >= depth {
			return
		}
		for b := 0; b < breadth; b++ {
			grow(it.ID, level+1)
		}
	}
	grow("", 0)
	return items
}

// Cycle creates n items whose parent references form a single loop.
func (g *Generator) Cycle(n int) []model.Item {
	items := make([]model.Item, n)
	for i := range items {
		items[i] = g.item(i, "")
	}
	for i := range items {
		items[i].ParentID = items[(i+n-1)%n].ID
	}
	return items
}

// SelfLoop creates a single item that names itself as parent.
func (g *Generator) SelfLoop() []model.Item {
	it := g.item(0, "")
	it.ParentID = it.ID
	return []model.Item{it}
}

// Random creates n items where each item picks an earlier item as parent
// with probability nestPercent, optionally pointing at a missing parent.
func (g *Generator) Random(n, nestPercent int) []model.Item {
	items := make([]model.Item, n)
	for i := range items {
		parent := ""
		if i > 0 && g.rng.Intn(100) < nestPercent {
			parent = items[g.rng.Intn(i)].ID
			if g.cfg.DanglingPercent > 0 && g.rng.Intn(100) < g.cfg.DanglingPercent {
				parent = "missing-" + parent
			}
		}
		items[i] = g.item(i, parent)
	}
	return items
}

// ToJSONL converts items to JSONL format.
func ToJSONL(items []model.Item) string {
	var sb strings.Builder
	for _, it := range items {
		data, _ := json.Marshal(it)
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// QuickTree is a shorthand for NewDefault().Tree.
func QuickTree(depth, breadth int) []model.Item {
	return NewDefault().Tree(depth, breadth)
}

// QuickFlat is a shorthand for NewDefault().Flat.
func QuickFlat(n int) []model.Item {
	return NewDefault().Flat(n)
}

// QuickCycle is a shorthand for NewDefault().Cycle.
func QuickCycle(n int) []model.Item {
	return NewDefault().Cycle(n)
}
