package testutil

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/wintree/pkg/model"
)

func TestChain(t *testing.T) {
	items := NewDefault().Chain(4)
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[0].ParentID != "" {
		t.Errorf("expected first item to be root, got parent %q", items[0].ParentID)
	}
	for i := 1; i < len(items); i++ {
		if items[i].ParentID != items[i-1].ID {
			t.Errorf("item %d: expected parent %s, got %s", i, items[i-1].ID, items[i].ParentID)
		}
	}
}

func TestTreeSize(t *testing.T) {
	// 1 + 3 + 9
	items := QuickTree(2, 3)
	if len(items) != 13 {
		t.Errorf("expected 13 items, got %d", len(items))
	}
}

func TestCycleEveryItemHasParent(t *testing.T) {
	items := QuickCycle(3)
	for _, it := range items {
		if it.ParentID == "" {
			t.Errorf("expected %s to have a parent in a cycle", it.ID)
		}
	}
}

func TestRandomDangling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DanglingPercent = 100
	items := New(cfg).Random(50, 100)
	dangling := 0
	for _, it := range items {
		if strings.HasPrefix(it.ParentID, "missing-") {
			dangling++
		}
	}
	if dangling != 49 {
		t.Errorf("expected 49 dangling parents, got %d", dangling)
	}
}

func TestDeterminism(t *testing.T) {
	a := NewDefault().Random(100, 60)
	b := NewDefault().Random(100, 60)
	for i := range a {
		if a[i].ID != b[i].ID || a[i].ParentID != b[i].ParentID || *a[i].Priority != *b[i].Priority {
			t.Fatalf("generator not deterministic at %d", i)
		}
	}
}

func TestToJSONL(t *testing.T) {
	out := ToJSONL(QuickFlat(3))
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("expected 3 lines, got %d", lines)
	}
	if !strings.Contains(out, `"id":"it-0"`) {
		t.Errorf("expected JSONL to contain it-0, got %q", out)
	}
}

func TestCheckPreOrder(t *testing.T) {
	p := &model.Item{ID: "p"}
	c := &model.Item{ID: "c", ParentID: "p"}
	good := []model.Row{
		{ID: "p", Level: 0, Expanded: true, HasChildren: true, Item: p},
		{ID: "c", Level: 1, Item: c},
	}
	if msg := CheckPreOrder(good); msg != "" {
		t.Errorf("expected valid pre-order, got %q", msg)
	}

	collapsed := []model.Row{
		{ID: "p", Level: 0, HasChildren: true, Item: p},
		{ID: "c", Level: 1, Item: c},
	}
	if CheckPreOrder(collapsed) == "" {
		t.Error("expected violation for child under collapsed parent")
	}

	skipped := []model.Row{{ID: "c", Level: 1, Item: c}}
	if CheckPreOrder(skipped) == "" {
		t.Error("expected violation for a row that skips a level")
	}
}
