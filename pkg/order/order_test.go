package order

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/wintree/pkg/model"
)

func ids(items []*model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(t *testing.T, got []*model.Item, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

func TestSortDefaultCriteria(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []*model.Item{
		{ID: "a", Title: "A", Priority: model.IntPtr(1), UpdatedAt: now},
		{ID: "b", Title: "B", Priority: model.IntPtr(5), UpdatedAt: now},
		{ID: "c", Title: "C", Priority: model.IntPtr(5), UpdatedAt: now.Add(time.Hour)},
		{ID: "d", Title: "D"},
	}

	got := Sort(items, nil)
	// priority desc, then updated desc; d has neither and sinks
	equalIDs(t, got, "c", "b", "a", "d")
}

func TestSortDoesNotMutateInput(t *testing.T) {
	items := []*model.Item{{ID: "b", Title: "b"}, {ID: "a", Title: "a"}}
	_ = Sort(items, nil)
	equalIDs(t, items, "b", "a")
}

// Scenario E: no criteria and no default fields -> alphabetical by label.
func TestSortFallsBackToLabel(t *testing.T) {
	items := []*model.Item{
		{ID: "3", Title: "cherry"},
		{ID: "1", Title: "Apple"},
		{ID: "2", Title: "banana"},
		{ID: "4", Title: "apple"},
	}
	got := Sort(items, nil)
	// case-folded first, exact label second ("Apple" < "apple")
	equalIDs(t, got, "1", "4", "2", "3")
}

func TestMissingValuesSinkBothDirections(t *testing.T) {
	items := []*model.Item{
		{ID: "none", Title: "z"},
		{ID: "low", Title: "a", Priority: model.IntPtr(1)},
		{ID: "high", Title: "b", Priority: model.IntPtr(9)},
	}

	desc := Sort(items, []model.SortCriterion{{Field: model.FieldPriority, Direction: model.Descending}})
	equalIDs(t, desc, "high", "low", "none")

	asc := Sort(items, []model.SortCriterion{{Field: model.FieldPriority, Direction: model.Ascending}})
	equalIDs(t, asc, "low", "high", "none")
}

func TestLaterCriteriaBreakTies(t *testing.T) {
	items := []*model.Item{
		{ID: "x", Title: "x", Status: model.StatusClosed, Priority: model.IntPtr(1)},
		{ID: "y", Title: "y", Status: model.StatusOpen, Priority: model.IntPtr(1)},
		{ID: "z", Title: "z", Status: model.StatusOpen, Priority: model.IntPtr(2)},
	}
	got := Sort(items, []model.SortCriterion{
		{Field: model.FieldStatus, Direction: model.Ascending},
		{Field: model.FieldPriority, Direction: model.Descending},
	})
	equalIDs(t, got, "z", "y", "x")
}

func TestUnknownFieldIsNoOp(t *testing.T) {
	items := []*model.Item{{ID: "b", Title: "b"}, {ID: "a", Title: "a"}}
	got := Sort(items, []model.SortCriterion{{Field: "nonsense", Direction: model.Descending}})
	// falls straight through to the label tie-break
	equalIDs(t, got, "a", "b")
}

func TestAttributeFieldNumericAndText(t *testing.T) {
	items := []*model.Item{
		{ID: "a", Title: "a", Attributes: map[string]string{"size": "10"}},
		{ID: "b", Title: "b", Attributes: map[string]string{"size": "9"}},
		{ID: "c", Title: "c"},
	}
	got := Sort(items, []model.SortCriterion{{Field: model.AttrField("size"), Direction: model.Ascending}})
	equalIDs(t, got, "b", "a", "c")
}

func TestAttributeMixedValuesTotalOrder(t *testing.T) {
	make3 := func() []*model.Item {
		return []*model.Item{
			{ID: "a", Title: "same", Attributes: map[string]string{"size": "9"}},
			{ID: "b", Title: "same", Attributes: map[string]string{"size": "10"}},
			{ID: "c", Title: "same", Attributes: map[string]string{"size": "1a"}},
		}
	}
	criteria := []model.SortCriterion{{Field: model.AttrField("size"), Direction: model.Ascending}}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range perms {
		src := make3()
		items := []*model.Item{src[p[0]], src[p[1]], src[p[2]]}
		equalIDs(t, Sort(items, criteria), "a", "b", "c")
	}

	a, b, c := make3()[0], make3()[1], make3()[2]
	if Compare(a, b, criteria) >= 0 || Compare(b, c, criteria) >= 0 || Compare(a, c, criteria) >= 0 {
		t.Error("expected 9 < 10 < 1a with numbers before text")
	}
}

func TestNilItemsSortLast(t *testing.T) {
	items := []*model.Item{nil, {ID: "a", Title: "a"}}
	got := Sort(items, nil)
	if got[0] == nil || got[1] != nil {
		t.Fatalf("expected nil item last, got %v", got)
	}
}

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		spec    string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"priority:desc,title", "priority:desc,title:asc", false},
		{"Updated:ASC", "updated:asc", false},
		{"attr:owner", "attr:owner:desc", false},
		{"attr:owner:asc, id", "attr:owner:asc,id:asc", false},
		{"title:sideways", "", true},
		{":desc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCriteria(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCriteria(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if s := FormatCriteria(got); s != tt.want {
			t.Errorf("ParseCriteria(%q) = %q, want %q", tt.spec, s, tt.want)
		}
	}
}

func drawItems(t *rapid.T) []*model.Item {
	n := rapid.IntRange(0, 30).Draw(t, "n")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]*model.Item, n)
	for i := range items {
		it := &model.Item{
			ID:    rapid.StringMatching(`[a-e][0-9]`).Draw(t, "id"),
			Title: rapid.SampledFrom([]string{"", "alpha", "Alpha", "beta", "gamma"}).Draw(t, "title"),
		}
		if rapid.Bool().Draw(t, "hasPrio") {
			it.Priority = model.IntPtr(rapid.IntRange(0, 3).Draw(t, "prio"))
		}
		if rapid.Bool().Draw(t, "hasUpdated") {
			it.UpdatedAt = base.Add(time.Duration(rapid.IntRange(0, 3).Draw(t, "upd")) * time.Hour)
		}
		it.Status = rapid.SampledFrom([]model.Status{"", model.StatusOpen, model.StatusClosed}).Draw(t, "status")
		if rapid.Bool().Draw(t, "hasSize") {
			size := rapid.SampledFrom([]string{"9", "10", "10.0", "1a", "abc", "Abc", "-2", "NaN"}).Draw(t, "size")
			it.Attributes = map[string]string{"size": size}
		}
		items[i] = it
	}
	return items
}

func drawCriteria(t *rapid.T) []model.SortCriterion {
	fields := []model.FieldKey{model.FieldPriority, model.FieldUpdated, model.FieldTitle, model.FieldStatus, model.AttrField("size"), "bogus"}
	n := rapid.IntRange(0, 3).Draw(t, "ncrit")
	out := make([]model.SortCriterion, n)
	for i := range out {
		out[i] = model.SortCriterion{
			Field:     rapid.SampledFrom(fields).Draw(t, "field"),
			Direction: rapid.SampledFrom([]model.SortDirection{model.Ascending, model.Descending}).Draw(t, "dir"),
		}
	}
	return out
}

// Sorting twice changes nothing.
func TestSortIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := drawItems(t)
		criteria := drawCriteria(t)
		once := Sort(items, criteria)
		twice := Sort(once, criteria)
		for i := range once {
			if once[i] != twice[i] {
				t.Fatalf("sort not idempotent at %d: %v vs %v", i, ids(once), ids(twice))
			}
		}
	})
}

// Output order depends on contents only, not on input order.
func TestSortIndependentOfInputOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := drawItems(t)
		criteria := drawCriteria(t)
		shuffled := rapid.Permutation(items).Draw(t, "perm")

		a := Sort(items, criteria)
		b := Sort(shuffled, criteria)
		for i := range a {
			if Compare(a[i], b[i], criteria) != 0 {
				t.Fatalf("order depends on input order at %d: %v vs %v", i, ids(a), ids(b))
			}
		}
	})
}
