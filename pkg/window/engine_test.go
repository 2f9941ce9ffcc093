package window

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/wintree/pkg/config"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/scroll"
	"github.com/vanderheijden86/wintree/pkg/testutil"
	"github.com/vanderheijden86/wintree/pkg/viewport"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Viewport.RowHeight = 40
	cfg.Viewport.BufferSize = 10
	cfg.Loading.BatchSize = 100
	return cfg
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	opts = append([]Option{WithClock(clock.Now), WithContainerHeight(800)}, opts...)
	return New(testConfig(), opts...), clock
}

// fataler is the part of testing.T and rapid.T that assertWindow needs.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func assertWindow(t fataler, e *Engine) {
	t.Helper()
	vp := e.Viewport()
	if got := len(e.Visible()); got != vp.Len() {
		t.Fatalf("visible rows %d != viewport length %d", got, vp.Len())
	}
	if n := len(e.Rows()); n > 0 && (vp.StartIndex < 0 || vp.EndIndex >= n || vp.StartIndex > vp.EndIndex) {
		t.Fatalf("viewport [%d,%d] out of range for %d rows", vp.StartIndex, vp.EndIndex, n)
	}
}

func TestSetItemsWindow(t *testing.T) {
	e, _ := newEngine(t)
	e.SetItems(testutil.QuickFlat(1000))

	vp := e.Viewport()
	if vp.StartIndex != 0 || vp.EndIndex != 39 {
		t.Errorf("expected [0,39], got [%d,%d]", vp.StartIndex, vp.EndIndex)
	}
	if vp.TotalHeight != 40000 {
		t.Errorf("expected total height 40000, got %v", vp.TotalHeight)
	}
	assertWindow(t, e)
}

func TestEmptyEngine(t *testing.T) {
	e, _ := newEngine(t)
	if e.Viewport().Len() != 0 || e.Visible() != nil {
		t.Errorf("expected empty window, got %+v", e.Viewport())
	}
	e.SetItems(nil)
	assertWindow(t, e)
	if !e.Viewport().IsEmpty() {
		t.Error("expected empty viewport for no items")
	}
}

func TestZeroContainerShowsNothing(t *testing.T) {
	e := New(testConfig())
	e.SetItems(testutil.QuickFlat(10))
	assertWindow(t, e)
	if e.Viewport().Len() != 0 {
		t.Errorf("expected no rows before the first resize, got %d", e.Viewport().Len())
	}
	e.Resize(200)
	if e.Viewport().Len() != 10 {
		t.Errorf("expected all 10 rows after resize, got %d", e.Viewport().Len())
	}
}

func TestToggleNotifiesViewport(t *testing.T) {
	e, _ := newEngine(t)
	var calls int
	var lastRows []model.Row
	e.OnViewport(func(vp viewport.Viewport, rows []model.Row) {
		calls++
		lastRows = rows
	})

	items := []model.Item{
		{ID: "P", Title: "Parent"},
		{ID: "A", Title: "Alpha", ParentID: "P"},
		{ID: "B", Title: "Beta", ParentID: "P"},
	}
	e.SetCriteria([]model.SortCriterion{{Field: model.FieldTitle, Direction: model.Ascending}})
	e.SetItems(items)
	testutil.AssertRowIDs(t, e.Rows(), "P")

	before := calls
	if !e.Toggle("P") {
		t.Fatal("expected toggle on P to succeed")
	}
	if calls != before+1 {
		t.Errorf("expected one viewport notification, got %d", calls-before)
	}
	testutil.AssertRowIDs(t, lastRows, "P", "A", "B")

	if e.Toggle("A") {
		t.Error("expected toggle on leaf to return false")
	}
	testutil.AssertRowIDs(t, e.Rows(), "P", "A", "B")
	assertWindow(t, e)
}

func TestExpansionSurvivesSetItems(t *testing.T) {
	e, _ := newEngine(t)
	items := testutil.QuickTree(1, 3)
	e.SetItems(items)
	e.Toggle(items[0].ID)
	testutil.AssertRowCount(t, e.Rows(), 4)

	e.SetItems(append(items, model.Item{ID: "late", Title: "Late", ParentID: items[0].ID}))
	testutil.AssertRowCount(t, e.Rows(), 5)
}

func TestExpandCollapseReveal(t *testing.T) {
	e, _ := newEngine(t)
	items := testutil.NewDefault().Chain(5)
	e.SetItems(items)

	if idx := e.Reveal(items[4].ID); idx != 4 {
		t.Errorf("expected revealed row at 4, got %d", idx)
	}
	e.CollapseAll()
	testutil.AssertRowCount(t, e.Rows(), 1)
	e.ExpandAll()
	testutil.AssertRowCount(t, e.Rows(), 5)
	e.ExpandToLevel(1)
	testutil.AssertRowCount(t, e.Rows(), 2)
	e.ResetExpansion()
	testutil.AssertRowCount(t, e.Rows(), 1)
	if e.Reveal("missing") != -1 {
		t.Error("expected -1 for unknown id")
	}
	assertWindow(t, e)
}

func TestScrollCoalescedUntilFlush(t *testing.T) {
	e, _ := newEngine(t)
	e.SetItems(testutil.QuickFlat(1000))

	e.Scroll(400, t0)
	e.Scroll(800, t0.Add(1000*time.Millisecond))
	if e.Viewport().StartIndex != 0 {
		t.Fatalf("expected the window to wait for the frame, got start %d", e.Viewport().StartIndex)
	}
	if !e.Flush() {
		t.Fatal("expected a pending frame")
	}
	vp := e.Viewport()
	if vp.StartIndex != 10 || vp.EndIndex != 49 {
		t.Errorf("expected [10,49], got [%d,%d]", vp.StartIndex, vp.EndIndex)
	}
	assertWindow(t, e)
}

func TestFastScrollWidensBuffer(t *testing.T) {
	e, _ := newEngine(t)
	e.SetItems(testutil.QuickFlat(1000))
	e.ScrollTo(0)

	// 12000px in 1ms is far above the velocity floor
	e.Scroll(12000, t0.Add(time.Millisecond))
	e.Flush()
	if e.BufferSize() <= 10 {
		t.Errorf("expected a boosted buffer, got %d", e.BufferSize())
	}
	assertWindow(t, e)

	if vp := e.Viewport(); vp.StartIndex != 282 || vp.EndIndex != 337 {
		t.Errorf("expected boosted window [282,337], got [%d,%d]", vp.StartIndex, vp.EndIndex)
	}

	// the boost belongs to that frame only
	e.Resize(800)
	if e.BufferSize() != 10 {
		t.Errorf("expected Resize to use the base buffer, got %d", e.BufferSize())
	}
	if vp := e.Viewport(); vp.StartIndex != 290 || vp.EndIndex != 329 {
		t.Errorf("expected [290,329] after resize, got [%d,%d]", vp.StartIndex, vp.EndIndex)
	}

	e.Scroll(24000, t0.Add(2*time.Millisecond))
	e.Flush()
	e.ScrollTo(12000)
	if e.BufferSize() != 10 {
		t.Errorf("expected ScrollTo to drop the boost, got %d", e.BufferSize())
	}
}

func TestReplaceItems(t *testing.T) {
	e, _ := newEngine(t)
	requests := 0
	e.OnLoadRequest(func() { requests++ })
	e.ResetLoad(50)
	e.BeginLoad()
	e.AppendItems(testutil.QuickFlat(20))

	fresh := testutil.QuickFlat(5)
	fresh[1].Title = "Retitled"
	fresh = append(fresh[:3], fresh[4:]...)
	e.ReplaceItems(fresh)

	if n := len(e.Items()); n != 4 {
		t.Fatalf("expected 4 items after replace, got %d", n)
	}
	if n := len(e.Rows()); n != 4 {
		t.Fatalf("expected 4 rows after replace, got %d", n)
	}
	i := e.IndexOf(fresh[1].ID)
	if i < 0 || e.Rows()[i].Item.Title != "Retitled" {
		t.Errorf("expected the new title for %s", fresh[1].ID)
	}
	if e.IndexOf(testutil.QuickFlat(5)[3].ID) >= 0 {
		t.Error("expected the dropped item to be gone")
	}
	if st := e.LoadState(); st.LoadedCount != 4 || st.TotalCount != 4 || st.IsLoadInFlight {
		t.Errorf("expected a finished load of 4, got %+v", st)
	}
	if requests != 0 {
		t.Errorf("expected no load request after a full replace, got %d", requests)
	}
	assertWindow(t, e)
}

func TestScrollWithManualScheduler(t *testing.T) {
	ms := scroll.NewManualScheduler()
	e, _ := newEngine(t, WithScheduler(ms))
	e.SetItems(testutil.QuickFlat(1000))

	for i := 1; i <= 10; i++ {
		e.Scroll(float64(i*400), t0.Add(time.Duration(i)*time.Second))
	}
	if n := ms.Fire(); n != 1 {
		t.Errorf("expected one coalesced frame, got %d", n)
	}
	if e.Viewport().StartIndex != 90 {
		t.Errorf("expected start 90, got %d", e.Viewport().StartIndex)
	}
}

func TestLoadRequestFlow(t *testing.T) {
	e, clock := newEngine(t)
	requests := 0
	e.OnLoadRequest(func() { requests++ })

	all := testutil.QuickFlat(300)
	e.ResetLoad(len(all))
	off, limit := e.NextBatch()
	if off != 0 || limit != 100 {
		t.Fatalf("expected first batch (0,100), got (%d,%d)", off, limit)
	}
	e.AppendItems(all[:100])
	if e.LoadState().LoadedCount != 100 {
		t.Fatalf("expected 100 loaded, got %d", e.LoadState().LoadedCount)
	}
	if requests != 0 {
		t.Fatalf("expected no request without forward scrolling, got %d", requests)
	}

	e.Scroll(3200, t0)
	e.Flush()
	if requests != 1 {
		t.Fatalf("expected one load request near the end, got %d", requests)
	}
	if !e.LoadState().IsLoadInFlight {
		t.Error("expected the load to be marked in flight before signaling")
	}

	e.Scroll(3240, t0.Add(10*time.Millisecond))
	e.Flush()
	if requests != 1 {
		t.Errorf("expected no second request while in flight, got %d", requests)
	}

	if added := e.AppendItems(all[100:200]); added != 100 {
		t.Errorf("expected 100 accepted, got %d", added)
	}

	e.Scroll(7200, t0.Add(20*time.Millisecond))
	e.Flush()
	if requests != 1 {
		t.Errorf("expected cooldown to hold the next request, got %d", requests)
	}

	clock.now = clock.now.Add(time.Second)
	e.Scroll(7240, t0.Add(30*time.Millisecond))
	e.Flush()
	if requests != 2 {
		t.Errorf("expected a second request after the cooldown, got %d", requests)
	}

	e.AbortLoad()
	if e.LoadState().IsLoadInFlight {
		t.Error("expected abort to clear the in-flight flag")
	}
}

func TestScrollBackwardNeverLoads(t *testing.T) {
	e, _ := newEngine(t)
	requests := 0
	e.OnLoadRequest(func() { requests++ })
	e.ResetLoad(500)
	e.AppendItems(testutil.QuickFlat(100))

	e.ScrollTo(4000)
	e.Scroll(3800, t0)
	e.Flush()
	if requests != 0 {
		t.Errorf("expected no request when scrolling backward, got %d", requests)
	}
}

func TestSetCriteriaResorts(t *testing.T) {
	e, _ := newEngine(t)
	e.SetItems([]model.Item{
		{ID: "a", Title: "a", Priority: model.IntPtr(1)},
		{ID: "b", Title: "b", Priority: model.IntPtr(3)},
		{ID: "c", Title: "c", Priority: model.IntPtr(2)},
	})
	testutil.AssertRowIDs(t, e.Rows(), "b", "c", "a")

	e.SetCriteria([]model.SortCriterion{{Field: model.FieldTitle, Direction: model.Ascending}})
	testutil.AssertRowIDs(t, e.Rows(), "a", "b", "c")
	if e.IndexOf("c") != 2 || e.IndexOf("zzz") != -1 {
		t.Error("unexpected IndexOf result")
	}
}

func TestStopIgnoresScroll(t *testing.T) {
	e, _ := newEngine(t)
	e.SetItems(testutil.QuickFlat(1000))
	e.Stop()
	e.Scroll(4000, t0)
	if e.Flush() {
		t.Error("expected no frame after Stop")
	}
}

// The window always matches the visible slice, whatever the call order.
func TestWindowInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := New(testConfig(), WithClock(func() time.Time { return t0 }))
		e.OnLoadRequest(func() {})
		items := testutil.NewDefault().Random(rapid.IntRange(0, 200).Draw(t, "n"), 60)
		ts := t0

		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			ts = ts.Add(time.Duration(rapid.IntRange(1, 50).Draw(t, "dt")) * time.Millisecond)
			switch rapid.IntRange(0, 7).Draw(t, "op") {
			case 0:
				cut := rapid.IntRange(0, len(items)).Draw(t, "cut")
				e.SetItems(items[:cut])
			case 1:
				e.Resize(rapid.Float64Range(-100, 4000).Draw(t, "height"))
			case 2:
				e.Scroll(rapid.Float64Range(-500, 20000).Draw(t, "pos"), ts)
			case 3:
				e.Flush()
			case 4:
				if len(items) > 0 {
					e.Toggle(items[rapid.IntRange(0, len(items)-1).Draw(t, "id")].ID)
				}
			case 5:
				if rapid.Bool().Draw(t, "expand") {
					e.ExpandAll()
				} else {
					e.CollapseAll()
				}
			case 6:
				e.ScrollTo(rapid.Float64Range(0, 20000).Draw(t, "jump"))
			case 7:
				e.CompleteLoad(rapid.IntRange(0, 50).Draw(t, "loaded"))
			}
			assertWindow(t, e)
		}
	})
}

func ExampleEngine() {
	cfg := config.DefaultConfig()
	cfg.Viewport.BufferSize = 0
	e := New(cfg, WithContainerHeight(3))

	items := make([]model.Item, 5)
	for i := range items {
		items[i] = model.Item{ID: fmt.Sprintf("r%d", i), Title: fmt.Sprintf("Row %d", i)}
	}
	e.SetItems(items)
	e.ScrollToRow(2)

	for _, r := range e.Visible() {
		fmt.Println(r.ID)
	}
	// Output:
	// r2
	// r3
	// r4
}
