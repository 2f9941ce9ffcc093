// Package window composes sorting, tree flattening, viewport computation,
// incremental loading and scroll coalescing into one render coordinator.
//
// An Engine is single-threaded: every method, and every scroll frame the
// configured scheduler delivers, must run on the host's event loop.
package window

import (
	"slices"
	"time"

	"github.com/vanderheijden86/wintree/pkg/config"
	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/loader"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/scroll"
	"github.com/vanderheijden86/wintree/pkg/tree"
	"github.com/vanderheijden86/wintree/pkg/viewport"
)

// Engine owns the flattened rows and the visible window over them.
type Engine struct {
	cfg config.Config

	flattener *tree.Flattener
	vpModel   *viewport.Model
	loader    *loader.IncrementalLoader
	scroller  *scroll.ScrollScheduler
	sched     scroll.Scheduler
	now       func() time.Time

	items    []model.Item
	criteria []model.SortCriterion
	rows     []model.Row
	vp       viewport.Viewport

	containerHeight float64
	scrollOffset    float64
	lastBoost       int

	onViewport    func(viewport.Viewport, []model.Row)
	onLoadRequest func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the frame scheduler that delivers coalesced scroll
// frames. The default is a ManualScheduler driven by Flush.
func WithScheduler(s scroll.Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.sched = s
		}
	}
}

// WithClock sets the time source for cooldowns and height stabilization.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithContainerHeight sets the initial container height.
func WithContainerHeight(h float64) Option {
	return func(e *Engine) {
		e.containerHeight = h
	}
}

// New creates an Engine from cfg. Out-of-range tunables fall back to
// their defaults.
func New(cfg config.Config, opts ...Option) *Engine {
	for _, msg := range cfg.Validate() {
		debug.Log("window: %s", msg)
	}

	e := &Engine{
		cfg:       cfg,
		flattener: tree.NewFlattener(),
		sched:     scroll.NewManualScheduler(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	criteria, err := cfg.SortCriteria()
	if err != nil {
		debug.Log("window: ignoring sort criteria: %v", err)
	}
	e.criteria = criteria

	e.vpModel = viewport.New(
		viewport.WithChangeThreshold(cfg.Viewport.ChangeThreshold),
		viewport.WithStabilizer(viewport.NewHeightStabilizer(cfg.Viewport.HeightResyncDelta, cfg.Viewport.HeightMaxLag)),
		viewport.WithClock(func() time.Time { return e.now() }),
	)
	e.loader = loader.NewIncremental(0, cfg.LoaderOptions())
	e.scroller = scroll.New(e.sched, e.handleFrame, cfg.ScrollOptions())
	e.vp, _ = e.vpModel.Last()
	return e
}

// OnViewport registers fn to receive the viewport and its visible rows
// whenever the window changes significantly.
func (e *Engine) OnViewport(fn func(viewport.Viewport, []model.Row)) {
	e.onViewport = fn
}

// OnLoadRequest registers fn to be called when more data is needed. The
// load is already marked in flight when fn runs; the host answers with
// CompleteLoad, AppendItems or AbortLoad.
func (e *Engine) OnLoadRequest(fn func()) {
	e.onLoadRequest = fn
}

// SetItems replaces the item collection and rebuilds the rows atomically.
// Expansion state is kept.
func (e *Engine) SetItems(items []model.Item) {
	e.items = slices.Clone(items)
	e.rows = e.flattener.BuildTreeRows(e.items, e.criteria)
	e.recompute(model.ScrollNone)
}

// AppendItems adds a freshly fetched batch, rebuilds, and completes the
// in-flight load with the batch size. It returns the count the loader
// accepted.
func (e *Engine) AppendItems(batch []model.Item) int {
	items := make([]model.Item, 0, len(e.items)+len(batch))
	items = append(items, e.items...)
	items = append(items, batch...)
	e.SetItems(items)
	return e.CompleteLoad(len(batch))
}

// ReplaceItems swaps in a complete item set, for a reload. Loading is
// marked finished at len(items); expansion state is kept.
func (e *Engine) ReplaceItems(items []model.Item) {
	e.loader.Reset(len(items))
	e.loader.CompleteLoad(len(items))
	e.SetItems(items)
}

// Items returns the current item collection.
func (e *Engine) Items() []model.Item {
	return e.items
}

// SetCriteria re-sorts the rows with new criteria. nil selects the
// default ordering.
func (e *Engine) SetCriteria(criteria []model.SortCriterion) {
	e.criteria = criteria
	e.rows = e.flattener.Resort(criteria)
	e.recompute(model.ScrollNone)
}

// Criteria returns the active criteria (nil means the default).
func (e *Engine) Criteria() []model.SortCriterion {
	return e.criteria
}

// Toggle flips the expansion of id. It returns false, changing nothing,
// for leaves and unknown ids.
func (e *Engine) Toggle(id string) bool {
	if !e.flattener.ToggleExpansion(id) {
		return false
	}
	e.reflatten()
	return true
}

// IsExpanded reports whether id is expanded.
func (e *Engine) IsExpanded(id string) bool {
	return e.flattener.IsExpanded(id)
}

// ExpandAll expands every node with children.
func (e *Engine) ExpandAll() {
	e.flattener.ExpandAll()
	e.reflatten()
}

// CollapseAll collapses every node.
func (e *Engine) CollapseAll() {
	e.flattener.CollapseAll()
	e.reflatten()
}

// ExpandToLevel shows exactly level+1 levels of the forest.
func (e *Engine) ExpandToLevel(level int) {
	e.flattener.ExpandToLevel(level)
	e.reflatten()
}

// Reveal expands every ancestor of id and returns its row index, or -1.
func (e *Engine) Reveal(id string) int {
	if !e.flattener.ExpandPath(id) {
		return -1
	}
	e.reflatten()
	return e.IndexOf(id)
}

// ResetExpansion collapses everything by clearing the expansion state.
func (e *Engine) ResetExpansion() {
	e.flattener.Reset()
	e.reflatten()
}

// Resize sets the container height and recomputes the window.
func (e *Engine) Resize(containerHeight float64) {
	e.containerHeight = containerHeight
	e.recompute(model.ScrollNone)
}

// Scroll feeds a raw scroll position. The window updates when the
// scheduler fires the coalesced frame (or on Flush).
func (e *Engine) Scroll(pos float64, ts time.Time) {
	e.scroller.OnScrollSignal(pos, ts)
}

// ScrollTo jumps to pos immediately, without velocity effects.
func (e *Engine) ScrollTo(pos float64) {
	e.scrollOffset = max(pos, 0)
	e.scroller.Rebase(e.scrollOffset, e.now())
	e.recompute(model.ScrollNone)
}

// ScrollToRow scrolls so that row index i is the first visible row.
func (e *Engine) ScrollToRow(i int) {
	e.ScrollTo(float64(i) * e.cfg.Viewport.RowHeight)
}

// Flush runs the pending scroll frame now and reports whether one ran.
func (e *Engine) Flush() bool {
	return e.scroller.Flush()
}

// Recompute recomputes the window with the current geometry.
func (e *Engine) Recompute() {
	e.recompute(model.ScrollNone)
}

// Stop cancels any pending scroll frame and ignores later scroll signals.
func (e *Engine) Stop() {
	e.scroller.Stop()
}

// BeginLoad marks a load in flight, for hosts that fetch without waiting
// for a load request. It returns false when one is already in flight or
// everything is loaded.
func (e *Engine) BeginLoad() bool {
	return e.loader.BeginLoad(e.now())
}

// CompleteLoad records n newly available items and returns the count
// accepted after clamping.
func (e *Engine) CompleteLoad(n int) int {
	return e.loader.CompleteLoad(n)
}

// AbortLoad clears a failed in-flight load.
func (e *Engine) AbortLoad() {
	e.loader.AbortLoad()
}

// ResetLoad restarts loading for a dataset of total items.
func (e *Engine) ResetLoad(total int) {
	e.loader.Reset(total)
}

// SetTotal changes the dataset size without resetting progress.
func (e *Engine) SetTotal(total int) {
	e.loader.SetTotal(total)
}

// LoadState returns the loader counters.
func (e *Engine) LoadState() loader.LoadState {
	return e.loader.Snapshot()
}

// LoadPhase returns the loader lifecycle state.
func (e *Engine) LoadPhase() loader.State {
	return e.loader.State()
}

// NextBatch returns the offset and limit of the next batch to fetch.
func (e *Engine) NextBatch() (offset, limit int) {
	return e.loader.NextBatch(e.cfg.Loading.BatchSize)
}

// Rows returns the full flattened row sequence.
func (e *Engine) Rows() []model.Row {
	return e.rows
}

// Viewport returns the current window, always in range of Rows.
func (e *Engine) Viewport() viewport.Viewport {
	return e.vp
}

// Visible returns the rows inside the current window. Its length always
// equals Viewport().Len().
func (e *Engine) Visible() []model.Row {
	if e.vp.Len() == 0 {
		return nil
	}
	return e.rows[e.vp.StartIndex : e.vp.EndIndex+1]
}

// IndexOf returns the row index of id, or -1 when it is not visible in
// the flattened sequence.
func (e *Engine) IndexOf(id string) int {
	for i := range e.rows {
		if e.rows[i].ID == id {
			return i
		}
	}
	return -1
}

// BufferSize returns the buffer used for the current window. It
// includes the velocity boost only when the window came from a scroll
// frame.
func (e *Engine) BufferSize() int {
	return e.cfg.Viewport.BufferSize + e.lastBoost
}

// Cycles returns the parent loops broken while building the rows.
func (e *Engine) Cycles() [][]string {
	return e.flattener.Forest().Cycles()
}

// Config returns the validated configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

func (e *Engine) reflatten() {
	e.rows = e.flattener.Rows()
	e.recompute(model.ScrollNone)
}

func (e *Engine) handleFrame(f scroll.Frame) {
	e.scrollOffset = max(f.Position, 0)
	e.recomputeBoosted(f.Direction, f.BufferAdjustment)
}

func (e *Engine) recompute(dir model.ScrollDirection) {
	e.recomputeBoosted(dir, 0)
}

// recomputeBoosted computes the window with boost extra buffer rows. The
// boost applies to this computation only.
func (e *Engine) recomputeBoosted(dir model.ScrollDirection, boost int) {
	e.lastBoost = boost
	vp, changed := e.vpModel.Compute(
		e.scrollOffset,
		e.containerHeight,
		e.cfg.Viewport.RowHeight,
		e.cfg.Viewport.BufferSize+boost,
		len(e.rows),
	)
	e.vp = vp.Clamp(len(e.rows))

	if changed && e.onViewport != nil {
		e.onViewport(e.vp, e.Visible())
	}
	e.maybeRequestLoad(dir)
}

func (e *Engine) maybeRequestLoad(dir model.ScrollDirection) {
	if e.onLoadRequest == nil {
		return
	}
	now := e.now()
	if !e.loader.ShouldLoadMore(e.vp, len(e.rows), dir, now) {
		return
	}
	if !e.loader.BeginLoad(now) {
		return
	}
	debug.Log("window: requesting load at rows [%d,%d] of %d", e.vp.StartIndex, e.vp.EndIndex, len(e.rows))
	e.onLoadRequest()
}
