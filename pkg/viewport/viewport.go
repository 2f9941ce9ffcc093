// Package viewport maps a scroll offset and container geometry onto the
// contiguous slice of flattened rows that must be materialized.
package viewport

import (
	"math"
	"time"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
)

// DefaultChangeThreshold is the minimum index movement reported as a change.
const DefaultChangeThreshold = 1

// Viewport is the visible index range plus derived scroll geometry.
// When the row count is zero the range is the degenerate {0, 0}.
type Viewport struct {
	StartIndex   int     `json:"start_index"`
	EndIndex     int     `json:"end_index"`
	TotalHeight  float64 `json:"total_height"`
	ScrollOffset float64 `json:"scroll_offset"`

	empty bool
}

// IsEmpty reports whether the viewport was computed for zero rows.
func (v Viewport) IsEmpty() bool {
	return v.empty
}

// Len returns the number of rows in the range, 0 for an empty viewport.
func (v Viewport) Len() int {
	if v.empty || v.EndIndex < v.StartIndex {
		return 0
	}
	return v.EndIndex - v.StartIndex + 1
}

// Contains reports whether row index i is inside the range.
func (v Viewport) Contains(i int) bool {
	return !v.empty && i >= v.StartIndex && i <= v.EndIndex
}

// Clamp fits the range inside total rows, keeping the geometry. A range
// entirely past the end collapses onto the last row; an empty viewport
// stays empty.
func (v Viewport) Clamp(total int) Viewport {
	if total <= 0 || v.empty {
		return Viewport{TotalHeight: v.TotalHeight, ScrollOffset: v.ScrollOffset, empty: true}
	}
	v.EndIndex = min(max(v.EndIndex, 0), total-1)
	v.StartIndex = min(max(v.StartIndex, 0), v.EndIndex)
	return v
}

// Model computes viewports and remembers the last one it reported so it
// can suppress insignificant changes.
//
// A Model is not safe for concurrent use.
type Model struct {
	threshold  int
	stabilizer *HeightStabilizer
	now        func() time.Time

	last    Viewport
	hasLast bool
}

// Option configures a Model.
type Option func(*Model)

// WithChangeThreshold sets the minimum start or end movement that counts
// as a change. Values below 1 are ignored.
func WithChangeThreshold(n int) Option {
	return func(m *Model) {
		if n >= 1 {
			m.threshold = n
		}
	}
}

// WithStabilizer replaces the default height stabilizer.
func WithStabilizer(s *HeightStabilizer) Option {
	return func(m *Model) {
		if s != nil {
			m.stabilizer = s
		}
	}
}

// WithClock sets the time source used by the height stabilizer.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a viewport model.
func New(opts ...Option) *Model {
	m := &Model{
		threshold:  DefaultChangeThreshold,
		stabilizer: NewHeightStabilizer(DefaultResyncDelta, DefaultMaxLag),
		now:        time.Now,
		last:       Viewport{empty: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stabilizer returns the height stabilizer feeding TotalHeight.
func (m *Model) Stabilizer() *HeightStabilizer {
	return m.stabilizer
}

// Last returns the last reported viewport and whether there is one. Before
// the first report it is the empty viewport.
func (m *Model) Last() (Viewport, bool) {
	return m.last, m.hasLast
}

// Reset forgets the last reported viewport so the next Compute reports a
// change.
func (m *Model) Reset() {
	m.last = Viewport{empty: true}
	m.hasLast = false
}

// Compute returns the viewport for the given geometry and whether it moved
// significantly since the last reported one.
//
// Offsets within one row of the top always start at index 0. Otherwise the
// range starts bufferSize rows above the first visible row and holds the
// visible rows plus bufferSize on each side, clamped to the row count.
// Offsets past the content are clamped so the tail page stays populated.
//
// Non-positive container or row heights return the previous viewport with
// changed == false. Only the reported (changed) viewport becomes the new
// reference for later change detection.
func (m *Model) Compute(scrollOffset, containerHeight, rowHeight float64, bufferSize, totalRowCount int) (Viewport, bool) {
	if !(containerHeight > 0) || !(rowHeight > 0) {
		return m.last, false
	}
	defer metrics.Timer(metrics.ViewportCompute)()

	if math.IsNaN(scrollOffset) || scrollOffset < 0 {
		scrollOffset = 0
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	if totalRowCount < 0 {
		totalRowCount = 0
	}

	height := m.stabilizer.Update(float64(totalRowCount)*rowHeight, m.now())

	if totalRowCount == 0 {
		vp := Viewport{TotalHeight: height, ScrollOffset: scrollOffset, empty: true}
		changed := !m.hasLast || !m.last.empty
		return vp, m.report(vp, changed)
	}

	visible := rowsIn(containerHeight/rowHeight, totalRowCount, true)

	start := 0
	if scrollOffset > rowHeight {
		start = rowsIn(scrollOffset/rowHeight, totalRowCount, false) - bufferSize
		if start < 0 {
			start = 0
		}
	}
	if maxStart := totalRowCount - visible - bufferSize; start > maxStart {
		start = max(0, maxStart)
	}

	// inclusive: visible+2*buffer rows in total
	end := min(totalRowCount-1, start+visible+2*bufferSize-1)

	vp := Viewport{
		StartIndex:   start,
		EndIndex:     end,
		TotalHeight:  height,
		ScrollOffset: scrollOffset,
	}
	return vp, m.report(vp, m.significant(vp, totalRowCount))
}

func (m *Model) significant(vp Viewport, total int) bool {
	if !m.hasLast || m.last.empty {
		return true
	}
	// the old range no longer fits the rows (e.g. a collapse shrank them)
	if m.last.EndIndex >= total {
		return true
	}
	return abs(vp.StartIndex-m.last.StartIndex) >= m.threshold ||
		abs(vp.EndIndex-m.last.EndIndex) >= m.threshold
}

func (m *Model) report(vp Viewport, changed bool) bool {
	if changed {
		debug.Log("viewport: [%d,%d] height=%.0f empty=%v", vp.StartIndex, vp.EndIndex, vp.TotalHeight, vp.empty)
		metrics.ViewportChanges.Inc()
		m.last = vp
		m.hasLast = true
	}
	return changed
}

// rowsIn converts a row-count ratio to an int capped at limit, rounding up
// or down.
func rowsIn(ratio float64, limit int, up bool) int {
	if ratio >= float64(limit) {
		return limit
	}
	if up {
		return int(math.Ceil(ratio))
	}
	return int(math.Floor(ratio))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
