package viewport

import "time"

const (
	// DefaultResyncDelta is the growth in pixels applied without waiting.
	DefaultResyncDelta = 2000
	// DefaultMaxLag bounds how long smaller growth may be held back.
	DefaultMaxLag = 250 * time.Millisecond
)

// HeightStabilizer lags the reported total height behind the exact
// rowCount*rowHeight while rows arrive in small increments, so the
// scrollbar does not jump on every batch.
//
// Shrinking is applied immediately: a reported height larger than the
// content would let the user scroll into nothing.
type HeightStabilizer struct {
	ResyncDelta float64
	MaxLag      time.Duration

	reported float64
	lastSync time.Time
	synced   bool
}

// NewHeightStabilizer creates a stabilizer. Non-positive arguments fall
// back to the defaults.
func NewHeightStabilizer(resyncDelta float64, maxLag time.Duration) *HeightStabilizer {
	if resyncDelta <= 0 {
		resyncDelta = DefaultResyncDelta
	}
	if maxLag <= 0 {
		maxLag = DefaultMaxLag
	}
	return &HeightStabilizer{ResyncDelta: resyncDelta, MaxLag: maxLag}
}

// Update feeds the exact height and returns the height to report.
func (h *HeightStabilizer) Update(target float64, now time.Time) float64 {
	switch {
	case !h.synced,
		target <= h.reported,
		target-h.reported >= h.ResyncDelta,
		now.Sub(h.lastSync) >= h.MaxLag:
		h.sync(target, now)
	}
	return h.reported
}

// Resync forces the reported height to target.
func (h *HeightStabilizer) Resync(target float64, now time.Time) {
	h.sync(target, now)
}

// Height returns the currently reported height.
func (h *HeightStabilizer) Height() float64 {
	return h.reported
}

// Lagging reports whether the reported height trails target.
func (h *HeightStabilizer) Lagging(target float64) bool {
	return h.synced && target > h.reported
}

func (h *HeightStabilizer) sync(target float64, now time.Time) {
	h.reported = target
	h.lastSync = now
	h.synced = true
}
