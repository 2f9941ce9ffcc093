// Package loader tracks incremental (paged) loading of a large dataset and
// decides when the next batch is needed.
package loader

import (
	"time"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/viewport"
)

const (
	// DefaultTriggerFraction is how far into the loaded extent the visible
	// range must reach before more data is requested.
	DefaultTriggerFraction = 0.85
	// DefaultCooldown is the minimum time between two load triggers.
	DefaultCooldown = 500 * time.Millisecond
)

// State is the loader lifecycle: Idle -> Loading -> Idle, repeatable,
// ending in Exhausted once everything is loaded.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// LoadState is a snapshot of the loader counters.
type LoadState struct {
	TotalCount     int       `json:"total_count"`
	LoadedCount    int       `json:"loaded_count"`
	IsLoadInFlight bool      `json:"in_flight"`
	LastTrigger    time.Time `json:"last_trigger,omitzero"`
}

// Options configures an IncrementalLoader. Zero values select defaults.
type Options struct {
	TriggerFraction float64
	Cooldown        time.Duration
}

func (o Options) withDefaults() Options {
	if o.TriggerFraction <= 0 || o.TriggerFraction > 1 {
		o.TriggerFraction = DefaultTriggerFraction
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	return o
}

// IncrementalLoader decides when the host should fetch the next batch and
// tracks how much of the dataset has arrived. It never performs I/O; the
// host fetches and reports back through CompleteLoad or AbortLoad.
//
// At most one batch is in flight at a time. An IncrementalLoader is not
// safe for concurrent use.
type IncrementalLoader struct {
	opts Options
	st   LoadState
}

// NewIncremental creates a loader for a dataset of total items, none of
// them loaded yet.
func NewIncremental(total int, opts Options) *IncrementalLoader {
	l := &IncrementalLoader{opts: opts.withDefaults()}
	l.Reset(total)
	return l
}

// Options returns the effective options.
func (l *IncrementalLoader) Options() Options {
	return l.opts
}

// ShouldLoadMore reports whether a new batch should be requested: nothing
// in flight, not exhausted, scrolling forward, the end of the visible
// range past TriggerFraction of extent, and the cooldown elapsed since the
// last trigger. A non-positive extent means the loaded count.
func (l *IncrementalLoader) ShouldLoadMore(vp viewport.Viewport, extent int, dir model.ScrollDirection, now time.Time) bool {
	if l.st.IsLoadInFlight || l.exhausted() || dir != model.ScrollForward {
		return false
	}
	if vp.IsEmpty() {
		return false
	}
	if extent <= 0 {
		extent = l.st.LoadedCount
	}
	if extent <= 0 {
		return false
	}
	if float64(vp.EndIndex+1)/float64(extent) <= l.opts.TriggerFraction {
		return false
	}
	return l.st.LastTrigger.IsZero() || now.Sub(l.st.LastTrigger) > l.opts.Cooldown
}

// BeginLoad marks a batch as in flight and records the trigger time. It
// returns false, changing nothing, when a batch is already in flight or
// the loader is exhausted.
func (l *IncrementalLoader) BeginLoad(now time.Time) bool {
	if l.st.IsLoadInFlight || l.exhausted() {
		return false
	}
	l.st.IsLoadInFlight = true
	l.st.LastTrigger = now
	metrics.LoadsTriggered.Inc()
	debug.Log("loader: begin at %d/%d", l.st.LoadedCount, l.st.TotalCount)
	return true
}

// CompleteLoad records n newly available items, clamped to what remains,
// and clears the in-flight flag. It returns the number actually counted.
func (l *IncrementalLoader) CompleteLoad(n int) int {
	added := min(max(n, 0), l.Remaining())
	l.st.LoadedCount += added
	l.st.IsLoadInFlight = false
	debug.LogIf(added != n, "loader: clamped completion %d to %d", n, added)
	debug.LogIf(l.exhausted(), "loader: exhausted at %d", l.st.TotalCount)
	return added
}

// AbortLoad clears the in-flight flag without progress, for a failed
// fetch. The cooldown still runs from the original trigger.
func (l *IncrementalLoader) AbortLoad() {
	if l.st.IsLoadInFlight {
		debug.Log("loader: batch aborted at %d/%d", l.st.LoadedCount, l.st.TotalCount)
	}
	l.st.IsLoadInFlight = false
}

// Reset starts over with nothing loaded out of total. A total of zero is
// immediately exhausted.
func (l *IncrementalLoader) Reset(total int) {
	l.st = LoadState{TotalCount: max(total, 0)}
}

// SetTotal changes the dataset size, clamping the loaded count.
func (l *IncrementalLoader) SetTotal(total int) {
	l.st.TotalCount = max(total, 0)
	l.st.LoadedCount = min(l.st.LoadedCount, l.st.TotalCount)
}

// State returns the lifecycle state.
func (l *IncrementalLoader) State() State {
	switch {
	case l.st.IsLoadInFlight:
		return StateLoading
	case l.exhausted():
		return StateExhausted
	default:
		return StateIdle
	}
}

// Snapshot returns a copy of the counters.
func (l *IncrementalLoader) Snapshot() LoadState {
	return l.st
}

// Loaded returns the loaded count.
func (l *IncrementalLoader) Loaded() int {
	return l.st.LoadedCount
}

// Remaining returns how many items have not been loaded yet.
func (l *IncrementalLoader) Remaining() int {
	return l.st.TotalCount - l.st.LoadedCount
}

// NextBatch returns the offset and limit of the next batch of at most
// batchSize items. limit is 0 when exhausted.
func (l *IncrementalLoader) NextBatch(batchSize int) (offset, limit int) {
	return l.st.LoadedCount, min(max(batchSize, 0), l.Remaining())
}

func (l *IncrementalLoader) exhausted() bool {
	return l.st.LoadedCount >= l.st.TotalCount
}
