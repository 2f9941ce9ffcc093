package metrics

import "sync/atomic"

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    atomic.Int64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc adds one to the counter.
func (c *Counter) Inc() {
	if !Enabled() {
		return
	}
	c.n.Add(1)
}

// Name returns the counter name.
func (c *Counter) Name() string {
	return c.name
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.n.Load()
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.n.Store(0)
}

var (
	// FramesCoalesced counts scroll signals that replaced a pending frame.
	FramesCoalesced = newCounter("frames_coalesced")
	// LoadsTriggered counts load batches the loader asked the host for.
	LoadsTriggered = newCounter("loads_triggered")
	// ViewportChanges counts viewport recomputations reported as significant.
	ViewportChanges = newCounter("viewport_changes")
	// CyclesBroken counts parent links dropped to break a cycle.
	CyclesBroken = newCounter("cycles_broken")
	// Reloads counts item sets re-read after the source file changed.
	Reloads = newCounter("reloads")
)

// AllCounters returns all registered counters.
func AllCounters() []*Counter {
	return []*Counter{FramesCoalesced, LoadsTriggered, ViewportChanges, CyclesBroken, Reloads}
}

// CounterValues returns a name -> value map for reporting.
func CounterValues() map[string]int64 {
	out := make(map[string]int64)
	for _, c := range AllCounters() {
		out[c.Name()] = c.Value()
	}
	return out
}
