// Package scroll coalesces high-frequency scroll signals into at most one
// viewport recomputation per frame and derives a transient, velocity-based
// buffer boost for that recomputation.
package scroll

import (
	"math"
	"sync"
	"time"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
	"github.com/vanderheijden86/wintree/pkg/model"
)

const (
	// DefaultVelocityFloor is the speed (px/ms) at or below which no extra
	// buffer is added.
	DefaultVelocityFloor = 1.0
	// DefaultVelocityDivisor converts speed into extra buffer rows.
	DefaultVelocityDivisor = 1.5
	// DefaultMaxExtraBuffer caps the extra buffer rows.
	DefaultMaxExtraBuffer = 8
)

// Options tunes the velocity to buffer mapping. Zero values select the
// defaults.
type Options struct {
	VelocityFloor   float64
	VelocityDivisor float64
	MaxExtraBuffer  int
}

func (o Options) withDefaults() Options {
	if o.VelocityFloor <= 0 {
		o.VelocityFloor = DefaultVelocityFloor
	}
	if o.VelocityDivisor <= 0 {
		o.VelocityDivisor = DefaultVelocityDivisor
	}
	if o.MaxExtraBuffer <= 0 {
		o.MaxExtraBuffer = DefaultMaxExtraBuffer
	}
	return o
}

// BufferAdjustment maps a velocity to extra buffer rows.
func (o Options) BufferAdjustment(velocity float64) int {
	o = o.withDefaults()
	speed := math.Abs(velocity)
	if !(speed > o.VelocityFloor) {
		return 0
	}
	extra := math.Floor(speed / o.VelocityDivisor)
	if extra >= float64(o.MaxExtraBuffer) {
		return o.MaxExtraBuffer
	}
	return int(extra)
}

// Frame is the single effective update produced for one scheduling frame.
type Frame struct {
	Position         float64
	Timestamp        time.Time
	Velocity         float64 // px per ms since the previous frame
	Direction        model.ScrollDirection
	BufferAdjustment int
	Coalesced        int // signals superseded inside this frame
}

// ScrollScheduler turns raw scroll signals into Frames. A signal that
// arrives while a frame is pending replaces that frame's payload and
// keeps its deadline, so sustained scrolling gets one frame per interval
// and never builds a backlog.
type ScrollScheduler struct {
	sched   Scheduler
	opts    Options
	handler func(Frame)

	mu        sync.Mutex
	pending   bool
	token     Token
	gen       uint64
	pos       float64
	ts        time.Time
	coalesced int

	lastPos float64
	lastTS  time.Time
	hasLast bool
	stopped bool
}

// New creates a ScrollScheduler that delivers frames to handler through
// sched.
func New(sched Scheduler, handler func(Frame), opts Options) *ScrollScheduler {
	return &ScrollScheduler{
		sched:   sched,
		opts:    opts.withDefaults(),
		handler: handler,
	}
}

// Options returns the effective options.
func (s *ScrollScheduler) Options() Options {
	return s.opts
}

// OnScrollSignal records a raw scroll position. While a frame is pending
// the signal only updates what that frame will carry.
func (s *ScrollScheduler) OnScrollSignal(pos float64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.pos, s.ts = pos, ts
	if s.pending {
		s.coalesced++
		metrics.FramesCoalesced.Inc()
		return
	}
	s.pending = true
	s.gen++
	gen := s.gen
	s.token = s.sched.Schedule(func() { s.fire(gen) })
}

// Flush runs the pending frame now, if any, and reports whether one ran.
func (s *ScrollScheduler) Flush() bool {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return false
	}
	s.sched.Cancel(s.token)
	frame := s.takeLocked()
	s.mu.Unlock()

	s.dispatch(frame)
	return true
}

// Pending reports whether a frame is waiting to fire.
func (s *ScrollScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Rebase sets the reference position without producing a frame, for
// programmatic jumps that must not read as fast scrolling.
func (s *ScrollScheduler) Rebase(pos float64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPos, s.lastTS, s.hasLast = pos, ts, true
}

// Stop cancels any pending frame and ignores later signals.
func (s *ScrollScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		s.sched.Cancel(s.token)
		s.pending = false
	}
	s.stopped = true
}

func (s *ScrollScheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.pending || gen != s.gen {
		// superseded after the scheduler already committed to running us
		s.mu.Unlock()
		return
	}
	frame := s.takeLocked()
	s.mu.Unlock()

	s.dispatch(frame)
}

func (s *ScrollScheduler) takeLocked() Frame {
	f := Frame{
		Position:  s.pos,
		Timestamp: s.ts,
		Coalesced: s.coalesced,
	}
	if s.hasLast {
		delta := s.pos - s.lastPos
		elapsed := float64(s.ts.Sub(s.lastTS)) / float64(time.Millisecond)
		f.Velocity = delta / math.Max(elapsed, 1)
		switch {
		case delta > 0:
			f.Direction = model.ScrollForward
		case delta < 0:
			f.Direction = model.ScrollBackward
		}
	} else if s.pos > 0 {
		f.Direction = model.ScrollForward
	}
	f.BufferAdjustment = s.opts.BufferAdjustment(f.Velocity)

	s.lastPos, s.lastTS, s.hasLast = s.pos, s.ts, true
	s.pending = false
	s.coalesced = 0
	return f
}

func (s *ScrollScheduler) dispatch(f Frame) {
	defer metrics.Timer(metrics.FrameDispatch)()
	debug.LogIf(f.Coalesced > 0, "scroll: frame at %.0f coalesced %d signals, v=%.2f extra=%d",
		f.Position, f.Coalesced, f.Velocity, f.BufferAdjustment)
	if s.handler != nil {
		s.handler(f)
	}
}
