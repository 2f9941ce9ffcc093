package scroll

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Token identifies one scheduled callback. The zero Token is never issued.
type Token uint64

// Scheduler runs single-shot callbacks at the next frame. Cancel on a
// token that already fired, or was never issued, is a no-op.
//
// Schedule must not run fn before it returns.
type Scheduler interface {
	Schedule(fn func()) Token
	Cancel(tok Token)
}

// TimerScheduler fires callbacks on a timer goroutine one interval after
// they are scheduled. It is safe for concurrent use; callbacks that touch
// single-threaded state must marshal back to their owner.
type TimerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

// NewTimerScheduler creates a TimerScheduler. A non-positive interval
// selects DefaultFrameInterval.
func NewTimerScheduler(interval time.Duration) *TimerScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TimerScheduler{
		interval: interval,
		timers:   make(map[Token]*time.Timer),
	}
}

// Schedule implements Scheduler.
func (s *TimerScheduler) Schedule(fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	tok := s.next
	s.timers[tok] = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, live := s.timers[tok]
		delete(s.timers, tok)
		s.mu.Unlock()
		if live {
			fn()
		}
	})
	return tok
}

// Cancel implements Scheduler.
func (s *TimerScheduler) Cancel(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[tok]; ok {
		t.Stop()
		delete(s.timers, tok)
	}
}

// Pending returns the number of callbacks waiting to fire.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ManualScheduler holds callbacks until Fire is called. Hosts with their
// own frame loop, and tests, drive it directly.
type ManualScheduler struct {
	mu      sync.Mutex
	next    Token
	pending []manualEntry
}

type manualEntry struct {
	tok Token
	fn  func()
}

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements Scheduler.
func (s *ManualScheduler) Schedule(fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.pending = append(s.pending, manualEntry{tok: s.next, fn: fn})
	return s.next
}

// Cancel implements Scheduler.
func (s *ManualScheduler) Cancel(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.pending {
		if e.tok == tok {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// Fire runs every callback scheduled before the call, in order, and
// returns how many ran. Callbacks scheduled while firing wait for the next
// Fire.
func (s *ManualScheduler) Fire() int {
	s.mu.Lock()
	due := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
	return len(due)
}

// Pending returns the number of callbacks waiting to fire.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
