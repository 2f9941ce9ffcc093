package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/wintree/pkg/scroll"
)

// frameMsg delivers a scheduled frame back to Update.
type frameMsg struct {
	token scroll.Token
}

// frameScheduler implements scroll.Scheduler on bubbletea ticks. Schedule
// queues a tick command that Update collects with drain; the callback
// runs when the resulting frameMsg comes back through Update, so frames
// stay on the program's event loop.
type frameScheduler struct {
	interval time.Duration
	next     scroll.Token
	pending  map[scroll.Token]func()
	queued   []tea.Cmd
}

func newFrameScheduler(interval time.Duration) *frameScheduler {
	if interval <= 0 {
		interval = scroll.DefaultFrameInterval
	}
	return &frameScheduler{
		interval: interval,
		pending:  make(map[scroll.Token]func()),
	}
}

// Schedule implements scroll.Scheduler.
func (s *frameScheduler) Schedule(fn func()) scroll.Token {
	s.next++
	tok := s.next
	s.pending[tok] = fn
	s.queued = append(s.queued, tea.Tick(s.interval, func(time.Time) tea.Msg {
		return frameMsg{token: tok}
	}))
	return tok
}

// Cancel implements scroll.Scheduler. The tick still arrives and is
// ignored.
func (s *frameScheduler) Cancel(tok scroll.Token) {
	delete(s.pending, tok)
}

// fire runs the callback for tok if it is still pending.
func (s *frameScheduler) fire(tok scroll.Token) bool {
	fn, ok := s.pending[tok]
	if !ok {
		return false
	}
	delete(s.pending, tok)
	fn()
	return true
}

// drain returns the tick commands queued since the last drain.
func (s *frameScheduler) drain() tea.Cmd {
	if len(s.queued) == 0 {
		return nil
	}
	cmds := s.queued
	s.queued = nil
	return tea.Batch(cmds...)
}

// Pending returns the number of live frames.
func (s *frameScheduler) Pending() int {
	return len(s.pending)
}
