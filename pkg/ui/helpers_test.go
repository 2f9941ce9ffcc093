package ui

import (
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/wintree/pkg/model"
)

func TestFormatTimeRel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(time.Hour), "now"},
		{now.Add(-30 * time.Second), "now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
		{now.Add(-15 * 24 * time.Hour), "2w ago"},
		{now.Add(-90 * 24 * time.Hour), "3mo ago"},
	}
	for _, tt := range tests {
		if got := FormatTimeRel(tt.at, now); got != tt.want {
			t.Errorf("FormatTimeRel(%v): expected %q, got %q", tt.at, tt.want, got)
		}
	}
}

func TestTruncateRunesHelper(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 6, "hello…"},
		{"日本語テキスト", 7, "日本語…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateRunesHelper(tt.in, tt.width, "…"); got != tt.want {
			t.Errorf("truncateRunesHelper(%q, %d): expected %q, got %q", tt.in, tt.width, tt.want, got)
		}
	}
}

func TestFitWidth(t *testing.T) {
	for _, s := range []string{"", "ab", "a long title that overflows", "日本語テキスト"} {
		if w := runewidth.StringWidth(fitWidth(s, 8)); w != 8 {
			t.Errorf("fitWidth(%q, 8): expected width 8, got %d", s, w)
		}
	}
}

func TestBadgeWidths(t *testing.T) {
	for _, p := range []*int{nil, model.IntPtr(0), model.IntPtr(2), model.IntPtr(9)} {
		if w := lipgloss.Width(RenderPriorityBadge(p)); w != prioBadgeWidth {
			t.Errorf("priority badge width: expected %d, got %d", prioBadgeWidth, w)
		}
	}
	for _, s := range []model.Status{model.StatusNone, model.StatusOpen, model.StatusInProgress, model.StatusBlocked, model.StatusClosed} {
		if w := lipgloss.Width(RenderStatusBadge(s)); w != statusBadgeWidth {
			t.Errorf("status badge %q width: expected %d, got %d", s, statusBadgeWidth, w)
		}
	}
}

func TestFrameScheduler(t *testing.T) {
	s := newFrameScheduler(0)
	if s.interval <= 0 {
		t.Fatal("expected default interval")
	}
	if s.drain() != nil {
		t.Error("expected nil command with nothing queued")
	}

	var fired []int
	a := s.Schedule(func() { fired = append(fired, 1) })
	b := s.Schedule(func() { fired = append(fired, 2) })
	if a == 0 || b <= a {
		t.Errorf("expected increasing non-zero tokens, got %d, %d", a, b)
	}
	if s.drain() == nil {
		t.Error("expected queued tick commands")
	}
	if s.drain() != nil {
		t.Error("expected drain to empty the queue")
	}

	s.Cancel(a)
	if s.fire(a) {
		t.Error("expected canceled token not to fire")
	}
	if !s.fire(b) || len(fired) != 1 || fired[0] != 2 {
		t.Errorf("expected only the live callback to run, got %v", fired)
	}
	if s.fire(b) {
		t.Error("expected a token to fire once")
	}
	if s.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", s.Pending())
	}
}
