package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/wintree/pkg/model"
)

// COLOR PALETTE - Adaptive colors for light and dark terminals.
// Light mode colors tuned for WCAG AA contrast.
var (
	ColorBgSubtle = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#363949"}
	ColorMuted    = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	// Status colors
	ColorStatusOpen       = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorStatusInProgress = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorStatusBlocked    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorStatusClosed     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}

	// Status background colors (for badges)
	ColorStatusOpenBg       = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
	ColorStatusInProgressBg = lipgloss.AdaptiveColor{Light: "#D1ECF1", Dark: "#1A3344"}
	ColorStatusBlockedBg    = lipgloss.AdaptiveColor{Light: "#F8D7DA", Dark: "#3D1A1A"}
	ColorStatusClosedBg     = lipgloss.AdaptiveColor{Light: "#E2E3E5", Dark: "#2A2A3D"}

	// Priority colors
	ColorPrioCritical = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorPrioHigh     = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorPrioMedium   = lipgloss.AdaptiveColor{Light: "#808000", Dark: "#F1FA8C"}
	ColorPrioLow      = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}

	// Priority background colors
	ColorPrioCriticalBg = lipgloss.AdaptiveColor{Light: "#F8D7DA", Dark: "#3D1A1A"}
	ColorPrioHighBg     = lipgloss.AdaptiveColor{Light: "#FFE8CC", Dark: "#3D2A1A"}
	ColorPrioMediumBg   = lipgloss.AdaptiveColor{Light: "#FFF3CD", Dark: "#3D3D1A"}
	ColorPrioLowBg      = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
)

// Badge widths, in cells. Every badge renders at exactly this width so
// columns line up.
const (
	prioBadgeWidth   = 2
	statusBadgeWidth = 4
)

// RenderPriorityBadge returns a styled priority badge. Items without a
// priority render as "--".
func RenderPriorityBadge(priority *int) string {
	var fg, bg lipgloss.AdaptiveColor
	var label string

	p := -1
	if priority != nil {
		p = *priority
	}
	switch {
	case priority == nil:
		fg, bg, label = ColorMuted, ColorBgSubtle, "--"
	case p <= 0:
		fg, bg, label = ColorPrioCritical, ColorPrioCriticalBg, "P0"
	case p == 1:
		fg, bg, label = ColorPrioHigh, ColorPrioHighBg, "P1"
	case p == 2:
		fg, bg, label = ColorPrioMedium, ColorPrioMediumBg, "P2"
	case p == 3:
		fg, bg, label = ColorPrioLow, ColorPrioLowBg, "P3"
	default:
		fg, bg, label = ColorMuted, ColorBgSubtle, "P4"
	}

	return lipgloss.NewStyle().
		Foreground(fg).
		Background(bg).
		Bold(true).
		Render(label)
}

// RenderStatusBadge returns a styled status badge
func RenderStatusBadge(status model.Status) string {
	var fg, bg lipgloss.AdaptiveColor
	var label string

	switch status {
	case model.StatusOpen:
		fg, bg, label = ColorStatusOpen, ColorStatusOpenBg, "OPEN"
	case model.StatusInProgress:
		fg, bg, label = ColorStatusInProgress, ColorStatusInProgressBg, "PROG"
	case model.StatusBlocked:
		fg, bg, label = ColorStatusBlocked, ColorStatusBlockedBg, "BLKD"
	case model.StatusClosed:
		fg, bg, label = ColorStatusClosed, ColorStatusClosedBg, "DONE"
	default:
		fg, bg, label = ColorMuted, ColorBgSubtle, "    "
	}

	return lipgloss.NewStyle().
		Foreground(fg).
		Background(bg).
		Render(label)
}
