package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/order"
)

const (
	idColumnWidth  = 16
	ageColumnWidth = 8
)

// View renders the header, the rows on screen, and the footer. Rows come
// from the engine's viewport only; a screen line outside it (the frame
// that moves the window has not fired yet) renders as a placeholder.
func (m Model) View() string {
	if !m.ready {
		return m.renderEmptyState("Loading…")
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	rows := m.engine.Rows()
	vp := m.engine.Viewport()
	h := m.listHeight()
	for i := 0; i < h; i++ {
		idx := m.top + i
		switch {
		case idx >= len(rows):
			if len(rows) == 0 && i == 0 {
				sb.WriteString(m.theme.MutedText.Render(" No items."))
			}
		case vp.Contains(idx):
			sb.WriteString(m.renderRow(rows[idx], idx == m.cursor))
		default:
			sb.WriteString(m.theme.MutedText.Render(" …"))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Model) renderEmptyState(msg string) string {
	if m.status != "" && m.statusErr {
		return m.theme.ErrorText.Render(m.status)
	}
	return m.theme.MutedText.Render(msg)
}

// renderHeader returns the column header row.
func (m Model) renderHeader() string {
	width := max(m.width, 20)
	label := "  PRI STAT " + padRight("ID", idColumnWidth) + " TITLE"
	return m.theme.Header.Render(fitWidth(label, width))
}

// renderRow renders one row:
// [indent] [expand] [prio-badge] [status-badge] [ID] [title] [age]
func (m Model) renderRow(row model.Row, isSelected bool) string {
	width := max(m.width, 20) - 1

	var left strings.Builder
	indent := strings.Repeat("  ", row.Level)
	left.WriteString(m.theme.MutedText.Render(indent))
	left.WriteString(m.theme.SecondaryText.Render(expandIndicator(row)))
	left.WriteString(" ")

	var (
		prio   *int
		status model.Status
		title  string
		age    string
	)
	if row.Item != nil {
		prio, status, title = row.Item.Priority, row.Item.Status, row.Item.Label()
		age = FormatTimeRel(row.Item.UpdatedAt, m.now())
	}
	left.WriteString(RenderPriorityBadge(prio))
	left.WriteString(" ")
	left.WriteString(RenderStatusBadge(status))
	left.WriteString(" ")

	idStyle := m.theme.SecondaryText
	if isSelected {
		idStyle = idStyle.Bold(true)
	}
	left.WriteString(idStyle.Render(fitWidth(row.ID, idColumnWidth)))
	left.WriteString(" ")

	fixed := lipgloss.Width(indent) + 2 + prioBadgeWidth + 1 + statusBadgeWidth + 1 + idColumnWidth + 1
	rightWidth := 0
	if width > 60 {
		rightWidth = ageColumnWidth + 1
	}
	titleWidth := max(width-fixed-rightWidth, 5)

	titleStyle := m.theme.Title
	if isSelected {
		titleStyle = m.theme.PrimaryBold
	}
	left.WriteString(titleStyle.Render(fitWidth(title, titleWidth)))

	line := left.String()
	if rightWidth > 0 {
		line += " " + m.theme.MutedText.Render(fmt.Sprintf("%*s", ageColumnWidth, truncateRunesHelper(age, ageColumnWidth, "")))
	}
	if isSelected {
		line = m.theme.Selected.Render(line)
	}
	return line
}

func expandIndicator(row model.Row) string {
	switch {
	case !row.HasChildren:
		return "•"
	case row.Expanded:
		return "▾"
	default:
		return "▸"
	}
}

// renderStatus renders the footer: window position, load progress, sort
// and the last message.
func (m Model) renderStatus() string {
	width := max(m.width, 20)
	rows := m.engine.Rows()
	vp := m.engine.Viewport()
	st := m.engine.LoadState()

	parts := []string{}
	if vp.Len() > 0 {
		parts = append(parts, fmt.Sprintf("rows %d-%d of %d", vp.StartIndex+1, vp.EndIndex+1, len(rows)))
	} else {
		parts = append(parts, fmt.Sprintf("rows 0 of %d", len(rows)))
	}
	parts = append(parts, fmt.Sprintf("loaded %d/%d %s", st.LoadedCount, st.TotalCount, m.engine.LoadPhase()))
	if c := m.engine.Cycles(); len(c) > 0 {
		parts = append(parts, m.theme.ErrorText.Render(fmt.Sprintf("%d parent cycles broken", len(c))))
	}
	if m.cfg.UI.ShowStatus {
		parts = append(parts, "sort "+sortLabel(m))
		parts = append(parts, fmt.Sprintf("buffer %d", m.engine.BufferSize()))
	}
	line := " " + strings.Join(parts, " │ ")

	if m.status != "" {
		msg := " " + m.status
		room := width - lipgloss.Width(line) - 3
		if room > 0 {
			msg = truncateRunesHelper(msg, room, "…")
			if m.statusErr {
				return m.theme.StatusBar.Render(line+" │") + m.theme.ErrorText.Render(msg)
			}
			line += " │" + msg
		}
	}
	return m.theme.StatusBar.Render(fitWidth(line, width))
}

func sortLabel(m Model) string {
	if c := m.engine.Criteria(); len(c) > 0 {
		return order.FormatCriteria(c)
	}
	return order.FormatCriteria(order.DefaultCriteria)
}
