package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bizdesk/internal/theme"
)

// Layout manages the terminal frame: a one-line header, the content area
// and a one-line status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// Badge renders the bell badge for unread notifications. It is empty when
// there is nothing unread.
func Badge(unread int) string {
	if unread <= 0 {
		return ""
	}
	return theme.BadgeStyle.Render(fmt.Sprintf("[%d new]", unread))
}

// ConnectionIndicator renders the push channel state for the header.
func ConnectionIndicator(connected bool) string {
	label := "● live"
	if !connected {
		label = "○ offline"
	}
	return theme.ConnectionStyle(connected).Render(label)
}

// RenderHeader renders the top header bar: title and badge on the left,
// status on the right.
func (l Layout) RenderHeader(title, badge, status string) string {
	left := theme.HeaderStyle.Render(title)
	if badge != "" {
		left = lipgloss.JoinHorizontal(lipgloss.Top, left, badge)
	}

	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(status), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, status)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	return l.fill(theme.StatusBarStyle, hints)
}

// RenderErrorBar renders msg as a full-width error banner in place of the
// status bar.
func (l Layout) RenderErrorBar(msg string) string {
	return l.fill(theme.ErrorBarStyle, msg)
}

func (l Layout) fill(style lipgloss.Style, text string) string {
	rendered := style.Render(text)
	gap := max(l.Width-lipgloss.Width(rendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
