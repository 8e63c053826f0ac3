package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bizdesk/internal/keys"
	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/theme"
)

// section is one titled group of bindings in the overlay.
type section struct {
	title    string
	bindings []key.Binding
}

// Model is the notification center's help overlay.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

func (m Model) sections() []section {
	return []section{
		{title: "Browse", bindings: []key.Binding{m.keys.Up, m.keys.Down}},
		{title: "Inbox", bindings: []key.Binding{m.keys.MarkRead, m.keys.MarkAllRead, m.keys.Delete, m.keys.Refresh}},
		{title: "Session", bindings: []key.Binding{m.keys.Help, m.keys.Back, m.keys.Quit}},
	}
}

// View renders the overlay: key groups side by side, then the legend for
// the markers and badges used in the feed.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Notification Center")

	var columns []string
	for _, s := range m.sections() {
		columns = append(columns, renderSection(s))
	}
	groups := lipgloss.JoinHorizontal(lipgloss.Top, columns...)

	content := lipgloss.JoinVertical(lipgloss.Left, title, groups, "", legend())

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func renderSection(s section) string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(s.title)

	lines := []string{heading}
	for _, b := range s.bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		lines = append(lines, lipgloss.NewStyle().Width(9).Render(h.Key)+theme.HelpStyle.Render(h.Desc))
	}
	return lipgloss.NewStyle().MarginRight(4).Render(strings.Join(lines, "\n"))
}

func legend() string {
	priorities := []string{
		theme.PriorityStyle(model.PriorityUrgent).Render("!! urgent"),
		theme.PriorityStyle(model.PriorityHigh).Render("! high"),
	}
	markers := theme.HelpStyle.Render("● unread   ○ read")
	status := theme.ConnectionStyle(true).Render("● live") + "  " + theme.ConnectionStyle(false).Render("○ offline")
	return lipgloss.JoinVertical(lipgloss.Left,
		markers,
		strings.Join(priorities, "   "),
		status,
	)
}

// ShortView renders the one-line key hints for the status bar.
func (m Model) ShortView() string {
	m.help.ShowAll = false
	return m.help.View(m.keys)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
