package notiflist

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bizdesk/internal/keys"
	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/theme"
)

// MarkReadMsg asks the app to mark the selected notification as read.
type MarkReadMsg struct {
	ID string
}

// MarkAllReadMsg asks the app to mark every notification as read.
type MarkAllReadMsg struct{}

// DeleteMsg asks the app to delete the selected notification.
type DeleteMsg struct {
	ID string
}

// Model is the notification list view.
type Model struct {
	list     list.Model
	keys     *keys.KeyMap
	flashing map[string]bool
	loaded   bool
	width    int
	height   int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	flashing := make(map[string]bool)
	delegate := ItemDelegate{flashing: flashing, now: time.Now}

	l := list.New([]list.Item{}, delegate, width, height)
	l.Title = "Notifications"
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:     l,
		keys:     k,
		flashing: flashing,
		width:    width,
		height:   height,
	}
}

// SetNotifications replaces the rows with ns, keeping the cursor on the
// same notification when it is still present.
func (m *Model) SetNotifications(ns []model.Notification) tea.Cmd {
	selected := m.SelectedID()
	cursor := m.list.Index()

	items := make([]list.Item, len(ns))
	target := -1
	for i, n := range ns {
		items[i] = Item{Notification: n}
		if n.ID == selected {
			target = i
		}
	}
	cmd := m.list.SetItems(items)
	m.loaded = true

	switch {
	case len(items) == 0:
	case target >= 0:
		m.list.Select(target)
	default:
		m.list.Select(min(cursor, len(items)-1))
	}
	return cmd
}

// Flash highlights id until Unflash is called.
func (m *Model) Flash(id string) {
	m.flashing[id] = true
}

// Unflash removes the highlight from id.
func (m *Model) Unflash(id string) {
	delete(m.flashing, id)
}

// SelectedID returns the ID of the notification under the cursor, or "".
func (m Model) SelectedID() string {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return ""
	}
	return it.Notification.ID
}

// Len returns the number of rows.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.MarkRead):
			it, ok := m.list.SelectedItem().(Item)
			if !ok || it.Notification.IsRead {
				return m, nil
			}
			return m, emit(MarkReadMsg{ID: it.Notification.ID})

		case key.Matches(msg, m.keys.MarkAllRead):
			if m.Len() == 0 {
				return m, nil
			}
			return m, emit(MarkAllReadMsg{})

		case key.Matches(msg, m.keys.Delete):
			id := m.SelectedID()
			if id == "" {
				return m, nil
			}
			return m, emit(DeleteMsg{ID: id})
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the list view.
func (m Model) View() string {
	if m.Len() == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when there is nothing to list.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if !m.loaded {
		return style.Render("Loading notifications...")
	}
	return style.Render("No notifications.\n\nNew ones appear here as they arrive.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
