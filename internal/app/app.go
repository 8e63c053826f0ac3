package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/inbox"
	"github.com/nhle/bizdesk/internal/keys"
	"github.com/nhle/bizdesk/internal/model"
	appsync "github.com/nhle/bizdesk/internal/sync"
	"github.com/nhle/bizdesk/internal/ui"
	helpview "github.com/nhle/bizdesk/internal/ui/help"
	"github.com/nhle/bizdesk/internal/ui/notiflist"
)

const (
	flashDuration  = 3 * time.Second
	bannerDuration = 8 * time.Second
	deleteTimeout  = 15 * time.Second

	expiredMessage = "session expired. Log in again with 'bizdesk login'."
)

// Inbox is the part of the notification store the UI drives.
type Inbox interface {
	Snapshot() inbox.Snapshot
	Subscribe() <-chan inbox.Snapshot
	Unsubscribe(ch <-chan inbox.Snapshot)
	MarkAsRead(id string)
	MarkAllAsRead()
	DeleteNotification(ctx context.Context, id string) error
	Stop()
}

var _ Inbox = (*inbox.Store)(nil)

// Config wires the model to the running subsystem.
type Config struct {
	Inbox  Inbox
	Poller *appsync.Poller

	// Alerts delivers notifications that just arrived over the push
	// channel. Optional.
	Alerts <-chan model.Notification

	// AuthLost delivers Unauthorized failures reported by the store.
	// Optional.
	AuthLost <-chan error

	// OnExpired tears the local session down after the backend rejected it.
	OnExpired func() error

	// Bell rings the terminal bell. Defaults to writing BEL to stderr.
	Bell func()

	// User is shown in the header.
	User string
}

// snapshotMsg carries the latest store state to the UI.
type snapshotMsg struct {
	snap inbox.Snapshot
	ok   bool
}

type alertMsg struct {
	n model.Notification
}

type unflashMsg struct {
	id string
}

type authLostMsg struct {
	err error
}

type deleteResultMsg struct {
	id  string
	err error
}

type expiredDoneMsg struct {
	err error
}

type clearBannerMsg struct {
	seq int
}

// Model is the root Bubble Tea model of the notification center.
type Model struct {
	cfg      Config
	keys     *keys.KeyMap
	layout   ui.Layout
	list     notiflist.Model
	helpView helpview.Model
	sub      <-chan inbox.Snapshot
	snap     inbox.Snapshot
	ready    bool
	showHelp bool

	banner    string
	bannerSeq int
	expired   bool
}

// New creates the root model. It subscribes to the store immediately so no
// mutation between New and Init is missed.
func New(cfg Config) Model {
	if cfg.Bell == nil {
		cfg.Bell = func() { fmt.Fprint(os.Stderr, "\a") }
	}
	k := keys.DefaultKeyMap()
	m := Model{
		cfg:      cfg,
		keys:     k,
		list:     notiflist.New(k, 80, 22),
		helpView: helpview.New(k, 80, 22),
		sub:      cfg.Inbox.Subscribe(),
	}
	m.snap = cfg.Inbox.Snapshot()
	return m
}

// Init starts listening to the store and starts the poller, whose first
// resync seeds the feed.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForSnapshot(m.sub),
		waitForAlert(m.cfg.Alerts),
		waitForAuthLost(m.cfg.AuthLost),
	}
	if m.cfg.Poller != nil {
		cmds = append(cmds, m.cfg.Poller.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the list view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.list.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		return m, nil

	case snapshotMsg:
		if !msg.ok {
			// The store was closed.
			return m, nil
		}
		m.snap = msg.snap
		cmd := m.list.SetNotifications(msg.snap.Notifications)
		return m, tea.Batch(cmd, waitForSnapshot(m.sub))

	case alertMsg:
		m.list.Flash(msg.n.ID)
		bell := m.cfg.Bell
		return m, tea.Batch(
			waitForAlert(m.cfg.Alerts),
			func() tea.Msg { bell(); return nil },
			tea.Tick(flashDuration, func(time.Time) tea.Msg { return unflashMsg{id: msg.n.ID} }),
		)

	case unflashMsg:
		m.list.Unflash(msg.id)
		return m, nil

	case authLostMsg:
		return m.expire(msg.err)

	case appsync.ResyncResultMsg:
		var wait tea.Cmd
		if m.cfg.Poller != nil {
			wait = m.cfg.Poller.WaitForNextResult()
		}
		switch {
		case msg.AuthError != nil:
			next, cmd := m.expire(msg.Error)
			return next, tea.Batch(wait, cmd)
		case msg.Error != nil:
			next, cmd := m.showBanner(fmt.Sprintf("sync failed: %v", msg.Error))
			return next, tea.Batch(wait, cmd)
		case !m.expired:
			m.banner = ""
		}
		return m, wait

	case deleteResultMsg:
		if msg.err == nil {
			return m, nil
		}
		if feed.IsUnauthorized(msg.err) {
			return m.expire(msg.err)
		}
		if errors.Is(msg.err, inbox.ErrNoSession) || errors.Is(msg.err, inbox.ErrSessionChanged) {
			return m, nil
		}
		return m.showBanner(fmt.Sprintf("delete failed: %v", msg.err))

	case expiredDoneMsg:
		if msg.err != nil {
			log.Printf("clearing session: %v", msg.err)
		}
		return m, nil

	case clearBannerMsg:
		if msg.seq == m.bannerSeq && !m.expired {
			m.banner = ""
		}
		return m, nil

	case notiflist.MarkReadMsg:
		if !m.expired {
			m.cfg.Inbox.MarkAsRead(msg.ID)
		}
		return m, nil

	case notiflist.MarkAllReadMsg:
		if !m.expired {
			m.cfg.Inbox.MarkAllAsRead()
		}
		return m, nil

	case notiflist.DeleteMsg:
		if m.expired {
			return m, nil
		}
		return m, m.deleteNotification(msg.ID)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			m.showHelp = false
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			if m.cfg.Poller != nil && !m.expired {
				m.cfg.Poller.Refresh()
			}
			return m, nil
		}

		if m.showHelp {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// expire shows the session-expired banner and tears the session down.
// Later calls are no-ops.
func (m Model) expire(err error) (Model, tea.Cmd) {
	if m.expired {
		return m, nil
	}
	if err != nil {
		log.Printf("session rejected by backend: %v", err)
	}
	m.expired = true
	m.banner = expiredMessage

	if m.cfg.Poller != nil {
		m.cfg.Poller.Stop()
	}
	box, onExpired := m.cfg.Inbox, m.cfg.OnExpired
	return m, func() tea.Msg {
		box.Stop()
		if onExpired == nil {
			return expiredDoneMsg{}
		}
		return expiredDoneMsg{err: onExpired()}
	}
}

// showBanner puts text in the status bar for a while.
func (m Model) showBanner(text string) (Model, tea.Cmd) {
	if m.expired {
		return m, nil
	}
	m.bannerSeq++
	m.banner = text
	seq := m.bannerSeq
	return m, tea.Tick(bannerDuration, func(time.Time) tea.Msg { return clearBannerMsg{seq: seq} })
}

func (m Model) quit() (Model, tea.Cmd) {
	if m.cfg.Poller != nil {
		m.cfg.Poller.Stop()
	}
	m.cfg.Inbox.Unsubscribe(m.sub)
	return m, tea.Quit
}

func (m Model) deleteNotification(id string) tea.Cmd {
	box := m.cfg.Inbox
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
		defer cancel()
		return deleteResultMsg{id: id, err: box.DeleteNotification(ctx, id)}
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Notifications"
	if m.cfg.User != "" {
		title = fmt.Sprintf("Notifications · %s", m.cfg.User)
	}
	header := m.layout.RenderHeader(title, ui.Badge(m.snap.UnreadCount), m.status())

	content := m.list.View()
	if m.showHelp {
		content = m.helpView.View()
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	if m.banner != "" {
		statusBar = m.layout.RenderErrorBar(m.banner)
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// status returns the right-hand side of the header.
func (m Model) status() string {
	syncing := ""
	if m.cfg.Poller != nil && m.cfg.Poller.Status().State == appsync.SyncRunning {
		syncing = "syncing "
	}
	if m.expired {
		return ui.ConnectionIndicator(false)
	}
	return syncing + ui.ConnectionIndicator(m.snap.Connected)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.showHelp {
		return "? close help | esc back"
	}
	return m.helpView.ShortView()
}

func waitForSnapshot(ch <-chan inbox.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func waitForAlert(ch <-chan model.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return alertMsg{n: n}
	}
}

func waitForAuthLost(ch <-chan error) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return authLostMsg{err: err}
	}
}
