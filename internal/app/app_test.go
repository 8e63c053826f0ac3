package app

import (
	"context"
	"errors"
	"strings"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/inbox"
	"github.com/nhle/bizdesk/internal/model"
	appsync "github.com/nhle/bizdesk/internal/sync"
	"github.com/nhle/bizdesk/internal/ui/notiflist"
)

type fakeInbox struct {
	mu        gosync.Mutex
	snap      inbox.Snapshot
	sub       chan inbox.Snapshot
	read      []string
	allRead   int
	deleted   []string
	deleteErr error
	stopped   int
	unsubbed  bool
}

func newFakeInbox(snap inbox.Snapshot) *fakeInbox {
	return &fakeInbox{snap: snap, sub: make(chan inbox.Snapshot, 1)}
}

func (f *fakeInbox) Snapshot() inbox.Snapshot         { return f.snap }
func (f *fakeInbox) Subscribe() <-chan inbox.Snapshot  { return f.sub }
func (f *fakeInbox) Unsubscribe(<-chan inbox.Snapshot) { f.unsubbed = true }
func (f *fakeInbox) MarkAllAsRead()                    { f.allRead++ }
func (f *fakeInbox) MarkAsRead(id string)              { f.read = append(f.read, id) }

func (f *fakeInbox) DeleteNotification(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeInbox) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeInbox) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type noopSeeder struct{}

func (noopSeeder) FetchNotifications(context.Context) error { return nil }

func snapshot(connected bool, ns ...model.Notification) inbox.Snapshot {
	return inbox.Snapshot{
		Notifications: ns,
		UnreadCount:   model.CountUnread(ns),
		Connected:     connected,
		Active:        true,
		Session:       1,
	}
}

func note(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Title:     "Invoice " + id,
		Type:      model.TypeInvoiceCreated,
		Priority:  model.PriorityNormal,
		IsRead:    read,
		CreatedAt: time.Now().Add(-time.Minute),
	}
}

func newTestModel(t *testing.T, box *fakeInbox, cfg Config) Model {
	t.Helper()
	cfg.Inbox = box
	if cfg.Poller == nil {
		cfg.Poller = appsync.New(noopSeeder{}, time.Hour)
	}
	if cfg.Bell == nil {
		cfg.Bell = func() {}
	}
	m := New(cfg)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_HeaderShowsBadgeAndConnection(t *testing.T) {
	box := newFakeInbox(inbox.Snapshot{})
	m := newTestModel(t, box, Config{User: "ana@acme.test"})

	t.Run("before seed", func(t *testing.T) {
		view := m.View()
		if strings.Contains(view, "new]") {
			t.Errorf("badge shown with nothing unread:\n%s", view)
		}
		if !strings.Contains(view, "offline") {
			t.Errorf("offline indicator missing:\n%s", view)
		}
	})

	t.Run("after snapshot", func(t *testing.T) {
		m, _ := update(t, m, snapshotMsg{snap: snapshot(true, note("a", false), note("b", false), note("c", true)), ok: true})
		view := m.View()
		for _, want := range []string{"[2 new]", "live", "ana@acme.test", "Invoice a", "invoice created"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
	})
}

func TestUpdate_ForwardsCommandsToInbox(t *testing.T) {
	box := newFakeInbox(inbox.Snapshot{})
	m := newTestModel(t, box, Config{})
	m, _ = update(t, m, snapshotMsg{snap: snapshot(true, note("a", false), note("b", false)), ok: true})

	m, _ = update(t, m, notiflist.MarkReadMsg{ID: "a"})
	m, _ = update(t, m, notiflist.MarkAllReadMsg{})
	_, cmd := update(t, m, notiflist.DeleteMsg{ID: "b"})
	if cmd == nil {
		t.Fatal("DeleteMsg produced no command")
	}
	if msg, ok := cmd().(deleteResultMsg); !ok || msg.err != nil {
		t.Errorf("delete result = %#v", msg)
	}

	if len(box.read) != 1 || box.read[0] != "a" {
		t.Errorf("MarkAsRead calls = %v, want [a]", box.read)
	}
	if box.allRead != 1 {
		t.Errorf("MarkAllAsRead calls = %d, want 1", box.allRead)
	}
	if len(box.deleted) != 1 || box.deleted[0] != "b" {
		t.Errorf("DeleteNotification calls = %v, want [b]", box.deleted)
	}
}

func TestUpdate_TransientErrorShowsBanner(t *testing.T) {
	box := newFakeInbox(inbox.Snapshot{})
	m := newTestModel(t, box, Config{})

	m, cmd := update(t, m, appsync.ResyncResultMsg{Error: errors.New("connection refused")})
	if cmd == nil {
		t.Fatal("expected wait and clear commands")
	}
	if view := m.View(); !strings.Contains(view, "sync failed: connection refused") {
		t.Errorf("banner missing:\n%s", view)
	}

	t.Run("cleared by stale tick is ignored", func(t *testing.T) {
		m, _ := update(t, m, clearBannerMsg{seq: m.bannerSeq - 1})
		if m.banner == "" {
			t.Error("older clear removed the current banner")
		}
	})

	t.Run("cleared by its tick", func(t *testing.T) {
		m, _ := update(t, m, clearBannerMsg{seq: m.bannerSeq})
		if m.banner != "" {
			t.Errorf("banner = %q, want cleared", m.banner)
		}
	})

	t.Run("cleared by successful resync", func(t *testing.T) {
		m, _ := update(t, m, appsync.ResyncResultMsg{})
		if m.banner != "" {
			t.Errorf("banner = %q, want cleared", m.banner)
		}
	})
}

func TestUpdate_DeleteFailure(t *testing.T) {
	box := newFakeInbox(inbox.Snapshot{})
	m := newTestModel(t, box, Config{})

	m2, _ := update(t, m, deleteResultMsg{id: "a", err: feed.Errorf(feed.KindNetwork, "delete", "timeout")})
	if !strings.Contains(m2.banner, "delete failed") {
		t.Errorf("banner = %q, want delete failure", m2.banner)
	}

	m3, _ := update(t, m, deleteResultMsg{id: "a", err: inbox.ErrSessionChanged})
	if m3.banner != "" {
		t.Errorf("banner = %q, want none for a stale session", m3.banner)
	}
}

func TestUpdate_UnauthorizedExpiresSession(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{
			name: "from resync",
			msg: appsync.ResyncResultMsg{
				Error:     feed.Errorf(feed.KindUnauthorized, "fetch", "401"),
				AuthError: &appsync.AuthErrorMsg{Message: "expired"},
			},
		},
		{name: "from store hook", msg: authLostMsg{err: feed.Errorf(feed.KindUnauthorized, "channel", "401")}},
		{name: "from delete", msg: deleteResultMsg{id: "a", err: feed.Errorf(feed.KindUnauthorized, "delete", "401")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := newFakeInbox(inbox.Snapshot{})
			cleared := 0
			m := newTestModel(t, box, Config{OnExpired: func() error { cleared++; return nil }})

			m, cmd := update(t, m, tt.msg)
			if !m.expired {
				t.Fatal("model not expired")
			}
			if view := m.View(); !strings.Contains(view, "session expired") {
				t.Errorf("expired banner missing:\n%s", view)
			}

			runBatch(cmd)
			if box.stops() != 1 {
				t.Errorf("Stop calls = %d, want 1", box.stops())
			}
			if cleared != 1 {
				t.Errorf("OnExpired calls = %d, want 1", cleared)
			}

			// Commands are refused once the session is gone.
			m, _ = update(t, m, notiflist.MarkReadMsg{ID: "a"})
			if len(box.read) != 0 {
				t.Errorf("MarkAsRead reached the inbox after expiry")
			}

			// A second rejection does not tear down again.
			_, cmd = update(t, m, authLostMsg{})
			runBatch(cmd)
			if box.stops() != 1 {
				t.Errorf("Stop calls = %d after second rejection, want 1", box.stops())
			}
		})
	}
}

func TestUpdate_AlertFlashesAndRings(t *testing.T) {
	box := newFakeInbox(inbox.Snapshot{})
	rang := 0
	alerts := make(chan model.Notification, 1)
	m := newTestModel(t, box, Config{Alerts: alerts, Bell: func() { rang++ }})
	m, _ = update(t, m, snapshotMsg{snap: snapshot(true, note("a", false)), ok: true})

	m, cmd := update(t, m, alertMsg{n: note("a", false)})
	if !strings.Contains(m.View(), "✦") {
		t.Errorf("flash marker missing:\n%s", m.View())
	}

	// Run only the bell; the other commands block or tick.
	batch, ok := cmd().(tea.BatchMsg)
	if !ok || len(batch) != 3 {
		t.Fatalf("alert command = %#v, want a batch of three", batch)
	}
	batch[1]()
	if rang != 1 {
		t.Errorf("bell rang %d times, want 1", rang)
	}

	m, _ = update(t, m, unflashMsg{id: "a"})
	if strings.Contains(m.View(), "✦") {
		t.Error("flash marker still shown after unflash")
	}
}

func TestUpdate_HelpAndQuit(t *testing.T) {
	box := newFakeInbox(inbox.Snapshot{})
	m := newTestModel(t, box, Config{})

	m, _ = update(t, m, runes("?"))
	if !strings.Contains(m.View(), "Notification Center") {
		t.Errorf("help not shown:\n%s", m.View())
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc did not close help")
	}

	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if !box.unsubbed {
		t.Error("quit did not unsubscribe")
	}
}

func TestUpdate_ClosedStoreStopsListening(t *testing.T) {
	box := newFakeInbox(inbox.Snapshot{})
	m := newTestModel(t, box, Config{})
	if _, cmd := update(t, m, snapshotMsg{ok: false}); cmd != nil {
		t.Error("closed subscription should not be re-armed")
	}
}

// runBatch executes cmd, descending into batches, skipping commands that
// only wait on channels or timers.
func runBatch(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(100 * time.Millisecond):
		return
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			runBatch(c)
		}
	}
}
