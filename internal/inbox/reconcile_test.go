package inbox

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/nhle/bizdesk/internal/model"
)

var t0 = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func note(id string, read bool, age int) model.Notification {
	return model.Notification{
		ID:        id,
		Title:     "title " + id,
		IsRead:    read,
		Priority:  model.PriorityNormal,
		Type:      model.TypeGeneral,
		CreatedAt: t0.Add(-time.Duration(age) * time.Minute),
	}
}

func ids(ns []model.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func assertIDs(t *testing.T, got []model.Notification, want ...string) {
	t.Helper()
	g := ids(got)
	if fmt.Sprint(g) != fmt.Sprint(want) {
		t.Errorf("feed = %v, want %v", g, want)
	}
}

func assertNoDuplicates(t *testing.T, ns []model.Notification) {
	t.Helper()
	seen := make(map[string]bool, len(ns))
	for _, n := range ns {
		if seen[n.ID] {
			t.Fatalf("duplicate id %s in %v", n.ID, ids(ns))
		}
		seen[n.ID] = true
	}
}

func TestSeed(t *testing.T) {
	t.Parallel()

	st := seed([]model.Notification{note("n1", false, 1), note("n1", true, 1), note("n2", true, 2)}, 3)
	assertIDs(t, st.feed, "n1", "n2")
	if st.feed[0].IsRead {
		t.Error("seed kept the second occurrence of n1")
	}
	if st.unread != 3 {
		t.Errorf("unread = %d, want 3 (server value, not local count)", st.unread)
	}

	if got := seed(nil, -4).unread; got != 0 {
		t.Errorf("unread = %d, want floor 0", got)
	}
}

func TestInsert(t *testing.T) {
	t.Parallel()

	st := seed([]model.Notification{note("n1", false, 1)}, 1)

	st, inserted := st.insert(note("n2", false, 0))
	if !inserted {
		t.Fatal("n2 not inserted")
	}
	assertIDs(t, st.feed, "n2", "n1")
	if st.unread != 2 {
		t.Errorf("unread = %d, want 2", st.unread)
	}

	st, inserted = st.insert(note("n2", false, 0))
	if inserted {
		t.Error("duplicate n2 inserted")
	}
	if st.unread != 2 {
		t.Errorf("unread after duplicate = %d, want 2", st.unread)
	}

	st, _ = st.insert(note("n3", true, 0))
	if st.unread != 2 {
		t.Errorf("unread after read insert = %d, want 2", st.unread)
	}
}

func TestInsertDoesNotAliasPrevious(t *testing.T) {
	t.Parallel()

	before := seed([]model.Notification{note("n1", false, 1)}, 1)
	after := before.markAllRead()
	if before.feed[0].IsRead {
		t.Error("markAllRead modified the previous state")
	}
	if !after.feed[0].IsRead {
		t.Error("markAllRead did not mark n1")
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	st := seed([]model.Notification{note("n1", false, 1), note("n2", true, 2)}, 1)

	st, changed := st.markRead("n1")
	if !changed || !st.feed[0].IsRead || st.unread != 0 {
		t.Fatalf("markRead(n1) = changed %v, read %v, unread %d", changed, st.feed[0].IsRead, st.unread)
	}

	if _, changed := st.markRead("n1"); changed {
		t.Error("second markRead(n1) changed state")
	}
	if _, changed := st.markRead("n2"); changed {
		t.Error("markRead on a read entry changed state")
	}
	if _, changed := st.markRead("missing"); changed {
		t.Error("markRead on a missing entry changed state")
	}
}

func TestMarkRead_FloorsAtZero(t *testing.T) {
	t.Parallel()

	// Server says 0 unread while the page still shows two unread entries.
	st := seed([]model.Notification{note("n1", false, 1), note("n2", false, 2)}, 0)
	st, _ = st.markRead("n1")
	st, _ = st.markRead("n2")
	if st.unread != 0 {
		t.Errorf("unread = %d, want 0", st.unread)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	st := seed([]model.Notification{note("n1", false, 1), note("n2", false, 2), note("n3", true, 3)}, 2)

	st, removed := st.remove("n2")
	if !removed {
		t.Fatal("n2 not removed")
	}
	assertIDs(t, st.feed, "n1", "n3")
	if st.unread != 1 {
		t.Errorf("unread = %d, want 1", st.unread)
	}

	st, _ = st.remove("n3")
	if st.unread != 1 {
		t.Errorf("removing a read entry changed unread to %d", st.unread)
	}

	if _, removed := st.remove("missing"); removed {
		t.Error("removed a missing id")
	}
}

// TestRules_RandomSequences drives random operation sequences and checks
// the counter floor and id uniqueness after every step.
func TestRules_RandomSequences(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	pool := []string{"a", "b", "c", "d", "e"}
	pick := func() string { return pool[r.IntN(len(pool))] }

	for run := 0; run < 200; run++ {
		st := state{}
		for step := 0; step < 40; step++ {
			switch r.IntN(5) {
			case 0:
				page := []model.Notification{note(pick(), r.IntN(2) == 0, 1), note(pick(), false, 2)}
				st = seed(page, r.IntN(5)-1)
			case 1:
				st, _ = st.insert(note(pick(), r.IntN(2) == 0, 0))
			case 2:
				st, _ = st.markRead(pick())
			case 3:
				st = st.markAllRead()
			case 4:
				st, _ = st.remove(pick())
			}
			if st.unread < 0 {
				t.Fatalf("run %d step %d: unread %d < 0", run, step, st.unread)
			}
			assertNoDuplicates(t, st.feed)
		}
	}
}
