package inbox

import (
	"github.com/nhle/bizdesk/internal/model"
)

// state is the reconciled feed and unread counter of one session.
//
// A state value is never modified in place: every rule returns a new value
// backed by a fresh slice, so published snapshots can share the slice.
type state struct {
	feed   []model.Notification
	unread int
}

// seed replaces the feed wholesale with a fetched page and takes the
// server's unread count as authoritative. Duplicate ids in the page keep
// their first occurrence.
func seed(page []model.Notification, unread int) state {
	out := make([]model.Notification, 0, len(page))
	seen := make(map[string]bool, len(page))
	for _, n := range page {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return state{feed: out, unread: max(unread, 0)}
}

// insert prepends n unless its id is already in the feed. The counter grows
// by one only when n was inserted unread.
func (s state) insert(n model.Notification) (state, bool) {
	if s.index(n.ID) >= 0 {
		return s, false
	}

	out := make([]model.Notification, 0, len(s.feed)+1)
	out = append(out, n)
	out = append(out, s.feed...)

	next := state{feed: out, unread: s.unread}
	if !n.IsRead {
		next.unread++
	}
	return next, true
}

// markRead flips an unread entry to read and decrements the counter,
// floored at zero. Missing or already read entries are a no-op.
func (s state) markRead(id string) (state, bool) {
	i := s.index(id)
	if i < 0 || s.feed[i].IsRead {
		return s, false
	}

	out := make([]model.Notification, len(s.feed))
	copy(out, s.feed)
	out[i].IsRead = true

	return state{feed: out, unread: max(s.unread-1, 0)}, true
}

// markAllRead marks every entry read and zeroes the counter.
func (s state) markAllRead() state {
	out := make([]model.Notification, len(s.feed))
	copy(out, s.feed)
	for i := range out {
		out[i].IsRead = true
	}
	return state{feed: out, unread: 0}
}

// remove drops the entry with id, decrementing the counter when it was
// unread.
func (s state) remove(id string) (state, bool) {
	i := s.index(id)
	if i < 0 {
		return s, false
	}

	out := make([]model.Notification, 0, len(s.feed)-1)
	out = append(out, s.feed[:i]...)
	out = append(out, s.feed[i+1:]...)

	next := state{feed: out, unread: s.unread}
	if !s.feed[i].IsRead {
		next.unread = max(s.unread-1, 0)
	}
	return next, true
}

func (s state) index(id string) int {
	for i, n := range s.feed {
		if n.ID == id {
			return i
		}
	}
	return -1
}
