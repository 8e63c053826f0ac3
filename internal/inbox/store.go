// Package inbox holds the reconciled, in-memory notification feed of the
// logged-in user. Both the snapshot fetcher and the push channel feed into
// a single Store, which serializes every mutation through one goroutine.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/model"
)

var (
	// ErrNoSession is returned by commands issued while no session is
	// active.
	ErrNoSession = errors.New("inbox: no active session")

	// ErrSessionChanged is returned when a response arrives after the
	// session it was issued for has ended. The response is discarded.
	ErrSessionChanged = errors.New("inbox: session ended before the response arrived")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("inbox: store closed")
)

// reseedTimeout bounds the automatic reseed after a reconnect.
const reseedTimeout = 30 * time.Second

// Snapshot is an immutable view of the store. Its Notifications slice is
// shared and must not be modified.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
	Connected     bool
	// Active is false when no session is running.
	Active bool
	// Session increases every time Start is called.
	Session uint64
}

// Options configures a Store.
type Options struct {
	// Fetcher builds the snapshot fetcher for a session. Required.
	Fetcher func(model.Session) feed.Fetcher

	// Channel builds the push channel for a session. Nil disables push.
	Channel func(model.Session) feed.Channel

	// PageSize is the number of notifications fetched per seed.
	PageSize int

	// OnNew is called for every unread notification inserted from the
	// push channel. It runs on its own goroutine.
	OnNew func(model.Notification)

	// OnUnauthorized is called when any fetch, delete or channel reports
	// an Unauthorized failure. It runs on its own goroutine.
	OnUnauthorized func(error)
}

// Store is the single writer of the feed, the unread counter and the
// connection flag. All methods are safe for concurrent use.
type Store struct {
	opts Options

	ops  chan func(*actor)
	quit chan struct{}
	done chan struct{}

	snap atomic.Pointer[Snapshot]

	closeOnce gosync.Once
}

// actor is the state owned by the mutation goroutine. Only run and the
// closures it executes touch it.
type actor struct {
	gen     uint64
	active  bool
	session model.Session
	fetcher feed.Fetcher
	channel feed.Channel

	st           state
	connected    bool
	disconnected bool

	subs map[chan Snapshot]struct{}
}

// New creates a store and starts its mutation goroutine. Call Close to
// release it.
func New(opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = feed.DefaultPageSize
	}
	s := &Store{
		opts: opts,
		ops:  make(chan func(*actor), 64),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.snap.Store(&Snapshot{})
	go s.run()
	return s
}

func (s *Store) run() {
	defer close(s.done)

	a := &actor{subs: make(map[chan Snapshot]struct{})}
	for {
		select {
		case op := <-s.ops:
			op(a)
		case <-s.quit:
			for ch := range a.subs {
				close(ch)
			}
			return
		}
	}
}

// call runs op on the mutation goroutine and waits for it to finish. It
// reports false when the store is closed.
func (s *Store) call(op func(*actor)) bool {
	finished := make(chan struct{})
	wrapped := func(a *actor) {
		defer close(finished)
		op(a)
	}
	select {
	case s.ops <- wrapped:
	case <-s.quit:
		return false
	}
	select {
	case <-finished:
		return true
	case <-s.done:
		return false
	}
}

// Start begins a session: the previous one (if any) is stopped, the feed
// is emptied and the push channel connects with sess.Token. A session
// without a token is refused with ErrNoSession and nothing is started.
//
// Start does not seed the feed; call FetchNotifications for that.
func (s *Store) Start(sess model.Session) error {
	if sess.Token == "" {
		return ErrNoSession
	}
	if s.opts.Fetcher == nil {
		return errors.New("inbox: no fetcher configured")
	}

	var old feed.Channel
	ok := s.call(func(a *actor) {
		old = s.teardown(a)

		a.gen++
		a.active = true
		a.session = sess
		a.fetcher = s.opts.Fetcher(sess)
		a.st = state{}
		a.connected = false
		a.disconnected = false

		if s.opts.Channel != nil {
			a.channel = s.opts.Channel(sess)
			a.channel.Connect(sess.Token)
			go s.forward(a.gen, a.channel)
		}
		s.publish(a)
	})
	if old != nil {
		old.Close()
	}
	if !ok {
		return ErrClosed
	}
	return nil
}

// Stop ends the current session. The channel is closed, the feed is
// discarded and late responses for the session are ignored.
func (s *Store) Stop() {
	var old feed.Channel
	s.call(func(a *actor) {
		old = s.teardown(a)
		s.publish(a)
	})
	if old != nil {
		old.Close()
	}
}

// teardown detaches the current session and returns its channel, which
// the caller closes off the mutation goroutine.
func (s *Store) teardown(a *actor) feed.Channel {
	ch := a.channel
	if a.active {
		a.gen++
	}
	a.active = false
	a.session = model.Session{}
	a.fetcher = nil
	a.channel = nil
	a.st = state{}
	a.connected = false
	a.disconnected = false
	return ch
}

// Close stops the session and the mutation goroutine. Each subscriber
// receives a final inactive snapshot, then its channel is closed. Safe to
// call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.Stop()
		close(s.quit)
		<-s.done
	})
	return nil
}

// forward pumps channel events into the mutation goroutine, tagged with
// the session they belong to.
func (s *Store) forward(gen uint64, ch feed.Channel) {
	for ev := range ch.Events() {
		ok := s.call(func(a *actor) {
			if a.gen != gen || !a.active {
				return
			}
			s.apply(a, ev)
		})
		if !ok {
			return
		}
	}
}

// apply reconciles one push event.
func (s *Store) apply(a *actor, ev feed.Event) {
	switch e := ev.(type) {
	case feed.Connected:
		a.connected = true
		if a.disconnected {
			a.disconnected = false
			go s.reseed(a.gen)
		}

	case feed.Disconnected:
		a.connected = false
		a.disconnected = true
		if feed.IsUnauthorized(e.Err) {
			s.unauthorized(e.Err)
		}

	case feed.NotificationCreated:
		next, inserted := a.st.insert(e.Notification)
		if !inserted {
			return
		}
		a.st = next
		if !e.Notification.IsRead && s.opts.OnNew != nil {
			go s.opts.OnNew(e.Notification)
		}

	case feed.NotificationMarkedRead:
		next, changed := a.st.markRead(e.ID)
		if !changed {
			return
		}
		a.st = next

	case feed.AllMarkedRead:
		a.st = a.st.markAllRead()

	default:
		log.Printf("inbox: ignoring event %s", feed.EventName(ev))
		return
	}
	s.publish(a)
}

// reseed refreshes the feed after the channel reconnects, since events
// may have been missed while it was down.
func (s *Store) reseed(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), reseedTimeout)
	defer cancel()

	if err := s.fetch(ctx, gen); err != nil && !errors.Is(err, ErrSessionChanged) {
		log.Printf("inbox: reseed after reconnect: %v", err)
	}
}

// FetchNotifications pulls the first page and the unread count
// concurrently and, when both succeed, replaces the feed wholesale.
func (s *Store) FetchNotifications(ctx context.Context) error {
	return s.fetch(ctx, 0)
}

// fetch seeds the session identified by gen, or the current session when
// gen is zero.
func (s *Store) fetch(ctx context.Context, gen uint64) error {
	requested := gen
	var fetcher feed.Fetcher
	active := false
	if !s.call(func(a *actor) {
		if requested == 0 {
			gen = a.gen
		}
		if a.active && a.gen == gen {
			active = true
			fetcher = a.fetcher
		}
	}) {
		return ErrClosed
	}
	if !active {
		if requested != 0 {
			return ErrSessionChanged
		}
		return ErrNoSession
	}

	var (
		page  *model.Page
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := fetcher.FetchFeed(gctx, 1, s.opts.PageSize)
		page = p
		return err
	})
	g.Go(func() error {
		n, err := fetcher.FetchUnreadCount(gctx)
		count = n
		return err
	})
	if err := g.Wait(); err != nil {
		if feed.IsUnauthorized(err) {
			s.unauthorized(err)
		}
		return fmt.Errorf("fetching notifications: %w", err)
	}

	var items []model.Notification
	if page != nil {
		items = page.Notifications
	}

	applied := false
	if !s.call(func(a *actor) {
		if !a.active || a.gen != gen {
			return
		}
		a.st = seed(items, count)
		applied = true
		s.publish(a)
	}) {
		return ErrClosed
	}
	if !applied {
		return ErrSessionChanged
	}
	return nil
}

// MarkAsRead marks a notification read locally and asks the server to do
// the same. The local change stands whether or not the server confirms.
func (s *Store) MarkAsRead(id string) {
	s.call(func(a *actor) {
		if !a.active {
			return
		}
		if next, changed := a.st.markRead(id); changed {
			a.st = next
			s.publish(a)
		}
		if a.channel != nil {
			a.channel.SendMarkRead(id)
		}
	})
}

// MarkAllAsRead marks every notification read locally and asks the server
// to do the same.
func (s *Store) MarkAllAsRead() {
	s.call(func(a *actor) {
		if !a.active {
			return
		}
		a.st = a.st.markAllRead()
		s.publish(a)
		if a.channel != nil {
			a.channel.SendMarkAllRead()
		}
	})
}

// DeleteNotification removes a notification locally, then on the server.
// A failed server call does not restore the local entry; the next seed
// does if the server still has it. A NotFound reply counts as success.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	var fetcher feed.Fetcher
	active := false
	if !s.call(func(a *actor) {
		if !a.active {
			return
		}
		active = true
		fetcher = a.fetcher
		if next, removed := a.st.remove(id); removed {
			a.st = next
			s.publish(a)
		}
	}) {
		return ErrClosed
	}
	if !active {
		return ErrNoSession
	}

	err := fetcher.DeleteNotification(ctx, id)
	switch {
	case err == nil, feed.IsNotFound(err):
		return nil
	case feed.IsUnauthorized(err):
		s.unauthorized(err)
	}
	return fmt.Errorf("deleting notification %s: %w", id, err)
}

func (s *Store) unauthorized(err error) {
	log.Printf("inbox: session rejected: %v", err)
	if s.opts.OnUnauthorized != nil {
		go s.opts.OnUnauthorized(err)
	}
}

// Snapshot returns the latest published view.
func (s *Store) Snapshot() Snapshot {
	return *s.snap.Load()
}

// Notifications returns a copy of the feed, newest first.
func (s *Store) Notifications() []model.Notification {
	return slices.Clone(s.snap.Load().Notifications)
}

// UnreadCount returns the unread counter.
func (s *Store) UnreadCount() int {
	return s.snap.Load().UnreadCount
}

// IsConnected reports whether the push channel is connected.
func (s *Store) IsConnected() bool {
	return s.snap.Load().Connected
}

// Subscribe returns a channel that receives the latest snapshot after
// every change, starting with the current one. Slow readers only miss
// intermediate snapshots. The channel is closed by Unsubscribe or Close.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	if !s.call(func(a *actor) {
		a.subs[ch] = struct{}{}
		ch <- *s.snap.Load()
	}) {
		close(ch)
	}
	return ch
}

// Unsubscribe stops deliveries to ch and closes it.
func (s *Store) Unsubscribe(ch <-chan Snapshot) {
	s.call(func(a *actor) {
		for sub := range a.subs {
			if sub == ch {
				delete(a.subs, sub)
				close(sub)
				return
			}
		}
	})
}

// publish stores a new snapshot and offers it to every subscriber,
// replacing any snapshot they have not read yet.
func (s *Store) publish(a *actor) {
	snap := &Snapshot{
		Notifications: a.st.feed,
		UnreadCount:   a.st.unread,
		Connected:     a.connected,
		Active:        a.active,
		Session:       a.gen,
	}
	s.snap.Store(snap)

	for ch := range a.subs {
		select {
		case ch <- *snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- *snap
		}
	}
}
