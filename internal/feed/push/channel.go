// Package push implements the notification event channel over a
// websocket connection that reconnects on its own.
package push

import (
	"context"
	"errors"
	"log"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/model"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// maxFrameSize bounds an inbound frame.
	maxFrameSize = 1 << 20

	// defaultPingInterval is used when Options.PingInterval is zero.
	defaultPingInterval = 25 * time.Second

	eventBuffer = 64
	sendBuffer  = 16
)

// Options configures a Channel.
type Options struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Backoff is the reconnect policy. Zero fields fall back to
	// DefaultBackoff.
	Backoff Backoff

	// PingInterval is the keepalive period. The connection is considered
	// dead when nothing arrives for twice this long.
	PingInterval time.Duration

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Channel is a feed.Channel over gorilla/websocket. It moves through
// disconnected -> connecting -> connected -> disconnected and retries with
// Options.Backoff until closed or the server rejects the token.
type Channel struct {
	opts   Options
	events chan feed.Event
	send   chan []byte

	mu      gosync.Mutex
	state   model.ConnectionState
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce gosync.Once
}

var _ feed.Channel = (*Channel)(nil)

// New creates a channel. Nothing happens until Connect.
func New(opts Options) *Channel {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Channel{
		opts:   opts,
		events: make(chan feed.Event, eventBuffer),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Connect starts the connection loop in the background. Calls after the
// first one, or after Close, are ignored.
func (c *Channel) Connect(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.closed {
		return
	}
	c.started = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx, token)
}

// Events returns the typed event stream, closed once the channel is closed.
func (c *Channel) Events() <-chan feed.Event {
	return c.events
}

// State returns the current connection state.
func (c *Channel) State() model.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendMarkRead queues a mark_notification_read frame. Dropped when not
// connected or when the send queue is full.
func (c *Channel) SendMarkRead(id string) {
	frame, err := EncodeMarkRead(id)
	if err != nil {
		log.Printf("push: encoding mark read for %s: %v", id, err)
		return
	}
	c.enqueue(EventMarkRead, frame)
}

// SendMarkAllRead queues a mark_all_read frame.
func (c *Channel) SendMarkAllRead() {
	frame, err := EncodeMarkAllRead()
	if err != nil {
		log.Printf("push: encoding mark all read: %v", err)
		return
	}
	c.enqueue(EventMarkAllRead, frame)
}

func (c *Channel) enqueue(event string, frame []byte) {
	if c.State() != model.Connected {
		log.Printf("push: dropping %s, channel not connected", event)
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Printf("push: dropping %s, send queue full", event)
	}
}

// Close cancels the connection loop and waits until the socket is
// released. It is safe to call more than once and before Connect.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		started := c.started
		cancel := c.cancel
		c.mu.Unlock()

		if !started {
			close(c.events)
			close(c.done)
			return
		}
		cancel()
	})
	<-c.done
	return nil
}

// run is the reconnect state machine. It owns c.events and closes it on
// exit.
func (c *Channel) run(ctx context.Context, token string) {
	defer close(c.done)
	defer close(c.events)
	defer c.setState(model.Disconnected)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	// attempt counts retries since the last stable connection. down is
	// set once Disconnected has been emitted for the current outage.
	attempt := 0
	down := false
	for {
		c.setState(model.Connecting)

		conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setState(model.Disconnected)

			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				authErr := feed.Errorf(feed.KindUnauthorized, "connect", "handshake rejected with %d", resp.StatusCode)
				log.Printf("push: %v, giving up", authErr)
				c.emit(ctx, nil, feed.Disconnected{Err: authErr})
				return
			}

			if !down {
				down = true
				c.emit(ctx, nil, feed.Disconnected{Err: feed.Errorf(feed.KindNetwork, "connect", "%w", err)})
			}

			delay := c.opts.Backoff.Delay(attempt)
			log.Printf("push: connect attempt %d failed: %v (retry in %s)", attempt+1, err, delay)
			attempt++
			if !wait(ctx, delay) {
				return
			}
			continue
		}

		down = false
		c.setState(model.Connected)
		c.emit(ctx, nil, feed.Connected{})
		log.Printf("push: connected to %s", c.opts.URL)

		connectedAt := time.Now()
		serveErr := c.serve(ctx, conn)

		c.setState(model.Disconnected)
		if ctx.Err() != nil {
			c.emit(ctx, nil, feed.Disconnected{})
			return
		}

		down = true
		c.emit(ctx, nil, feed.Disconnected{
			Err: &feed.Error{Kind: feed.KindNetwork, Op: "receive", Err: serveErr},
		})

		// A connection that stayed up past the backoff ceiling restarts the
		// schedule.
		if time.Since(connectedAt) >= c.opts.Backoff.ceiling() {
			attempt = 0
		}
		delay := c.opts.Backoff.Delay(attempt)
		log.Printf("push: connection lost: %v (retry in %s)", serveErr, delay)
		attempt++
		if !wait(ctx, delay) {
			return
		}
	}
}

// serve pumps one live connection until it fails or ctx is cancelled.
// It returns only after the reader goroutine has exited.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) error {
	pongWait := 2 * c.opts.PingInterval

	connDone := make(chan struct{})
	readErr := make(chan error, 1)
	var wg gosync.WaitGroup
	wg.Add(1)

	defer func() {
		close(connDone)
		conn.Close()
		wg.Wait()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer wg.Done()
		readErr <- c.readLoop(ctx, conn, connDone, pongWait)
	}()

	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return nil

		case err := <-readErr:
			return err

		case frame := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

// readLoop decodes inbound frames. Malformed frames are dropped and
// logged; the connection stays up.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, connDone <-chan struct{}, pongWait time.Duration) error {
	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed the connection")
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := Decode(frame)
		if err != nil {
			log.Printf("push: dropping frame: %v", err)
			continue
		}
		if !c.emit(ctx, connDone, ev) {
			return nil
		}
	}
}

// emit delivers ev unless ctx or connDone ends first.
func (c *Channel) emit(ctx context.Context, connDone <-chan struct{}, ev feed.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-connDone:
		return false
	}
}

func (c *Channel) setState(s model.ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// wait sleeps for d or until ctx is done. It reports whether the full
// delay elapsed.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
