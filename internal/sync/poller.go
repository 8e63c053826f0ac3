package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/inbox"
)

// SyncState represents the current state of the resync loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the state of the last resync.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// ResyncResultMsg is a tea.Msg sent when a resync completes.
type ResyncResultMsg struct {
	Error     error
	AuthError *AuthErrorMsg
	Manual    bool
}

// AuthErrorMsg is a tea.Msg sent when the backend rejects the session.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single resync.
const fetchTimeout = 30 * time.Second

// defaultInterval is used when the configured interval is not positive.
const defaultInterval = 120 * time.Second

// Seeder is the part of the inbox store the poller drives.
type Seeder interface {
	FetchNotifications(ctx context.Context) error
}

var _ Seeder = (*inbox.Store)(nil)

// Poller periodically reseeds the inbox so drift from dropped push events
// or failed deletes is corrected without user action.
type Poller struct {
	seeder    Seeder
	interval  time.Duration
	status    SyncStatus
	resultCh  chan ResyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller that reseeds s every interval.
func New(s Seeder, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		seeder:    s,
		interval:  interval,
		resultCh:  make(chan ResyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and waits for
// the first result. The first resync runs immediately.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate resync. A refresh already queued absorbs
// this one.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the state of the last resync.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.resync(false)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.resync(false)
		case <-p.triggerCh:
			p.resync(true)
		}
	}
}

// resync performs one reseed and reports the result.
func (p *Poller) resync(manual bool) {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	err := p.seeder.FetchNotifications(ctx)
	switch {
	case err == nil:
		p.setStatus(SyncIdle, nil)
		p.sendResult(ResyncResultMsg{Manual: manual})

	case errors.Is(err, inbox.ErrNoSession), errors.Is(err, inbox.ErrSessionChanged):
		// The session ended underneath us; nothing to report.
		p.setStatus(SyncIdle, nil)

	case feed.IsUnauthorized(err):
		p.setStatus(SyncError, err)
		p.sendResult(ResyncResultMsg{
			Error:     err,
			Manual:    manual,
			AuthError: &AuthErrorMsg{Message: "session expired. Log in again with 'bizdesk login'."},
		})

	default:
		p.setStatus(SyncError, err)
		p.sendResult(ResyncResultMsg{Error: err, Manual: manual})
	}
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a ResyncResultMsg without blocking.
func (p *Poller) sendResult(msg ResyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.stopCh:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next resync
// result. Call it after handling a ResyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
