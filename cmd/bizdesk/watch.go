package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/inbox"
	"github.com/nhle/bizdesk/internal/model"
	appsync "github.com/nhle/bizdesk/internal/sync"
)

// runWatch prints new notifications and unread count changes until
// interrupted or the backend rejects the session.
func runWatch(cfg *model.AppConfig) error {
	vault, sess, err := loadSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authLost := make(chan error, 1)
	box, err := newInbox(cfg, hooks{
		onNew: func(n model.Notification) {
			fmt.Printf("new  [%s] %s: %s\n", n.Type, n.Title, n.Message)
		},
		onUnauthorized: func(err error) {
			select {
			case authLost <- err:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer box.Close()

	sub := box.Subscribe()
	if err := box.Start(sess); err != nil {
		return err
	}
	log.Printf("watching notifications for %s", displayUser(sess))

	poller := appsync.New(box, cfg.Sync.Interval())
	go logResyncs(poller.Start(), poller)
	defer poller.Stop()

	last := inbox.Snapshot{UnreadCount: -1}
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-authLost:
			if clearErr := clearSession(vault)(); clearErr != nil {
				log.Printf("clearing session: %v", clearErr)
			}
			return fmt.Errorf("session expired. Log in again with 'bizdesk login': %w", err)

		case snap, ok := <-sub:
			if !ok {
				return nil
			}
			if snap.Connected != last.Connected && snap.Active {
				log.Printf("push channel %s", connectionLabel(snap.Connected))
			}
			if snap.UnreadCount != last.UnreadCount && snap.Active {
				fmt.Printf("unread %d\n", snap.UnreadCount)
			}
			last = snap
		}
	}
}

// logResyncs reports periodic resync failures until the poller stops.
func logResyncs(wait tea.Cmd, p *appsync.Poller) {
	for wait != nil {
		res, ok := wait().(appsync.ResyncResultMsg)
		if !ok {
			return
		}
		if res.Error != nil && !feed.IsUnauthorized(res.Error) {
			log.Printf("resync failed: %v", res.Error)
		}
		wait = p.WaitForNextResult()
	}
}

func connectionLabel(connected bool) string {
	if connected {
		return model.Connected.String()
	}
	return model.Disconnected.String()
}

func displayUser(sess model.Session) string {
	if sess.User == "" {
		return "the stored session"
	}
	if sess.UserType == "" {
		return sess.User
	}
	return fmt.Sprintf("%s (%s)", sess.User, sess.UserType)
}
