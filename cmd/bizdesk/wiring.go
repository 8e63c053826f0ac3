package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/nhle/bizdesk/internal/credential"
	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/feed/push"
	"github.com/nhle/bizdesk/internal/feed/rest"
	"github.com/nhle/bizdesk/internal/inbox"
	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/session"
)

const (
	backoffMultiplier = 2
	backoffJitter     = 0.2
)

// hooks are the store callbacks a front end cares about.
type hooks struct {
	onNew          func(model.Notification)
	onUnauthorized func(error)
}

// newInbox builds a Store whose sessions talk to the backend configured
// in cfg.
func newInbox(cfg *model.AppConfig, h hooks) (*inbox.Store, error) {
	pushURL, err := cfg.API.PushURL()
	if err != nil {
		return nil, err
	}
	initial, maxDelay := cfg.Channel.Backoff()
	backoff := push.Backoff{
		Initial:    initial,
		Max:        maxDelay,
		Multiplier: backoffMultiplier,
		Jitter:     backoffJitter,
	}

	return inbox.New(inbox.Options{
		Fetcher: func(sess model.Session) feed.Fetcher {
			return rest.NewAdapter(cfg.API.BaseURL, sess.Token, cfg.API.Timeout())
		},
		Channel: func(model.Session) feed.Channel {
			return push.New(push.Options{
				URL:          pushURL,
				Backoff:      backoff,
				PingInterval: cfg.Channel.PingInterval(),
			})
		},
		PageSize:       cfg.Feed.PageSize,
		OnNew:          h.onNew,
		OnUnauthorized: h.onUnauthorized,
	}), nil
}

// loadSession opens the keyring and reads the stored session.
func loadSession() (*credential.Store, model.Session, error) {
	vault, err := credential.Open()
	if err != nil {
		return nil, model.Session{}, err
	}
	sess, err := session.Load(vault)
	if errors.Is(err, session.ErrNoSession) {
		return nil, model.Session{}, fmt.Errorf("not logged in. Run 'bizdesk login' first")
	}
	if err != nil {
		return nil, model.Session{}, err
	}
	return vault, sess, nil
}

// clearSession removes the stored session after the backend rejected it.
func clearSession(vault *credential.Store) func() error {
	return func() error {
		if err := session.Clear(vault); err != nil {
			return err
		}
		log.Printf("stored session cleared")
		return nil
	}
}
