// Package session persists the login state the notification client starts
// from.
package session

import (
	"errors"
	"fmt"

	"github.com/nhle/bizdesk/internal/credential"
	"github.com/nhle/bizdesk/internal/model"
)

// Keys under which the session is stored.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyUserType = "userType"
)

// ErrNoSession means no token is stored; the user has to log in first.
var ErrNoSession = errors.New("no stored session")

// Vault is the subset of credential.Store used here.
type Vault interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

var _ Vault = (*credential.Store)(nil)

// Load reads the stored session. A missing token yields ErrNoSession; a
// missing user or user type is tolerated.
func Load(v Vault) (model.Session, error) {
	token, err := v.Get(KeyToken)
	if errors.Is(err, credential.ErrNotFound) || (err == nil && token == "") {
		return model.Session{}, ErrNoSession
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("loading session: %w", err)
	}

	sess := model.Session{Token: token}
	if sess.User, err = optional(v, KeyUser); err != nil {
		return model.Session{}, err
	}
	userType, err := optional(v, KeyUserType)
	if err != nil {
		return model.Session{}, err
	}
	sess.UserType = model.UserType(userType)

	return sess, nil
}

func optional(v Vault, key string) (string, error) {
	value, err := v.Get(key)
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	return value, nil
}

// Save stores sess, replacing any previous session.
func Save(v Vault, sess model.Session) error {
	if sess.Token == "" {
		return errors.New("saving session: token is required")
	}
	if sess.UserType != "" && !sess.UserType.Valid() {
		return fmt.Errorf("saving session: unknown user type %q", sess.UserType)
	}

	for _, kv := range [][2]string{
		{KeyToken, sess.Token},
		{KeyUser, sess.User},
		{KeyUserType, string(sess.UserType)},
	} {
		if err := v.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}
	return nil
}

// Clear removes the stored session (logout).
func Clear(v Vault) error {
	for _, key := range []string{KeyToken, KeyUser, KeyUserType} {
		if err := v.Delete(key); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
	}
	return nil
}
