// Package store persists notifications for the development backend.
package store

import (
	"context"
	"errors"

	"github.com/nhle/bizdesk/internal/model"
)

// ErrNotFound is returned when a notification does not exist or belongs
// to another user.
var ErrNotFound = errors.New("notification not found")

// ListFilter controls pagination for notification queries.
type ListFilter struct {
	Limit  int
	Offset int
}

// Store defines the persistence interface for per-user notifications.
type Store interface {
	// CreateNotification stores n for userID. A missing id or timestamp is
	// filled in; the stored notification is returned.
	CreateNotification(ctx context.Context, userID string, n model.Notification) (model.Notification, error)

	// ListNotifications returns one page of the user's notifications,
	// newest first, and the user's total count.
	ListNotifications(ctx context.Context, userID string, filter ListFilter) ([]model.Notification, int, error)

	CountUnread(ctx context.Context, userID string) (int, error)

	// MarkNotificationRead reports whether an unread notification changed.
	MarkNotificationRead(ctx context.Context, userID, id string) (bool, error)

	// MarkAllRead returns the number of notifications that changed.
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	DeleteNotification(ctx context.Context, userID, id string) error

	Close() error
}
