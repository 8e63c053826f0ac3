// Package feed defines the contracts shared by the two sources of a user's
// notification feed: the request/response snapshot fetcher and the
// server-pushed event channel.
package feed

import (
	"context"

	"github.com/nhle/bizdesk/internal/model"
)

// DefaultPageSize is the number of notifications fetched when seeding.
const DefaultPageSize = 50

// Fetcher pulls authoritative state on demand. Implementations must be
// safe for concurrent use; FetchFeed and FetchUnreadCount are independent
// round trips with no transactional guarantee between them.
type Fetcher interface {
	// FetchFeed returns one page of the feed ordered newest first.
	FetchFeed(ctx context.Context, page, limit int) (*model.Page, error)

	// FetchUnreadCount returns the server's authoritative unread count.
	FetchUnreadCount(ctx context.Context) (int, error)

	// DeleteNotification removes a notification on the server. It never
	// assumes success.
	DeleteNotification(ctx context.Context, id string) error
}

// Channel is a best-effort, authenticated push connection. Connection
// failures are reported as Disconnected events and retried by the channel
// itself; they are never returned to callers.
type Channel interface {
	// Connect starts connecting with the given bearer token and returns
	// immediately.
	Connect(token string)

	// Events returns the typed event stream. It is closed after Close.
	Events() <-chan Event

	// SendMarkRead asks the server to mark one notification read.
	// Fire-and-forget.
	SendMarkRead(id string)

	// SendMarkAllRead asks the server to mark every notification read.
	// Fire-and-forget.
	SendMarkAllRead()

	// State returns the current connection state.
	State() model.ConnectionState

	// Close tears the connection down. It is safe to call more than once.
	Close() error
}
