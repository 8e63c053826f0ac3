// Package rest implements the snapshot fetcher over the backend's REST API.
package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/model"
)

// Adapter implements feed.Fetcher on top of Client.
type Adapter struct {
	client *Client
}

var _ feed.Fetcher = (*Adapter)(nil)

// NewAdapter creates a fetcher for the API at baseURL authenticated with
// token.
func NewAdapter(baseURL, token string, timeout time.Duration) *Adapter {
	return &Adapter{client: NewClient(baseURL, token, timeout)}
}

// FetchFeed returns one page of the feed, newest first, without duplicate
// ids.
func (a *Adapter) FetchFeed(ctx context.Context, page, limit int) (*model.Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = feed.DefaultPageSize
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	var resp ListResponse
	if err := a.client.Get(ctx, "fetch feed", "/notifications?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	items, err := normalize(resp.Notifications)
	if err != nil {
		return nil, &feed.Error{Kind: feed.KindMalformed, Op: "fetch feed", Err: err}
	}

	return &model.Page{
		Notifications: items,
		Pagination:    resp.Pagination,
	}, nil
}

// FetchUnreadCount returns the server's unread count.
func (a *Adapter) FetchUnreadCount(ctx context.Context) (int, error) {
	var resp UnreadCountResponse
	if err := a.client.Get(ctx, "fetch unread count", "/notifications/unread-count", &resp); err != nil {
		return 0, err
	}

	if resp.UnreadCount == nil {
		return 0, feed.Errorf(feed.KindMalformed, "fetch unread count", "response has no unreadCount")
	}
	if *resp.UnreadCount < 0 {
		return 0, feed.Errorf(feed.KindMalformed, "fetch unread count", "negative unreadCount %d", *resp.UnreadCount)
	}

	return *resp.UnreadCount, nil
}

// DeleteNotification deletes a notification on the server.
func (a *Adapter) DeleteNotification(ctx context.Context, id string) error {
	if id == "" {
		return feed.Errorf(feed.KindNotFound, "delete notification", "empty notification id")
	}
	return a.client.Delete(ctx, "delete notification", "/notifications/"+url.PathEscape(id))
}

// normalize validates a fetched page and returns a copy ordered newest
// first with duplicate ids removed (first occurrence wins).
func normalize(in []model.Notification) ([]model.Notification, error) {
	out := make([]model.Notification, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, n := range in {
		if n.ID == "" {
			return nil, fmt.Errorf("notification at index %d has no id", i)
		}
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	model.SortNewestFirst(out)
	return out, nil
}
