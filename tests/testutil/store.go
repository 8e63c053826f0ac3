package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedNotifications stores one notification per title for userID, the
// first title being the oldest. Every second one is read.
func SeedNotifications(t *testing.T, s store.Store, userID string, titles ...string) []model.Notification {
	t.Helper()

	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	out := make([]model.Notification, 0, len(titles))
	for i, title := range titles {
		n, err := s.CreateNotification(context.Background(), userID, model.Notification{
			Title:     title,
			Message:   title + " body",
			Type:      model.TypeGeneral,
			Priority:  model.PriorityNormal,
			IsRead:    i%2 == 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seeding notification %q: %v", title, err)
		}
		out = append(out, n)
	}
	return out
}
