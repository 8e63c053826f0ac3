package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/feed/push"
	"github.com/nhle/bizdesk/internal/feed/rest"
	"github.com/nhle/bizdesk/internal/inbox"
	"github.com/nhle/bizdesk/internal/model"
	"github.com/nhle/bizdesk/internal/store"
	"github.com/nhle/bizdesk/tests/testutil"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	st := testutil.NewTestStore(t)
	return NewServer(st, testSecret), st
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := GenerateToken(testSecret, uid, model.UserTypeEmployee)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	return tok
}

// doRequest runs one request through the router.
func doRequest(s *Server, method, path, tok string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	s, _ := setupTestServer(t)
	for _, path := range []string{"/api/notifications", "/api/notifications/unread-count", "/ws"} {
		if w := doRequest(s, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, w.Code)
		}
		if w := doRequest(s, http.MethodGet, path, "forged", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token = %d, want 401", path, w.Code)
		}
	}
}

func TestHandleList(t *testing.T) {
	t.Parallel()

	s, st := setupTestServer(t)
	testutil.SeedNotifications(t, st, "u1", "a", "b", "c")
	testutil.SeedNotifications(t, st, "u2", "foreign")

	w := doRequest(s, http.MethodGet, "/api/notifications?page=1&limit=2", token(t, "u1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	var resp rest.ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(resp.Notifications) != 2 || resp.Notifications[0].Title != "c" {
		t.Errorf("notifications = %+v", resp.Notifications)
	}
	want := model.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2}
	if resp.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", resp.Pagination, want)
	}
}

func TestHandleUnreadCount(t *testing.T) {
	t.Parallel()

	s, st := setupTestServer(t)
	testutil.SeedNotifications(t, st, "u1", "a", "b", "c")

	w := doRequest(s, http.MethodGet, "/api/notifications/unread-count", token(t, "u1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"unreadCount":2}` {
		t.Errorf("body = %s", got)
	}
}

func TestHandleDelete(t *testing.T) {
	t.Parallel()

	s, st := setupTestServer(t)
	seeded := testutil.SeedNotifications(t, st, "u1", "a")

	if w := doRequest(s, http.MethodDelete, "/api/notifications/"+seeded[0].ID, token(t, "u2"), nil); w.Code != http.StatusNotFound {
		t.Errorf("foreign delete = %d, want 404", w.Code)
	}
	if w := doRequest(s, http.MethodDelete, "/api/notifications/"+seeded[0].ID, token(t, "u1"), nil); w.Code != http.StatusOK {
		t.Errorf("delete = %d, want 200", w.Code)
	}
	if w := doRequest(s, http.MethodDelete, "/api/notifications/"+seeded[0].ID, token(t, "u1"), nil); w.Code != http.StatusNotFound {
		t.Errorf("repeat delete = %d, want 404", w.Code)
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	t.Parallel()

	s, _ := setupTestServer(t)
	tok := token(t, "u1")

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{name: "ok", body: map[string]any{"title": "Invoice", "type": "INVOICE_CREATED", "priority": "HIGH"}, want: http.StatusCreated},
		{name: "missing title", body: map[string]any{"message": "x"}, want: http.StatusBadRequest},
		{name: "bad type", body: map[string]any{"title": "x", "type": "NOPE"}, want: http.StatusBadRequest},
		{name: "bad priority", body: map[string]any{"title": "x", "priority": "MEH"}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doRequest(s, http.MethodPost, "/api/notifications", tok, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

// TestEndToEnd drives the real client stack against the server.
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	s, st := setupTestServer(t)
	testutil.SeedNotifications(t, st, "u1", "old-unread", "old-read")

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	cfg := model.APIConfig{BaseURL: srv.URL + "/api", TimeoutSec: 5}
	wsURL, err := cfg.PushURL()
	if err != nil {
		t.Fatalf("PushURL() error: %v", err)
	}

	alerts := make(chan model.Notification, 4)
	box := inbox.New(inbox.Options{
		Fetcher: func(sess model.Session) feed.Fetcher {
			return rest.NewAdapter(cfg.BaseURL, sess.Token, cfg.Timeout())
		},
		Channel: func(model.Session) feed.Channel {
			return push.New(push.Options{URL: wsURL, PingInterval: time.Second})
		},
		OnNew: func(n model.Notification) { alerts <- n },
	})
	defer box.Close()

	tok := token(t, "u1")
	if err := box.Start(model.Session{Token: tok, User: "u1", UserType: model.UserTypeEmployee}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := box.FetchNotifications(context.Background()); err != nil {
		t.Fatalf("FetchNotifications() error: %v", err)
	}
	if box.UnreadCount() != 1 || len(box.Notifications()) != 2 {
		t.Fatalf("seeded snapshot = %+v", box.Snapshot())
	}

	waitFor(t, func() bool { return box.IsConnected() && s.Hub().Connections("u1") == 1 })

	// A notification created on the server arrives over the push channel.
	w := doRequest(s, http.MethodPost, "/api/notifications", tok, map[string]any{"title": "Stock low", "type": "ITEM_LOW_STOCK"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var created model.Notification
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	select {
	case n := <-alerts:
		if n.ID != created.ID {
			t.Errorf("alert for %s, want %s", n.ID, created.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no push alert")
	}
	waitFor(t, func() bool { return box.UnreadCount() == 2 })
	if first := box.Notifications()[0]; first.ID != created.ID {
		t.Errorf("feed head = %s, want %s", first.ID, created.ID)
	}

	// Marking read locally reaches the server over the channel.
	box.MarkAsRead(created.ID)
	if box.UnreadCount() != 1 {
		t.Errorf("UnreadCount() = %d right after MarkAsRead, want 1", box.UnreadCount())
	}
	waitFor(t, func() bool {
		n, _ := st.CountUnread(context.Background(), "u1")
		return n == 1
	})

	// Delete goes over REST.
	if err := box.DeleteNotification(context.Background(), created.ID); err != nil {
		t.Fatalf("DeleteNotification() error: %v", err)
	}
	if _, total, _ := st.ListNotifications(context.Background(), "u1", store.ListFilter{}); total != 2 {
		t.Errorf("server total = %d after delete, want 2", total)
	}

	// Mark all read is confirmed back to the client.
	box.MarkAllAsRead()
	waitFor(t, func() bool {
		n, _ := st.CountUnread(context.Background(), "u1")
		return n == 0
	})
	if box.UnreadCount() != 0 {
		t.Errorf("UnreadCount() = %d, want 0", box.UnreadCount())
	}

	box.Stop()
	waitFor(t, func() bool { return s.Hub().Connections("u1") == 0 })
}

func TestSocketRejectsBadToken(t *testing.T) {
	t.Parallel()

	s, _ := setupTestServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ch := push.New(push.Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"})
	defer ch.Close()
	ch.Connect("forged")

	select {
	case ev := <-ch.Events():
		disc, ok := ev.(feed.Disconnected)
		if !ok || !feed.IsUnauthorized(disc.Err) {
			t.Errorf("event = %#v, want unauthorized disconnect", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
