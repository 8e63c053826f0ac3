package push

import (
	"encoding/json"
	"testing"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/model"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("new notification", func(t *testing.T) {
		t.Parallel()
		ev, err := Decode([]byte(`{"event":"new_notification","data":{"id":"n4","title":"Invoice #12","type":"INVOICE_CREATED","priority":"HIGH","isRead":false,"createdAt":"2026-10-01T12:00:00Z"}}`))
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		created, ok := ev.(feed.NotificationCreated)
		if !ok {
			t.Fatalf("event = %T, want feed.NotificationCreated", ev)
		}
		n := created.Notification
		if n.ID != "n4" || n.Title != "Invoice #12" {
			t.Errorf("notification = %+v", n)
		}
		if n.Type != model.TypeInvoiceCreated || n.Priority != model.PriorityHigh {
			t.Errorf("type/priority = %s/%s", n.Type, n.Priority)
		}
	})

	t.Run("marked read", func(t *testing.T) {
		t.Parallel()
		ev, err := Decode([]byte(`{"event":"notification_marked_read","data":{"notificationId":"n1"}}`))
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if got, ok := ev.(feed.NotificationMarkedRead); !ok || got.ID != "n1" {
			t.Errorf("event = %#v, want NotificationMarkedRead{n1}", ev)
		}
	})

	t.Run("all marked read without data", func(t *testing.T) {
		t.Parallel()
		ev, err := Decode([]byte(`{"event":"all_notifications_marked_read"}`))
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if _, ok := ev.(feed.AllMarkedRead); !ok {
			t.Errorf("event = %T, want feed.AllMarkedRead", ev)
		}
	})
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame string
	}{
		{name: "invalid json", frame: `{"event":`},
		{name: "no event name", frame: `{"data":{}}`},
		{name: "unknown event", frame: `{"event":"invoice_paid","data":{}}`},
		{name: "notification without data", frame: `{"event":"new_notification"}`},
		{name: "notification null data", frame: `{"event":"new_notification","data":null}`},
		{name: "notification without id", frame: `{"event":"new_notification","data":{"title":"x"}}`},
		{name: "notification without title", frame: `{"event":"new_notification","data":{"id":"n1"}}`},
		{name: "notification wrong shape", frame: `{"event":"new_notification","data":"n1"}`},
		{name: "read without id", frame: `{"event":"notification_marked_read","data":{}}`},
		{name: "read id wrong type", frame: `{"event":"notification_marked_read","data":{"notificationId":7}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := Decode([]byte(tt.frame))
			if err == nil {
				t.Fatalf("Decode() = %#v, want error", ev)
			}
			if !feed.IsMalformed(err) {
				t.Errorf("KindOf() = %v, want malformed (err=%v)", feed.KindOf(err), err)
			}
		})
	}
}

func TestEncodeMarkRead(t *testing.T) {
	t.Parallel()

	frame, err := EncodeMarkRead("n1")
	if err != nil {
		t.Fatalf("EncodeMarkRead() error: %v", err)
	}

	var env struct {
		Event string      `json:"event"`
		Data  ReadPayload `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("unmarshal %s: %v", frame, err)
	}
	if env.Event != "mark_notification_read" || env.Data.NotificationID != "n1" {
		t.Errorf("frame = %s", frame)
	}
}

func TestEncodeMarkAllRead(t *testing.T) {
	t.Parallel()

	frame, err := EncodeMarkAllRead()
	if err != nil {
		t.Fatalf("EncodeMarkAllRead() error: %v", err)
	}
	if string(frame) != `{"event":"mark_all_read"}` {
		t.Errorf("frame = %s, want %s", frame, `{"event":"mark_all_read"}`)
	}
}
