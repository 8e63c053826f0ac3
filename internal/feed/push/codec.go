package push

import (
	"encoding/json"
	"fmt"

	"github.com/nhle/bizdesk/internal/feed"
	"github.com/nhle/bizdesk/internal/model"
)

// Wire event names.
const (
	EventNewNotification  = "new_notification"
	EventNotificationRead = "notification_marked_read"
	EventAllMarkedRead    = "all_notifications_marked_read"

	EventMarkRead    = "mark_notification_read"
	EventMarkAllRead = "mark_all_read"
)

// Envelope is a single websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ReadPayload is the data of notification_marked_read and
// mark_notification_read.
type ReadPayload struct {
	NotificationID string `json:"notificationId"`
}

// Decode parses one inbound frame into a typed event. Any mismatch between
// the event name and its payload yields a Malformed error.
func Decode(frame []byte) (feed.Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, malformed("envelope: %w", err)
	}

	switch env.Event {
	case EventNewNotification:
		var n model.Notification
		if err := unmarshalData(env.Data, &n); err != nil {
			return nil, malformed("%s: %w", env.Event, err)
		}
		if n.ID == "" {
			return nil, malformed("%s: notification has no id", env.Event)
		}
		if n.Title == "" {
			return nil, malformed("%s: notification %s has no title", env.Event, n.ID)
		}
		return feed.NotificationCreated{Notification: n}, nil

	case EventNotificationRead:
		var p ReadPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, malformed("%s: %w", env.Event, err)
		}
		if p.NotificationID == "" {
			return nil, malformed("%s: missing notificationId", env.Event)
		}
		return feed.NotificationMarkedRead{ID: p.NotificationID}, nil

	case EventAllMarkedRead:
		return feed.AllMarkedRead{}, nil

	case "":
		return nil, malformed("envelope has no event name")

	default:
		return nil, malformed("unknown event %q", env.Event)
	}
}

// EncodeMarkRead builds the outbound mark_notification_read frame.
func EncodeMarkRead(id string) ([]byte, error) {
	return encode(EventMarkRead, ReadPayload{NotificationID: id})
}

// EncodeMarkAllRead builds the outbound mark_all_read frame.
func EncodeMarkAllRead() ([]byte, error) {
	return encode(EventMarkAllRead, nil)
}

// Encode builds an arbitrary frame. The development backend uses it for
// the server-to-client events.
func Encode(event string, data any) ([]byte, error) {
	return encode(event, data)
}

func encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(raw, v)
}

func malformed(format string, args ...any) error {
	return feed.Errorf(feed.KindMalformed, "decode event", format, args...)
}
