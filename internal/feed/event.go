package feed

import "github.com/nhle/bizdesk/internal/model"

// Event is one of the five push event kinds. The set is closed: only the
// types in this file implement it.
type Event interface {
	eventKind() string
}

// Connected is emitted each time the channel reaches the connected state.
type Connected struct{}

// Disconnected is emitted when a live connection drops or a connect
// attempt is abandoned. Err is nil on a clean close.
type Disconnected struct {
	Err error
}

// NotificationCreated carries a notification the server just created.
type NotificationCreated struct {
	Notification model.Notification
}

// NotificationMarkedRead confirms that a notification was read, possibly
// from another device.
type NotificationMarkedRead struct {
	ID string
}

// AllMarkedRead confirms that every notification was read.
type AllMarkedRead struct{}

func (Connected) eventKind() string              { return "connected" }
func (Disconnected) eventKind() string           { return "disconnected" }
func (NotificationCreated) eventKind() string    { return "notification-created" }
func (NotificationMarkedRead) eventKind() string { return "notification-marked-read" }
func (AllMarkedRead) eventKind() string          { return "all-marked-read" }

// EventName returns the kind label of e, used in logs.
func EventName(e Event) string {
	if e == nil {
		return "<nil>"
	}
	return e.eventKind()
}
