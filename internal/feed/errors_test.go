package feed

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_FollowsWrapping(t *testing.T) {
	base := Errorf(KindUnauthorized, "fetch feed", "status %d", 401)
	wrapped := fmt.Errorf("seeding: %w", base)

	if !IsUnauthorized(wrapped) {
		t.Errorf("IsUnauthorized(%v) = false", wrapped)
	}
	if IsNetwork(wrapped) || IsNotFound(wrapped) || IsMalformed(wrapped) {
		t.Errorf("wrapped unauthorized error matched another kind")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf(plain error) != 0")
	}
	if KindOf(nil) != 0 {
		t.Error("KindOf(nil) != 0")
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{Errorf(KindNotFound, "delete notification", "id %s", "n1"), "delete notification: not found: id n1"},
		{&Error{Kind: KindNetwork, Op: "receive"}, "receive: network"},
		{&Error{Kind: Kind(42), Op: "x"}, "x: unknown"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Kind: KindNetwork, Op: "receive", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find the cause")
	}
}

func TestEventName(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Connected{}, "connected"},
		{Disconnected{}, "disconnected"},
		{NotificationCreated{}, "notification-created"},
		{NotificationMarkedRead{ID: "a"}, "notification-marked-read"},
		{AllMarkedRead{}, "all-marked-read"},
		{nil, "<nil>"},
	}
	for _, tt := range tests {
		if got := EventName(tt.ev); got != tt.want {
			t.Errorf("EventName(%#v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}
