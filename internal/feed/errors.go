package feed

import (
	"errors"
	"fmt"
)

// Kind classifies a feed failure.
type Kind int

const (
	// KindNetwork covers transport, DNS, timeout and server-side failures.
	KindNetwork Kind = iota + 1
	// KindUnauthorized means the token is invalid or expired. Never retried.
	KindUnauthorized
	// KindNotFound means the referenced notification does not exist.
	KindNotFound
	// KindMalformed means a payload could not be parsed or validated.
	KindMalformed
)

// String returns a lower-case label for the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified failure from the fetcher or the channel.
type Error struct {
	Kind Kind
	// Op names the failed operation (e.g., "fetch feed").
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsUnauthorized reports whether err (or any error in its chain) is an
// Unauthorized failure.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsNetwork reports whether err is a Network failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}

// IsMalformed reports whether err is a Malformed failure.
func IsMalformed(err error) bool {
	return KindOf(err) == KindMalformed
}
