package model

// UserType identifies which kind of account a session belongs to.
type UserType string

const (
	UserTypeCompany  UserType = "company"
	UserTypeEmployee UserType = "employee"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == UserTypeCompany || t == UserTypeEmployee
}

// Session is the locally persisted login state read at startup.
type Session struct {
	// Token is the bearer token used for REST calls and the push channel.
	Token string `json:"token"`

	// User is a minimal descriptor of the logged-in account (usually a
	// name or email), used for display only.
	User string `json:"user"`

	// UserType is the account kind.
	UserType UserType `json:"userType"`
}

// ConnectionState is the lifecycle state of the push channel.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns a lower-case label for the state.
func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
