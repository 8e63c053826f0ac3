package rest

import "github.com/nhle/bizdesk/internal/model"

// ListResponse is the body of GET /notifications.
type ListResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Pagination    model.Pagination     `json:"pagination"`
}

// UnreadCountResponse is the body of GET /notifications/unread-count.
// The pointer distinguishes a missing field from zero.
type UnreadCountResponse struct {
	UnreadCount *int `json:"unreadCount"`
}

// ErrorResponse is the error body returned by the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
