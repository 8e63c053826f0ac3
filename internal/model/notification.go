package model

import (
	"encoding/json"
	"sort"
	"time"
)

// NotificationType classifies what happened in the backend. It is
// informational only and never changes how a notification is reconciled.
type NotificationType string

const (
	TypeInvoiceCreated  NotificationType = "INVOICE_CREATED"
	TypeInvoiceUpdated  NotificationType = "INVOICE_UPDATED"
	TypeInvoiceDeleted  NotificationType = "INVOICE_DELETED"
	TypeEmployeeAdded   NotificationType = "EMPLOYEE_ADDED"
	TypeEmployeeUpdated NotificationType = "EMPLOYEE_UPDATED"
	TypeEmployeeRemoved NotificationType = "EMPLOYEE_REMOVED"
	TypeRoleChanged     NotificationType = "ROLE_CHANGED"
	TypeEntityAdded     NotificationType = "ENTITY_ADDED"
	TypeEntityUpdated   NotificationType = "ENTITY_UPDATED"
	TypeItemLowStock    NotificationType = "ITEM_LOW_STOCK"
	TypeSystemAlert     NotificationType = "SYSTEM_ALERT"
	TypeGeneral         NotificationType = "GENERAL"
)

var notificationTypes = map[NotificationType]bool{
	TypeInvoiceCreated:  true,
	TypeInvoiceUpdated:  true,
	TypeInvoiceDeleted:  true,
	TypeEmployeeAdded:   true,
	TypeEmployeeUpdated: true,
	TypeEmployeeRemoved: true,
	TypeRoleChanged:     true,
	TypeEntityAdded:     true,
	TypeEntityUpdated:   true,
	TypeItemLowStock:    true,
	TypeSystemAlert:     true,
	TypeGeneral:         true,
}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	return notificationTypes[t]
}

// Priority is a display hint for a notification.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities for display (higher is more important).
// Unknown priorities rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Notification is a single item of a user's notification feed.
// The ID is stable across the REST snapshot and the push channel.
type Notification struct {
	// ID is the opaque identifier assigned by the backend.
	ID string `json:"id"`

	// Title is the short headline shown in the list.
	Title string `json:"title"`

	// Message is the body text.
	Message string `json:"message"`

	// Type classifies the originating backend event.
	Type NotificationType `json:"type"`

	// Priority is a display hint.
	Priority Priority `json:"priority"`

	// IsRead is true once the user (on any device) has read it.
	IsRead bool `json:"isRead"`

	// CompanyID scopes the notification to a company, if any.
	CompanyID string `json:"companyId,omitempty"`

	// EmployeeID scopes the notification to an employee, if any.
	EmployeeID string `json:"employeeId,omitempty"`

	// Metadata is opaque context attached by the backend.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// CreatedAt determines feed ordering.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the backend last modified the notification.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Pagination describes where a page sits in the full server-side feed.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is one page of the feed as returned by the backend.
type Page struct {
	Notifications []Notification
	Pagination    Pagination
}

// SortNewestFirst orders notifications by CreatedAt descending. Ties keep
// their relative order.
func SortNewestFirst(ns []Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
}

// CountUnread returns the number of unread notifications in ns.
func CountUnread(ns []Notification) int {
	n := 0
	for _, item := range ns {
		if !item.IsRead {
			n++
		}
	}
	return n
}
