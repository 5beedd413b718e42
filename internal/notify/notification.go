// Package notify records registry and account activity as notifications that
// administrators can page through, mark as read and follow live.
package notify

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a notification id does not exist.
var ErrNotFound = errors.New("notification not found")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Notification is one recorded event. Only IsRead changes after creation.
type Notification struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	ProjectID *string        `json:"project_id"`
	AdminID   *string        `json:"admin_id"`
	Details   map[string]any `json:"details"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Entry is a notification to append.
type Entry struct {
	EventType string
	Message   string
	ProjectID string
	AdminID   string
	Details   map[string]any
}

// Filter selects a page of notifications, newest first.
type Filter struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// Normalize clamps the page window to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Page is one window of the notification list with the total matching count.
type Page struct {
	Notifications []Notification `json:"notifications"`
	TotalCount    int            `json:"totalCount"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}
