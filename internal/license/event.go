package license

import (
	"context"
	"time"
)

// EventType tags a committed registry mutation.
type EventType string

const (
	EventProjectCreated EventType = "PROJECT_CREATED"
	EventProjectUpdated EventType = "PROJECT_UPDATED"
	EventStatusChanged  EventType = "PROJECT_STATUS_CHANGED"
	EventProjectDeleted EventType = "PROJECT_DELETED"
)

// Actor identifies the administrator performing a mutation. Zero value means
// the caller is unknown (for example a bootstrap task).
type Actor struct {
	ID       string
	Username string
}

// Event describes a mutation after storage has committed it.
type Event struct {
	Type       EventType
	Project    Project
	Actor      Actor
	OldStatus  Status
	NewStatus  Status
	Changed    []string
	OccurredAt time.Time
}

// Listener receives events after the primary write succeeds. Implementations
// own their failure handling: the registry never sees their errors.
type Listener interface {
	HandleEvent(ctx context.Context, evt Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, evt Event)

func (f ListenerFunc) HandleEvent(ctx context.Context, evt Event) { f(ctx, evt) }
