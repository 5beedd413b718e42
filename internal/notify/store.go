package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"licensehub.dev/internal/ids"
)

// Store persists notifications.
type Store interface {
	Append(ctx context.Context, e Entry) (Notification, error)
	// List returns the requested window and the total number of matches.
	List(ctx context.Context, f Filter) ([]Notification, int, error)
	MarkRead(ctx context.Context, id string) (Notification, error)
	MarkAllRead(ctx context.Context) (int64, error)
}

// InMemory implements Store for tests and development mode.
type InMemory struct {
	mu    sync.RWMutex
	items []*Notification
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory { return &InMemory{} }

func (s *InMemory) Append(ctx context.Context, e Entry) (Notification, error) {
	now := time.Now().UTC()
	n := &Notification{
		ID:        ids.New(),
		EventType: e.EventType,
		Message:   e.Message,
		ProjectID: optional(e.ProjectID),
		AdminID:   optional(e.AdminID),
		Details:   e.Details,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
	return *n, nil
}

func (s *InMemory) List(ctx context.Context, f Filter) ([]Notification, int, error) {
	f = f.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Notification, 0, len(s.items))
	for i := len(s.items) - 1; i >= 0; i-- {
		n := s.items[i]
		if f.UnreadOnly && n.IsRead {
			continue
		}
		matched = append(matched, *n)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if f.Offset >= total {
		return []Notification{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (s *InMemory) MarkRead(ctx context.Context, id string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			n.IsRead = true
			n.UpdatedAt = time.Now().UTC()
			return *n, nil
		}
	}
	return Notification{}, ErrNotFound
}

func (s *InMemory) MarkAllRead(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, item := range s.items {
		if !item.IsRead {
			item.IsRead = true
			item.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
