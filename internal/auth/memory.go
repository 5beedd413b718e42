package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"licensehub.dev/internal/ids"
)

// InMemory implements Store for tests and development mode.
type InMemory struct {
	mu     sync.RWMutex
	admins map[string]*Admin
	byName map[string]string
}

// NewInMemory creates an empty admin store.
func NewInMemory() *InMemory {
	return &InMemory{admins: make(map[string]*Admin), byName: make(map[string]string)}
}

func (s *InMemory) CreateAdmin(ctx context.Context, username, hash, role string) (Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[username]; ok {
		return Admin{}, ErrConflict
	}
	now := time.Now().UTC()
	a := &Admin{ID: ids.New(), Username: username, PasswordHash: hash, Role: role, CreatedAt: now, UpdatedAt: now}
	s.admins[a.ID] = a
	s.byName[username] = a.ID
	return *a, nil
}

func (s *InMemory) GetAdmin(ctx context.Context, id string) (Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return Admin{}, ErrNotFound
	}
	return *a, nil
}

func (s *InMemory) AdminByUsername(ctx context.Context, username string) (Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return Admin{}, ErrNotFound
	}
	return *s.admins[id], nil
}

func (s *InMemory) ListAdmins(ctx context.Context) ([]Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *InMemory) UpdateAdmin(ctx context.Context, id string, upd AdminUpdate) (Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return Admin{}, ErrNotFound
	}
	if upd.Username != nil && *upd.Username != a.Username {
		if _, taken := s.byName[*upd.Username]; taken {
			return Admin{}, ErrConflict
		}
		delete(s.byName, a.Username)
		a.Username = *upd.Username
		s.byName[a.Username] = id
	}
	if upd.Role != nil {
		a.Role = *upd.Role
	}
	a.UpdatedAt = time.Now().UTC()
	return *a, nil
}

func (s *InMemory) SetPasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) DeleteAdmin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byName, a.Username)
	delete(s.admins, id)
	return nil
}

func (s *InMemory) CountAdmins(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.admins), nil
}
