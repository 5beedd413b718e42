package license

import (
	"context"
	"sort"
	"sync"
	"time"

	"licensehub.dev/internal/ids"
)

// InMemory implements Store with in-process concurrency safety.
// Used by tests and the API's -memory development mode.
type InMemory struct {
	mu       sync.RWMutex
	projects map[string]*Project
	byIdent  map[string]string // identifier -> id
	byName   map[string]string // name -> id
	seq      map[string]uint64 // insertion order, breaks created_at ties
	next     uint64
	now      func() time.Time
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		projects: make(map[string]*Project),
		byIdent:  make(map[string]string),
		byName:   make(map[string]string),
		seq:      make(map[string]uint64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemory) CreateProject(ctx context.Context, p NewProject, status Status) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdent[p.Identifier]; ok {
		return Project{}, ErrConflict
	}
	if _, ok := s.byName[p.Name]; ok {
		return Project{}, ErrConflict
	}
	now := s.now()
	proj := &Project{
		ID:         ids.NewUUID(),
		Name:       p.Name,
		Identifier: p.Identifier,
		Address:    optional(p.Address),
		Notes:      optional(p.Notes),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.projects[proj.ID] = proj
	s.byIdent[proj.Identifier] = proj.ID
	s.byName[proj.Name] = proj.ID
	s.next++
	s.seq[proj.ID] = s.next
	return *proj, nil
}

func (s *InMemory) GetProject(ctx context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return *p, nil
}

func (s *InMemory) ListProjects(ctx context.Context) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

func (s *InMemory) StatusByIdentifier(ctx context.Context, identifier string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdent[identifier]
	if !ok {
		return "", ErrNotFound
	}
	return s.projects[id].Status, nil
}

func (s *InMemory) SetStatus(ctx context.Context, id string, status Status) (Project, Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, "", ErrNotFound
	}
	old := p.Status
	p.Status = status
	p.UpdatedAt = s.now()
	return *p, old, nil
}

func (s *InMemory) UpdateProject(ctx context.Context, id string, fields []Field) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	next := *p
	for _, f := range fields {
		switch f.Name {
		case FieldName:
			if other, taken := s.byName[*f.Value]; taken && other != id {
				return Project{}, ErrConflict
			}
			next.Name = *f.Value
		case FieldIdentifier:
			if other, taken := s.byIdent[*f.Value]; taken && other != id {
				return Project{}, ErrConflict
			}
			next.Identifier = *f.Value
		case FieldAddress:
			next.Address = f.Value
		case FieldNotes:
			next.Notes = f.Value
		}
	}
	delete(s.byName, p.Name)
	delete(s.byIdent, p.Identifier)
	s.byName[next.Name] = id
	s.byIdent[next.Identifier] = id
	next.UpdatedAt = s.now()
	*p = next
	return next, nil
}

func (s *InMemory) DeleteProject(ctx context.Context, id string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	delete(s.projects, id)
	delete(s.byIdent, p.Identifier)
	delete(s.byName, p.Name)
	delete(s.seq, id)
	return *p, nil
}

func (s *InMemory) CountByStatus(ctx context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, len(Statuses))
	for _, p := range s.projects {
		counts[p.Status]++
	}
	return counts, nil
}
