package license

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Registry is the authoritative project-to-status mapping. It validates input,
// delegates atomicity and uniqueness to the Store and notifies listeners after
// each committed mutation.
type Registry struct {
	store         Store
	defaultStatus Status
	listeners     []Listener
	now           func() time.Time
}

// Option configures Registry.
type Option func(*Registry)

// WithDefaultStatus sets the status assigned to newly created projects.
// Invalid values are ignored.
func WithDefaultStatus(s Status) Option {
	return func(r *Registry) {
		if s.Valid() {
			r.defaultStatus = s
		}
	}
}

// WithListener registers a post-commit listener.
func WithListener(l Listener) Option {
	return func(r *Registry) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry constructs a Registry over store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:         store,
		defaultStatus: StatusNotPaid,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultStatus reports the status new projects start with.
func (r *Registry) DefaultStatus() Status { return r.defaultStatus }

// CheckStatus returns the status for a caller-assigned identifier. An unknown
// identifier is ErrNotFound, never StatusNotPaid.
func (r *Registry) CheckStatus(ctx context.Context, identifier string) (Status, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", fmt.Errorf("%w: project identifier is required", ErrInvalidInput)
	}
	return r.store.StatusByIdentifier(ctx, identifier)
}

// GetProject loads a project by its internal id.
func (r *Registry) GetProject(ctx context.Context, id string) (Project, error) {
	return r.store.GetProject(ctx, id)
}

// ListProjects returns all projects, most recently created first.
func (r *Registry) ListProjects(ctx context.Context) ([]Project, error) {
	return r.store.ListProjects(ctx)
}

// Summary counts projects per status. Every status is present in the result.
func (r *Registry) Summary(ctx context.Context) (Summary, error) {
	counts, err := r.store.CountByStatus(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		sum.ByStatus[s] = counts[s]
		sum.Total += counts[s]
	}
	return sum, nil
}

// CreateProject registers a project with the default status.
func (r *Registry) CreateProject(ctx context.Context, actor Actor, in NewProject) (Project, error) {
	in, err := in.Normalize()
	if err != nil {
		return Project{}, err
	}
	p, err := r.store.CreateProject(ctx, in, r.defaultStatus)
	if err != nil {
		return Project{}, err
	}
	r.emit(ctx, Event{Type: EventProjectCreated, Project: p, Actor: actor, NewStatus: p.Status})
	return p, nil
}

// SetStatus overwrites the status of a project. Every transition is allowed.
func (r *Registry) SetStatus(ctx context.Context, actor Actor, id string, status Status) (Project, error) {
	if !status.Valid() {
		return Project{}, fmt.Errorf("%w: license status must be one of NOT_PAID, PARTIALLY_PAID, FULLY_PAID", ErrInvalidInput)
	}
	p, old, err := r.store.SetStatus(ctx, id, status)
	if err != nil {
		return Project{}, err
	}
	r.emit(ctx, Event{Type: EventStatusChanged, Project: p, Actor: actor, OldStatus: old, NewStatus: status})
	return p, nil
}

// UpdateDetails applies a partial update; omitted fields are left unchanged.
func (r *Registry) UpdateDetails(ctx context.Context, actor Actor, id string, patch ProjectPatch) (Project, error) {
	if err := patch.Validate(); err != nil {
		return Project{}, err
	}
	p, err := r.store.UpdateProject(ctx, id, patch.Fields())
	if err != nil {
		return Project{}, err
	}
	r.emit(ctx, Event{Type: EventProjectUpdated, Project: p, Actor: actor, Changed: patch.Names()})
	return p, nil
}

// DeleteProject removes a project permanently.
func (r *Registry) DeleteProject(ctx context.Context, actor Actor, id string) error {
	p, err := r.store.DeleteProject(ctx, id)
	if err != nil {
		return err
	}
	r.emit(ctx, Event{Type: EventProjectDeleted, Project: p, Actor: actor, OldStatus: p.Status})
	return nil
}

func (r *Registry) emit(ctx context.Context, evt Event) {
	evt.OccurredAt = r.now()
	for _, l := range r.listeners {
		l.HandleEvent(ctx, evt)
	}
}
