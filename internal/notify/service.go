package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"licensehub.dev/internal/audit"
	"licensehub.dev/internal/auth"
	"licensehub.dev/internal/license"
	"licensehub.dev/internal/obs"
	"licensehub.dev/internal/stream"
)

// Service appends notifications, mirrors them to the audit log and publishes
// them to live subscribers. It is the registry's post-commit listener and the
// account activity recorder.
type Service struct {
	store  Store
	broker *stream.Broker[Notification]
	logger *slog.Logger
}

// Option configures Service.
type Option func(*Service)

// WithBroker publishes every stored notification to b.
func WithBroker(b *stream.Broker[Notification]) Option {
	return func(s *Service) { s.broker = b }
}

// WithLogger overrides the logger used for sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService constructs Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: obs.Logger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit records e. Failures are logged and swallowed so the operation that
// produced the event is never affected.
func (s *Service) Emit(ctx context.Context, e Entry) {
	_ = audit.LogEvent(ctx, e.EventType, auditFields(e))

	n, err := s.store.Append(ctx, e)
	if err != nil {
		s.logger.ErrorContext(ctx, "notification append failed",
			slog.String("event_type", e.EventType),
			slog.String("error", err.Error()))
		return
	}
	if s.broker != nil {
		s.broker.Publish(n)
	}
}

// HandleEvent turns a committed registry mutation into a notification.
func (s *Service) HandleEvent(ctx context.Context, evt license.Event) {
	s.Emit(ctx, entryForProject(evt))
}

// RecordActivity turns an account event into a notification.
func (s *Service) RecordActivity(ctx context.Context, a auth.Activity) {
	s.Emit(ctx, Entry{EventType: a.Type, Message: a.Message, AdminID: a.AdminID, Details: a.Details})
}

// List returns a page of notifications, newest first.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalize()
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Notification{}
	}
	return Page{Notifications: items, TotalCount: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) (Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Notification{}, ErrNotFound
	}
	return s.store.MarkRead(ctx, id)
}

// MarkAllRead flags every unread notification as read.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	return s.store.MarkAllRead(ctx)
}

// Subscribe streams notifications appended after the call until ctx ends.
// It returns nil when live streaming is not configured.
func (s *Service) Subscribe(ctx context.Context) <-chan Notification {
	if s.broker == nil {
		return nil
	}
	return s.broker.Subscribe(ctx)
}

func entryForProject(evt license.Event) Entry {
	p := evt.Project
	actor := evt.Actor.Username
	if actor == "" {
		actor = "system"
	}
	e := Entry{
		EventType: string(evt.Type),
		ProjectID: p.ID,
		AdminID:   evt.Actor.ID,
		Details: map[string]any{
			"project_name":       p.Name,
			"project_identifier": p.Identifier,
		},
	}
	switch evt.Type {
	case license.EventProjectCreated:
		e.Message = fmt.Sprintf("Project %q (%s) created by %s.", p.Name, p.Identifier, actor)
		e.Details["license_status"] = string(evt.NewStatus)
	case license.EventStatusChanged:
		e.Message = fmt.Sprintf("License status of project %q changed from %s to %s by %s.", p.Name, evt.OldStatus, evt.NewStatus, actor)
		e.Details["old_status"] = string(evt.OldStatus)
		e.Details["new_status"] = string(evt.NewStatus)
	case license.EventProjectUpdated:
		e.Message = fmt.Sprintf("Project %q updated by %s (%s).", p.Name, actor, strings.Join(evt.Changed, ", "))
		e.Details["changed"] = evt.Changed
	case license.EventProjectDeleted:
		e.Message = fmt.Sprintf("Project %q (%s) deleted by %s.", p.Name, p.Identifier, actor)
		e.Details["project_id"] = p.ID
		// The row is gone; a reference would dangle.
		e.ProjectID = ""
	default:
		e.Message = fmt.Sprintf("Project %q: %s by %s.", p.Name, evt.Type, actor)
	}
	return e
}

func auditFields(e Entry) map[string]any {
	fields := make(map[string]any, len(e.Details)+3)
	for k, v := range e.Details {
		fields[k] = v
	}
	fields["message"] = e.Message
	if e.ProjectID != "" {
		fields["project_id"] = e.ProjectID
	}
	if e.AdminID != "" {
		fields["admin_id"] = e.AdminID
	}
	return fields
}
