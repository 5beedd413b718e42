package license

import "context"

// Store persists projects. Implementations must enforce uniqueness of name and
// identifier atomically and report violations as ErrConflict. Missing rows are
// ErrNotFound.
type Store interface {
	CreateProject(ctx context.Context, p NewProject, status Status) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	StatusByIdentifier(ctx context.Context, identifier string) (Status, error)
	// SetStatus overwrites the status and returns the status it replaced.
	SetStatus(ctx context.Context, id string, status Status) (Project, Status, error)
	UpdateProject(ctx context.Context, id string, fields []Field) (Project, error)
	// DeleteProject removes the row and returns it as it was.
	DeleteProject(ctx context.Context, id string) (Project, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
