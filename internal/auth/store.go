package auth

import "context"

// Store persists admin accounts. Username uniqueness is enforced by the
// implementation and reported as ErrConflict; missing rows are ErrNotFound.
type Store interface {
	CreateAdmin(ctx context.Context, username, passwordHash, role string) (Admin, error)
	GetAdmin(ctx context.Context, id string) (Admin, error)
	AdminByUsername(ctx context.Context, username string) (Admin, error)
	ListAdmins(ctx context.Context) ([]Admin, error)
	UpdateAdmin(ctx context.Context, id string, upd AdminUpdate) (Admin, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	DeleteAdmin(ctx context.Context, id string) error
	CountAdmins(ctx context.Context) (int, error)
}
