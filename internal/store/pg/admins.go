package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"licensehub.dev/internal/auth"
	"licensehub.dev/internal/ids"
)

var _ auth.Store = (*Store)(nil)

const adminColumns = `id, username, password_hash, role, created_at, updated_at`

func scanAdmin(row scanner) (auth.Admin, error) {
	var a auth.Admin
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func adminError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return auth.ErrNotFound
	case pgCode(err) == pgErrUniqueViolation:
		return auth.ErrConflict
	case pgCode(err) == pgErrCheckViolation:
		return fmt.Errorf("%w: %v", auth.ErrInvalidInput, err)
	}
	return err
}

func (s *Store) CreateAdmin(ctx context.Context, username, passwordHash, role string) (auth.Admin, error) {
	if s.db == nil {
		return auth.Admin{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into admins (id, username, password_hash, role)
		values ($1, $2, $3, $4)
		returning `+adminColumns,
		ids.New(), username, passwordHash, role)
	a, err := scanAdmin(row)
	if err != nil {
		return auth.Admin{}, adminError(err)
	}
	return a, nil
}

func (s *Store) GetAdmin(ctx context.Context, id string) (auth.Admin, error) {
	if s.db == nil {
		return auth.Admin{}, errNoDB
	}
	a, err := scanAdmin(s.db.QueryRowContext(ctx, `select `+adminColumns+` from admins where id = $1`, id))
	if err != nil {
		return auth.Admin{}, adminError(err)
	}
	return a, nil
}

func (s *Store) AdminByUsername(ctx context.Context, username string) (auth.Admin, error) {
	if s.db == nil {
		return auth.Admin{}, errNoDB
	}
	a, err := scanAdmin(s.db.QueryRowContext(ctx, `select `+adminColumns+` from admins where username = $1`, username))
	if err != nil {
		return auth.Admin{}, adminError(err)
	}
	return a, nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]auth.Admin, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+adminColumns+` from admins order by username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []auth.Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) UpdateAdmin(ctx context.Context, id string, upd auth.AdminUpdate) (auth.Admin, error) {
	if s.db == nil {
		return auth.Admin{}, errNoDB
	}
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Username != nil {
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", idx))
		args = append(args, *upd.Username)
		idx++
	}
	if upd.Role != nil {
		setClauses = append(setClauses, fmt.Sprintf("role = $%d", idx))
		args = append(args, *upd.Role)
		idx++
	}
	if len(setClauses) == 0 {
		return s.GetAdmin(ctx, id)
	}
	query := fmt.Sprintf(`update admins set %s where id = $%d returning %s`, strings.Join(setClauses, ", "), idx, adminColumns)
	args = append(args, id)
	a, err := scanAdmin(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return auth.Admin{}, adminError(err)
	}
	return a, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `update admins set password_hash = $1 where id = $2`, hash, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAdmin(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from admins where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from admins`).Scan(&n)
	return n, err
}
