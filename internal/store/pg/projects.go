package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"licensehub.dev/internal/ids"
	"licensehub.dev/internal/license"
)

var _ license.Store = (*Store)(nil)

const projectColumns = `id::text, project_name, project_identifier, client_ip_address, license_status, notes, created_at, updated_at`

// projectFieldColumns whitelists the columns a partial update may touch.
var projectFieldColumns = map[string]string{
	license.FieldName:       "project_name",
	license.FieldIdentifier: "project_identifier",
	license.FieldAddress:    "client_ip_address",
	license.FieldNotes:      "notes",
}

func scanProject(row scanner, extra ...any) (license.Project, error) {
	var (
		p       license.Project
		status  string
		address sql.NullString
		notes   sql.NullString
	)
	dest := append([]any{&p.ID, &p.Name, &p.Identifier, &address, &status, &notes, &p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return license.Project{}, err
	}
	p.Status = license.Status(status)
	p.Address = ptr(address)
	p.Notes = ptr(notes)
	return p, nil
}

func projectError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return license.ErrNotFound
	case pgCode(err) == pgErrUniqueViolation:
		return license.ErrConflict
	case pgCode(err) == pgErrCheckViolation:
		return fmt.Errorf("%w: %v", license.ErrInvalidInput, err)
	}
	return err
}

func (s *Store) CreateProject(ctx context.Context, in license.NewProject, status license.Status) (license.Project, error) {
	if s.db == nil {
		return license.Project{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into projects (project_name, project_identifier, client_ip_address, notes, license_status)
		values ($1, $2, $3, $4, $5)
		returning `+projectColumns,
		in.Name, in.Identifier, nullIfEmpty(in.Address), nullIfEmpty(in.Notes), string(status))
	p, err := scanProject(row)
	if err != nil {
		return license.Project{}, projectError(err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (license.Project, error) {
	if s.db == nil {
		return license.Project{}, errNoDB
	}
	if !ids.IsUUID(id) {
		return license.Project{}, license.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `select `+projectColumns+` from projects where id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return license.Project{}, projectError(err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]license.Project, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+projectColumns+` from projects order by created_at desc, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []license.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) StatusByIdentifier(ctx context.Context, identifier string) (license.Status, error) {
	if s.db == nil {
		return "", errNoDB
	}
	var status string
	err := s.db.QueryRowContext(ctx, `select license_status from projects where project_identifier = $1`, identifier).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", license.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return license.Status(status), nil
}

// SetStatus overwrites the status in one statement, locking the row to read
// the status it replaces.
func (s *Store) SetStatus(ctx context.Context, id string, status license.Status) (license.Project, license.Status, error) {
	if s.db == nil {
		return license.Project{}, "", errNoDB
	}
	if !ids.IsUUID(id) {
		return license.Project{}, "", license.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		update projects p set license_status = $1
		from (select id, license_status from projects where id = $2 for update) old
		where p.id = old.id
		returning p.id::text, p.project_name, p.project_identifier, p.client_ip_address,
			p.license_status, p.notes, p.created_at, p.updated_at, old.license_status
	`, string(status), id)
	var old string
	p, err := scanProject(row, &old)
	if err != nil {
		return license.Project{}, "", projectError(err)
	}
	return p, license.Status(old), nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, fields []license.Field) (license.Project, error) {
	if s.db == nil {
		return license.Project{}, errNoDB
	}
	if !ids.IsUUID(id) {
		return license.Project{}, license.ErrNotFound
	}
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	for _, f := range fields {
		col, ok := projectFieldColumns[f.Name]
		if !ok {
			return license.Project{}, fmt.Errorf("%w: unknown field %s", license.ErrInvalidInput, f.Name)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, nullable(f.Value))
		idx++
	}
	if len(setClauses) == 0 {
		return license.Project{}, fmt.Errorf("%w: no update fields provided", license.ErrInvalidInput)
	}
	query := fmt.Sprintf(`update projects set %s where id = $%d returning %s`, strings.Join(setClauses, ", "), idx, projectColumns)
	args = append(args, id)

	p, err := scanProject(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return license.Project{}, projectError(err)
	}
	return p, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) (license.Project, error) {
	if s.db == nil {
		return license.Project{}, errNoDB
	}
	if !ids.IsUUID(id) {
		return license.Project{}, license.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `delete from projects where id = $1 returning `+projectColumns, id)
	p, err := scanProject(row)
	if err != nil {
		return license.Project{}, projectError(err)
	}
	return p, nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[license.Status]int, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select license_status, count(*) from projects group by license_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[license.Status]int, len(license.Statuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[license.Status(status)] = n
	}
	return counts, rows.Err()
}
