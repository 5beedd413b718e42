package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"licensehub.dev/internal/ids"
	"licensehub.dev/internal/notify"
)

// NotificationStore exposes the notifications table as notify.Store.
type NotificationStore struct {
	s *Store
}

var _ notify.Store = NotificationStore{}

// Notifications returns the notification view of the store.
func (s *Store) Notifications() NotificationStore { return NotificationStore{s: s} }

const notificationColumns = `id, event_type, message, project_id::text, admin_id, details, is_read, created_at, updated_at`

func scanNotification(row scanner) (notify.Notification, error) {
	var (
		n         notify.Notification
		projectID sql.NullString
		adminID   sql.NullString
		details   []byte
	)
	if err := row.Scan(&n.ID, &n.EventType, &n.Message, &projectID, &adminID, &details, &n.IsRead, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return notify.Notification{}, err
	}
	n.ProjectID = ptr(projectID)
	n.AdminID = ptr(adminID)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &n.Details); err != nil {
			return notify.Notification{}, fmt.Errorf("decode details: %w", err)
		}
	}
	return n, nil
}

// Append inserts e. When a referenced project or admin is gone by the time
// the row is written, the references move into details and the insert is
// retried once so the record is kept.
func (ns NotificationStore) Append(ctx context.Context, e notify.Entry) (notify.Notification, error) {
	if ns.s.db == nil {
		return notify.Notification{}, errNoDB
	}
	n, err := ns.insert(ctx, e)
	if pgCode(err) != pgErrForeignKeyViolation {
		return n, err
	}
	return ns.insert(ctx, detachReferences(e))
}

func (ns NotificationStore) insert(ctx context.Context, e notify.Entry) (notify.Notification, error) {
	var details []byte
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return notify.Notification{}, fmt.Errorf("marshal details: %w", err)
		}
		details = raw
	}
	row := ns.s.db.QueryRowContext(ctx, `
		insert into notifications (id, event_type, message, project_id, admin_id, details)
		values ($1, $2, $3, $4, $5, $6)
		returning `+notificationColumns,
		ids.New(), e.EventType, e.Message, nullIfEmpty(e.ProjectID), nullIfEmpty(e.AdminID), details)
	return scanNotification(row)
}

func detachReferences(e notify.Entry) notify.Entry {
	details := make(map[string]any, len(e.Details)+2)
	for k, v := range e.Details {
		details[k] = v
	}
	if e.ProjectID != "" {
		details["project_id"] = e.ProjectID
	}
	if e.AdminID != "" {
		details["admin_id"] = e.AdminID
	}
	e.Details = details
	e.ProjectID = ""
	e.AdminID = ""
	return e
}

func (ns NotificationStore) List(ctx context.Context, f notify.Filter) ([]notify.Notification, int, error) {
	if ns.s.db == nil {
		return nil, 0, errNoDB
	}
	f = f.Normalize()
	where := ""
	if f.UnreadOnly {
		where = " where is_read = false"
	}

	var total int
	if err := ns.s.db.QueryRowContext(ctx, `select count(*) from notifications`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := ns.s.db.QueryContext(ctx, `select `+notificationColumns+` from notifications`+where+`
		order by created_at desc, id desc
		limit $1 offset $2`, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []notify.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, n)
	}
	return result, total, rows.Err()
}

func (ns NotificationStore) MarkRead(ctx context.Context, id string) (notify.Notification, error) {
	if ns.s.db == nil {
		return notify.Notification{}, errNoDB
	}
	row := ns.s.db.QueryRowContext(ctx, `update notifications set is_read = true where id = $1 returning `+notificationColumns, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Notification{}, notify.ErrNotFound
	}
	return n, err
}

func (ns NotificationStore) MarkAllRead(ctx context.Context) (int64, error) {
	if ns.s.db == nil {
		return 0, errNoDB
	}
	res, err := ns.s.db.ExecContext(ctx, `update notifications set is_read = true where is_read = false`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
