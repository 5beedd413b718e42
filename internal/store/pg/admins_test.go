package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"licensehub.dev/internal/auth"
)

var adminCols = []string{"id", "username", "password_hash", "role", "created_at", "updated_at"}

func TestCreateAdminConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("insert into admins").
		WithArgs(sqlmock.AnyArg(), "root", "hash", auth.RoleAdministrator).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	if _, err := store.CreateAdmin(context.Background(), "root", "hash", auth.RoleAdministrator); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAdminByUsername(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from admins where username").
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows(adminCols).AddRow("01HADMIN", "root", "hash", "administrator", now, now))
	mock.ExpectQuery("select .* from admins where username").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(adminCols))

	a, err := store.AdminByUsername(context.Background(), "root")
	if err != nil || a.ID != "01HADMIN" || a.PasswordHash != "hash" {
		t.Fatalf("AdminByUsername = %+v, %v", a, err)
	}
	if _, err := store.AdminByUsername(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateAdminRole(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	role := auth.RoleViewer
	mock.ExpectQuery(`update admins set role = \$1 where id = \$2`).
		WithArgs(role, "01HADMIN").
		WillReturnRows(sqlmock.NewRows(adminCols).AddRow("01HADMIN", "root", "hash", role, now, now))

	a, err := store.UpdateAdmin(context.Background(), "01HADMIN", auth.AdminUpdate{Role: &role})
	if err != nil || a.Role != role {
		t.Fatalf("UpdateAdmin = %+v, %v", a, err)
	}
	expectationsMet(t, mock)
}

func TestDeleteAdminAndPasswordMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("delete from admins").WithArgs("01HADMIN").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from admins").WithArgs("01HADMIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("update admins set password_hash").WithArgs("h", "missing").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteAdmin(context.Background(), "01HADMIN"); err != nil {
		t.Fatalf("DeleteAdmin: %v", err)
	}
	if err := store.DeleteAdmin(context.Background(), "01HADMIN"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetPasswordHash(context.Background(), "missing", "h"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestCountAdmins(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err := store.CountAdmins(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("CountAdmins = %d, %v", n, err)
	}
	expectationsMet(t, mock)
}
