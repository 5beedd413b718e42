package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrations embed.FS

const migrationsDir = "sql"

var setupOnce sync.Once

// Seams for tests; goose keeps its configuration in package state.
var (
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	}
	gooseDown = func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	}
	gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) {
		return goose.GetDBVersionContext(ctx, db)
	}
	gooseStatus = func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	}
)

// Manager applies the embedded schema migrations.
type Manager struct {
	db *sql.DB
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

func (m *Manager) setup() error {
	if m.db == nil {
		return errors.New("database connection unavailable")
	}
	var err error
	setupOnce.Do(func() {
		goose.SetBaseFS(migrations)
		err = goose.SetDialect("pgx")
	})
	return err
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}
	return gooseUp(ctx, m.db, migrationsDir)
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}
	return gooseDown(ctx, m.db, migrationsDir)
}

// Version reports the currently applied schema version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	if err := m.setup(); err != nil {
		return 0, err
	}
	return gooseVersion(ctx, m.db)
}

// Status logs applied and pending migrations.
func (m *Manager) Status(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}
	return gooseStatus(ctx, m.db, migrationsDir)
}
