// Package postgres stores blobs in a PostgreSQL key-value table.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/hiroki-koketsu/go-todo/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	selectBlob = `SELECT value FROM todo_blobs WHERE key = $1`
	upsertBlob = `INSERT INTO todo_blobs (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

// Backend stores each key as one row of todo_blobs.
type Backend struct {
	db *sql.DB
}

var _ storage.Backend = (*Backend)(nil)

// New opens the database at databaseURL, configures the pool and runs
// pending migrations.
func New(databaseURL string) (*Backend, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an open database whose schema is already migrated.
func NewWithDB(db *sql.DB) *Backend {
	return &Backend{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, selectBlob, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select blob: %w", err)
	}
	return data, nil
}

func (b *Backend) Set(ctx context.Context, key string, data []byte) error {
	if _, err := b.db.ExecContext(ctx, upsertBlob, key, data); err != nil {
		return fmt.Errorf("upsert blob: %w", err)
	}
	return nil
}

func (b *Backend) Name() string {
	return "postgres"
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}
