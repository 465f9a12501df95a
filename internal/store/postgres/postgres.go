// Package postgres stores project config and its derived rows in PostgreSQL.
// The schema is embedded and migrated forward when a Store is opened.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/cms/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool limits. A config apply holds one connection for the whole flush, and
// resave workers each hold one per job.
const (
	maxOpenConns    = 20
	maxIdleConns    = 4
	connMaxLifetime = 10 * time.Minute
	connMaxIdleTime = 2 * time.Minute
)

type Store struct {
	queries
	db     *sql.DB
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to databaseURL and migrates the schema to the latest
// version. A nil logger uses slog.Default().
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := newWithDB(db)
	s.logger = logger
	version, err := s.migrate()
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("database schema ready", "version", version)
	return s, nil
}

func newWithDB(db *sql.DB) *Store {
	return &Store{queries: queries{db: db}, db: db, logger: slog.Default()}
}

// migrate applies pending migrations and returns the resulting schema
// version.
func (s *Store) migrate() (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return 0, fmt.Errorf("preparing migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("preparing migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrating schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty, fix it by hand and rerun", version)
	}
	return version, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTransaction runs fn against a store bound to one transaction. The
// transaction commits when fn returns nil and rolls back when fn fails or
// panics.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txStore{queries: queries{db: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore is the store handed to a RunInTransaction callback. Nested calls
// join the outer transaction.
type txStore struct {
	queries
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error {
	return nil
}
