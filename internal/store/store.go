package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/store/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is the SQL-backed bill and subscriber store. The same queries run
// on Postgres (lib/pq) and SQLite (modernc); placeholders are rebound per
// driver.
type Store struct {
	db  *sqlx.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

// New wraps an open connection. The driver name decides the SQL dialect.
func New(db *sqlx.DB) *Store {
	var ph sq.PlaceholderFormat = sq.Question
	if db.DriverName() == DriverPostgres {
		ph = sq.Dollar
	}
	return &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(ph),
		now: time.Now,
	}
}

// Open connects using cfg and waits for the database to answer pings
// (it may still be starting in docker).
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// one connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	attempts := max(cfg.PingAttempts, 1)
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.Warn("waiting for db", "attempt", i+1, "error", err)
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: could not connect to db: %w", err)
	}

	return New(db), nil
}

// Migrate applies the embedded goose migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	dialect, dir := goose.DialectSQLite3, "sqlite"
	if s.db.DriverName() == DriverPostgres {
		dialect, dir = goose.DialectPostgres, "postgres"
	}

	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("store: migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(dialect, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("store: goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: goose up: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.db.PingContext(ctx), "ping")
}

func (s *Store) Close() error {
	return s.db.Close()
}
