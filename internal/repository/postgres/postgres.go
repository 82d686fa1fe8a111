// Package postgres implements the repository interfaces on PostgreSQL via pgx.
//
// The schema is versioned SQL under migrations/, embedded into the binary and
// applied with golang-migrate on startup (ConnectAndMigrate).
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/articles-api/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ repository.Store = (*DB)(nil)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the same
// repository code runs on a pool or inside a test transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB implements repository.Store.
type DB struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *DB {
	return &DB{db: pool, pool: pool}
}

// NewWithDBTX runs the repository against any DBTX, typically a transaction
// that a test rolls back. Ping and Close are no-ops without a pool.
func NewWithDBTX(db DBTX) *DB {
	return &DB{db: db}
}

func (db *DB) Ping(ctx context.Context) error {
	if db.pool == nil {
		return nil
	}
	return db.pool.Ping(ctx)
}

func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// Migrate applies the embedded migrations. dsn is in postgres:// form.
func Migrate(dsn string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: reading migrations: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance(
		"iofs",
		source,
		// golang-migrate only recognises the pgx5:// scheme for the pgx driver.
		strings.NewReplacer(
			"postgres://", "pgx5://",
			"postgresql://", "pgx5://",
		).Replace(dsn),
	)
	if err != nil {
		return fmt.Errorf("postgres: preparing migrator: %w", err)
	}
	defer migrator.Close() //nolint:errcheck

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: applying migrations: %w", err)
	}

	return nil
}

// Connect opens a pool and verifies the server is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}
	return pool, nil
}

// ConnectAndMigrate migrates the schema and returns a ready store.
func ConnectAndMigrate(ctx context.Context, dsn string) (*DB, error) {
	if err := Migrate(dsn); err != nil {
		return nil, err
	}

	pool, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return New(pool), nil
}

// IsDSN reports whether dsn names a Postgres database rather than a SQLite path.
func IsDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func dollar(n int) string { return "$" + strconv.Itoa(n) }
