// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the Go binary as a single file.
// No separate database server to install or manage, which makes it the default
// store for local development and tests (use ":memory:" for an in-memory DB).
// Production deployments can switch to Postgres by pointing DATABASE_DSN at a
// postgres:// URL (see internal/repository/postgres).
//
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no CGo,
// no C compiler, cross-compiles everywhere Go does.
//
// TIMESTAMPS:
// Every time.Time is converted to UTC before it is written or bound as a query
// argument. The driver stores DATETIME values as text, so a single zone keeps
// text order identical to chronological order for the publication_date range
// filters and ORDER BY.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/articles-api/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
// It implements both repository.ArticleRepository and repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/articles.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
//
// sql.Open() does NOT actually open a connection; it just creates a pool manager.
// Ping forces an immediate connection so a bad path fails here, not on the first query.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database, and
	// SQLite allows one writer at a time anyway. A single connection keeps the
	// pool pointed at the one database the migrations ran against.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite; articles.author_id relies on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it runs on every start. The Postgres store uses golang-migrate with the
// equivalent versioned SQL files instead.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			username   TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			title            VARCHAR(255) NOT NULL,
			description      TEXT NOT NULL,
			publication_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			author_id        INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_articles_author ON articles(author_id);
		CREATE INDEX IF NOT EXISTS idx_articles_publication_date ON articles(publication_date);
	`)
	if err != nil {
		return fmt.Errorf("creating articles table: %w", err)
	}

	return nil
}

// questionMark is the placeholder style SQLite understands.
func questionMark(int) string { return "?" }
