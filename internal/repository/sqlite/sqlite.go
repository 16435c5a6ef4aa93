// Package sqlite implements the repository interfaces on top of SQLite.
//
// It is the default backend: a single file next to the binary, no server to
// run. modernc.org/sqlite is a pure Go port, so the binary still builds
// without cgo.
//
// Use ":memory:" for tests. An in-memory database lives only as long as its
// connection, so the pool is pinned to one connection in that case.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"

	"github.com/velric/velric-server/internal/repository"
)

// compile-time check that *DB provides every repository
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath, applies pragmas and runs
// the idempotent migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	if err := db.seedMissions(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: seeding missions: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer it right after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database file is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is safe to re-run.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                      TEXT PRIMARY KEY,
			email                   TEXT NOT NULL UNIQUE COLLATE NOCASE,
			name                    TEXT,
			password_hash           TEXT NOT NULL DEFAULT '',
			onboarded               INTEGER NOT NULL DEFAULT 0,
			is_recruiter            INTEGER NOT NULL DEFAULT 0,
			created_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			survey_completed_at     DATETIME,
			profile_complete        INTEGER NOT NULL DEFAULT 0,
			profile_image           TEXT,
			google_access_token     TEXT,
			google_refresh_token    TEXT,
			google_token_expires_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_users_google_access_token ON users(google_access_token);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	if err := db.addColumnIfNotExists("users", "overall_velric_score", "REAL"); err != nil {
		return fmt.Errorf("adding overall_velric_score to users: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS missions (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			field       TEXT NOT NULL DEFAULT '',
			difficulty  TEXT NOT NULL DEFAULT '',
			skills      TEXT NOT NULL DEFAULT '[]',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_missions_created_at ON missions(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating missions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id),
			mission_id       TEXT NOT NULL REFERENCES missions(id),
			submission_text  TEXT NOT NULL,
			code             TEXT NOT NULL DEFAULT '',
			language         TEXT NOT NULL DEFAULT 'python',
			tab_switch_count INTEGER NOT NULL DEFAULT 0,
			status           TEXT NOT NULL DEFAULT 'submitted',
			grading          TEXT,
			velric_score     REAL,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_user_status ON submissions(user_id, status);
	`)
	if err != nil {
		return fmt.Errorf("creating submissions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS survey_responses (
			id                  TEXT PRIMARY KEY,
			user_id             TEXT NOT NULL REFERENCES users(id),
			full_name           TEXT NOT NULL,
			education_level     TEXT NOT NULL,
			industry            TEXT NOT NULL,
			mission_focus       TEXT NOT NULL DEFAULT '[]',
			strength_areas      TEXT NOT NULL DEFAULT '[]',
			learning_preference TEXT NOT NULL,
			portfolio_url       TEXT,
			experience_summary  TEXT,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_survey_responses_user_created ON survey_responses(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating survey_responses table: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ... ADD COLUMN idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// seedMissions inserts the static catalog on first start only.
func (db *DB) seedMissions(ctx context.Context) error {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, m := range repository.StaticMissions {
		mission := m
		if err := db.CreateMission(ctx, &mission); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
