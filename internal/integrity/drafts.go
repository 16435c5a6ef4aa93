package integrity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

// CodeKey is the draft key holding the editor contents for a mission.
func CodeKey(missionID string) string {
	return "interview_" + missionID + "_code"
}

// LanguageKey is the draft key holding the selected language for a mission.
func LanguageKey(missionID string) string {
	return "interview_" + missionID + "_language"
}

// DraftStore is durable key/value storage on the candidate's machine, so an
// attempt survives a reload or a crashed CLI.
type DraftStore interface {
	// Load reports ok=false when the key has never been saved.
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
}

// MemoryDrafts is a DraftStore that lives as long as the process.
type MemoryDrafts struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryDrafts() *MemoryDrafts {
	return &MemoryDrafts{values: make(map[string]string)}
}

func (m *MemoryDrafts) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryDrafts) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// SQLiteDrafts keeps drafts in a single-table SQLite file.
type SQLiteDrafts struct {
	conn *sql.DB
}

// OpenSQLiteDrafts opens or creates the draft file at path.
func OpenSQLiteDrafts(path string) (*SQLiteDrafts, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("integrity: opening draft store: %w", err)
	}
	// One writer at a time; the CLI is the only user of the file.
	conn.SetMaxOpenConns(1)

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("integrity: creating drafts table: %w", err)
	}
	return &SQLiteDrafts{conn: conn}, nil
}

func (s *SQLiteDrafts) Close() error {
	return s.conn.Close()
}

func (s *SQLiteDrafts) Load(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM drafts WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("integrity: loading draft %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteDrafts) Save(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO drafts (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("integrity: saving draft %s: %w", key, err)
	}
	return nil
}
