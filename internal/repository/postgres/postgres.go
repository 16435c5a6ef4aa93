// Package postgres implements the repository interfaces on PostgreSQL for
// deployments that outgrow the single-file SQLite backend.
//
// Queries go through a pgxpool. Schema changes are goose migrations
// embedded in the binary and applied by Migrate.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/velric/velric-server/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var _ repository.Store = (*DB)(nil)

type DB struct {
	pool *pgxpool.Pool
}

// New connects, migrates and seeds the mission catalog.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool}

	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.seedMissions(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: seeding missions: %w", err)
	}
	return db, nil
}

// Migrate applies every pending embedded migration.
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("postgres: selecting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("postgres: running migrations: %w", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// seedMissions inserts the static catalog; rows that already exist are left
// alone.
func (db *DB) seedMissions(ctx context.Context) error {
	for _, m := range repository.StaticMissions {
		_, err := db.pool.Exec(ctx,
			`INSERT INTO missions (id, title, description, field, difficulty, skills)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			m.ID, m.Title, m.Description, m.Field, m.Difficulty, nonNilStrings(m.Skills),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
