package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

const missionColumns = `id, title, description, field, difficulty, skills, created_at`

func (db *DB) CreateMission(ctx context.Context, mission *model.Mission) error {
	if mission.ID == "" {
		mission.ID = xid.New().String()
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO missions (id, title, description, field, difficulty, skills)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		mission.ID, mission.Title, mission.Description, mission.Field, mission.Difficulty,
		nonNilStrings(mission.Skills),
	).Scan(&mission.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == uniqueViolation {
			return apperror.Conflict("mission", mission.ID)
		}
		return fmt.Errorf("postgres: creating mission: %w", err)
	}
	return nil
}

func (db *DB) GetMissionByID(ctx context.Context, id string) (*model.Mission, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: getting mission %s: %w", id, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[model.Mission])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("mission", id)
		}
		return nil, fmt.Errorf("postgres: getting mission %s: %w", id, err)
	}
	return &m, nil
}

// ListMissions returns the catalog oldest first. Callers clamp the page.
func (db *DB) ListMissions(ctx context.Context, opts repository.ListOptions) ([]model.Mission, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+missionColumns+` FROM missions
		 ORDER BY created_at ASC, id ASC
		 LIMIT $1 OFFSET $2`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing missions: %w", err)
	}
	missions, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.Mission])
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning missions: %w", err)
	}
	return missions, nil
}
