package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

// CreateMission inserts a catalog entry. An xid is generated when mission.ID
// is empty. Skills are stored as a JSON array.
func (db *DB) CreateMission(ctx context.Context, mission *model.Mission) error {
	if mission.ID == "" {
		mission.ID = xid.New().String()
	}
	mission.CreatedAt = time.Now().UTC()

	skills, err := json.Marshal(nonNilStrings(mission.Skills))
	if err != nil {
		return fmt.Errorf("sqlite: encoding mission skills: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO missions (id, title, description, field, difficulty, skills, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mission.ID, mission.Title, mission.Description, mission.Field, mission.Difficulty,
		string(skills), mission.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("mission", mission.ID)
		}
		return fmt.Errorf("sqlite: creating mission: %w", err)
	}
	return nil
}

// GetMissionByID returns apperror.ErrNotFound for unknown ids.
func (db *DB) GetMissionByID(ctx context.Context, id string) (*model.Mission, error) {
	m, err := scanMission(db.conn.QueryRowContext(ctx,
		`SELECT id, title, description, field, difficulty, skills, created_at
		 FROM missions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("mission", id)
		}
		return nil, fmt.Errorf("sqlite: getting mission %s: %w", id, err)
	}
	return m, nil
}

// ListMissions returns the catalog oldest first. Callers clamp the page.
func (db *DB) ListMissions(ctx context.Context, opts repository.ListOptions) ([]model.Mission, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, description, field, difficulty, skills, created_at
		 FROM missions
		 ORDER BY created_at ASC, id ASC
		 LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing missions: %w", err)
	}
	defer rows.Close()

	missions := make([]model.Mission, 0, opts.Limit)
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning mission row: %w", err)
		}
		missions = append(missions, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating missions: %w", err)
	}
	return missions, nil
}

func scanMission(row rowScanner) (*model.Mission, error) {
	var (
		m      model.Mission
		skills string
	)
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Field, &m.Difficulty, &skills, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(skills), &m.Skills); err != nil {
		return nil, fmt.Errorf("decoding skills of mission %s: %w", m.ID, err)
	}
	return &m, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
