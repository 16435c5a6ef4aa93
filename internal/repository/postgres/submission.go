package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
)

const submissionColumns = `id, user_id, mission_id, submission_text, code, language, tab_switch_count,
	status, grading, velric_score, created_at, updated_at`

func (db *DB) CreateSubmission(ctx context.Context, s *model.Submission) error {
	s.ID = xid.New().String()
	if s.Status == "" {
		s.Status = model.StatusSubmitted
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO submissions (id, user_id, mission_id, submission_text, code, language,
			tab_switch_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		s.ID, s.UserID, s.MissionID, s.SubmissionText, s.Code, s.Language, s.TabSwitchCount, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == foreignKeyViolation {
			return apperror.ValidationFailed("missionId", "mission or user does not exist")
		}
		return fmt.Errorf("postgres: creating submission: %w", err)
	}
	return nil
}

func (db *DB) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	s, err := scanSubmission(db.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("submission", id)
		}
		return nil, fmt.Errorf("postgres: getting submission %s: %w", id, err)
	}
	return s, nil
}

func (db *DB) SaveGrading(ctx context.Context, id string, grading model.Grading, velricScore float64) error {
	encoded, err := json.Marshal(grading)
	if err != nil {
		return fmt.Errorf("postgres: encoding grading: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE submissions SET grading = $1, velric_score = $2, status = $3, updated_at = now()
		 WHERE id = $4`,
		encoded, velricScore, model.StatusGraded, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: saving grading for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("submission", id)
	}
	return nil
}

// ListGradedSubmissionsByUser returns graded submissions oldest first.
func (db *DB) ListGradedSubmissionsByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at ASC, id ASC`,
		userID, model.StatusGraded,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing graded submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning submission row: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating submissions: %w", err)
	}
	return out, nil
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	var (
		s       model.Submission
		grading []byte
	)
	err := row.Scan(&s.ID, &s.UserID, &s.MissionID, &s.SubmissionText, &s.Code, &s.Language,
		&s.TabSwitchCount, &s.Status, &grading, &s.VelricScore, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(grading) > 0 {
		var g model.Grading
		if err := json.Unmarshal(grading, &g); err != nil {
			return nil, fmt.Errorf("decoding grading of submission %s: %w", s.ID, err)
		}
		s.Grading = &g
	}
	return &s, nil
}
