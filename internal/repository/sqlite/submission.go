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
)

const submissionColumns = `id, user_id, mission_id, submission_text, code, language, tab_switch_count,
	status, grading, velric_score, created_at, updated_at`

// CreateSubmission stores a new submission with status "submitted" and
// fills in its xid and timestamps.
func (db *DB) CreateSubmission(ctx context.Context, s *model.Submission) error {
	s.ID = xid.New().String()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = model.StatusSubmitted
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO submissions (id, user_id, mission_id, submission_text, code, language,
			tab_switch_count, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.MissionID, s.SubmissionText, s.Code, s.Language,
		s.TabSwitchCount, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("missionId", "mission or user does not exist")
		}
		return fmt.Errorf("sqlite: creating submission: %w", err)
	}
	return nil
}

func (db *DB) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	s, err := scanSubmission(db.conn.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("submission", id)
		}
		return nil, fmt.Errorf("sqlite: getting submission %s: %w", id, err)
	}
	return s, nil
}

// SaveGrading stores the grading as JSON and marks the submission graded.
func (db *DB) SaveGrading(ctx context.Context, id string, grading model.Grading, velricScore float64) error {
	encoded, err := json.Marshal(grading)
	if err != nil {
		return fmt.Errorf("sqlite: encoding grading: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE submissions SET grading = ?, velric_score = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(encoded), velricScore, model.StatusGraded, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving grading for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("submission", id)
	}
	return nil
}

// ListGradedSubmissionsByUser returns graded submissions oldest first, the
// order the score weighting expects.
func (db *DB) ListGradedSubmissionsByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE user_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC`,
		userID, model.StatusGraded,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing graded submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning submission row: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating submissions: %w", err)
	}
	return out, nil
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	var (
		s       model.Submission
		grading sql.NullString
		score   sql.NullFloat64
	)
	err := row.Scan(&s.ID, &s.UserID, &s.MissionID, &s.SubmissionText, &s.Code, &s.Language,
		&s.TabSwitchCount, &s.Status, &grading, &score, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if grading.Valid && grading.String != "" {
		var g model.Grading
		if err := json.Unmarshal([]byte(grading.String), &g); err != nil {
			return nil, fmt.Errorf("decoding grading of submission %s: %w", s.ID, err)
		}
		s.Grading = &g
	}
	if score.Valid {
		s.VelricScore = &score.Float64
	}
	return &s, nil
}
