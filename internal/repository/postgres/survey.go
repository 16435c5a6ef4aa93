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

const surveyColumns = `id, user_id, full_name, education_level, industry, mission_focus, strength_areas,
	learning_preference, portfolio_url, experience_summary, created_at`

// CreateSurvey inserts s and fills in its id and the database timestamp.
func (db *DB) CreateSurvey(ctx context.Context, s *model.Survey) error {
	s.ID = xid.New().String()

	err := db.pool.QueryRow(ctx,
		`INSERT INTO survey_responses (id, user_id, full_name, education_level, industry,
			mission_focus, strength_areas, learning_preference, portfolio_url, experience_summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		s.ID, s.UserID, s.FullName, s.EducationLevel, s.Industry,
		nonNilStrings(s.MissionFocus), nonNilStrings(s.StrengthAreas),
		s.LearningPreference, s.PortfolioURL, s.ExperienceSummary,
	).Scan(&s.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == foreignKeyViolation {
			return apperror.NotFound("user", s.UserID)
		}
		return fmt.Errorf("postgres: creating survey: %w", err)
	}
	return nil
}

func (db *DB) GetLatestSurvey(ctx context.Context, userID string) (*model.Survey, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+surveyColumns+` FROM survey_responses
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: getting survey of %s: %w", userID, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[model.Survey])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("survey for user", userID)
		}
		return nil, fmt.Errorf("postgres: getting survey of %s: %w", userID, err)
	}
	return &s, nil
}

// ListCandidates joins each candidate with their newest survey through a
// lateral subquery.
func (db *DB) ListCandidates(ctx context.Context, f repository.CandidateFilter) ([]model.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT u.id, u.name, u.email, u.onboarded, u.profile_complete, u.overall_velric_score,
			s.industry, s.education_level, s.learning_preference, s.experience_summary,
			s.mission_focus, s.strength_areas
		 FROM users u
		 LEFT JOIN LATERAL (
			SELECT * FROM survey_responses
			WHERE user_id = u.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		 ) s ON TRUE
		 WHERE NOT u.is_recruiter
		   AND ($1 = '' OR u.email ILIKE $2 OR u.name ILIKE $2)
		   AND ($3::double precision IS NULL OR COALESCE(u.overall_velric_score, 0) >= $3)
		 ORDER BY COALESCE(u.overall_velric_score, -1) DESC, u.created_at ASC, u.id ASC
		 LIMIT $4 OFFSET $5`,
		f.Search, repository.ContainsPattern(f.Search), f.MinScore, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing candidates: %w", err)
	}
	candidates, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.Candidate])
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning candidates: %w", err)
	}
	return candidates, nil
}
