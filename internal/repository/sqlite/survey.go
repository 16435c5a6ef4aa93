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

const surveyColumns = `id, user_id, full_name, education_level, industry, mission_focus, strength_areas,
	learning_preference, portfolio_url, experience_summary, created_at`

// CreateSurvey stores a survey with a fresh xid. The list answers are kept
// as JSON arrays.
func (db *DB) CreateSurvey(ctx context.Context, s *model.Survey) error {
	s.ID = xid.New().String()
	s.CreatedAt = time.Now().UTC()

	focus, err := json.Marshal(nonNilStrings(s.MissionFocus))
	if err != nil {
		return fmt.Errorf("sqlite: encoding mission focus: %w", err)
	}
	strengths, err := json.Marshal(nonNilStrings(s.StrengthAreas))
	if err != nil {
		return fmt.Errorf("sqlite: encoding strength areas: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO survey_responses (`+surveyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.FullName, s.EducationLevel, s.Industry, string(focus), string(strengths),
		s.LearningPreference, s.PortfolioURL, s.ExperienceSummary, s.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", s.UserID)
		}
		return fmt.Errorf("sqlite: creating survey: %w", err)
	}
	return nil
}

func (db *DB) GetLatestSurvey(ctx context.Context, userID string) (*model.Survey, error) {
	var (
		s                     model.Survey
		focus, strengths      string
		portfolio, experience sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+surveyColumns+` FROM survey_responses
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, userID,
	).Scan(&s.ID, &s.UserID, &s.FullName, &s.EducationLevel, &s.Industry, &focus, &strengths,
		&s.LearningPreference, &portfolio, &experience, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("survey for user", userID)
		}
		return nil, fmt.Errorf("sqlite: getting survey of %s: %w", userID, err)
	}
	if err := decodeStrings(focus, &s.MissionFocus); err != nil {
		return nil, fmt.Errorf("sqlite: decoding mission focus: %w", err)
	}
	if err := decodeStrings(strengths, &s.StrengthAreas); err != nil {
		return nil, fmt.Errorf("sqlite: decoding strength areas: %w", err)
	}
	s.PortfolioURL = nullString(portfolio)
	s.ExperienceSummary = nullString(experience)
	return &s, nil
}

// ListCandidates joins each candidate with their newest survey row.
func (db *DB) ListCandidates(ctx context.Context, f repository.CandidateFilter) ([]model.Candidate, error) {
	var minScore sql.NullFloat64
	if f.MinScore != nil {
		minScore = sql.NullFloat64{Float64: *f.MinScore, Valid: true}
	}

	pattern := repository.ContainsPattern(f.Search)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.onboarded, u.profile_complete, u.overall_velric_score,
			s.industry, s.education_level, s.learning_preference, s.experience_summary,
			s.mission_focus, s.strength_areas
		 FROM users u
		 LEFT JOIN survey_responses s ON s.id = (
			SELECT id FROM survey_responses
			WHERE user_id = u.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1)
		 WHERE u.is_recruiter = 0
		   AND (? = '' OR u.email LIKE ? ESCAPE '\' OR u.name LIKE ? ESCAPE '\')
		   AND (? IS NULL OR COALESCE(u.overall_velric_score, 0) >= ?)
		 ORDER BY COALESCE(u.overall_velric_score, -1) DESC, u.created_at ASC, u.id ASC
		 LIMIT ? OFFSET ?`,
		f.Search, pattern, pattern, minScore, minScore, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]model.Candidate, 0, f.Limit)
	for rows.Next() {
		var (
			c                                        model.Candidate
			name, industry, education, learning, exp sql.NullString
			focus, strengths                         sql.NullString
			score                                    sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &name, &c.Email, &c.Onboarded, &c.ProfileComplete, &score,
			&industry, &education, &learning, &exp, &focus, &strengths); err != nil {
			return nil, fmt.Errorf("sqlite: scanning candidate row: %w", err)
		}
		c.Name = nullString(name)
		c.Industry = nullString(industry)
		c.EducationLevel = nullString(education)
		c.LearningPreference = nullString(learning)
		c.ExperienceSummary = nullString(exp)
		if score.Valid {
			c.VelricScore = &score.Float64
		}
		if focus.Valid {
			if err := decodeStrings(focus.String, &c.MissionFocus); err != nil {
				return nil, fmt.Errorf("sqlite: decoding mission focus of %s: %w", c.ID, err)
			}
		}
		if strengths.Valid {
			if err := decodeStrings(strengths.String, &c.StrengthAreas); err != nil {
				return nil, fmt.Errorf("sqlite: decoding strength areas of %s: %w", c.ID, err)
			}
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating candidates: %w", err)
	}
	return candidates, nil
}

func decodeStrings(raw string, dst *[]string) error {
	return json.Unmarshal([]byte(raw), dst)
}
