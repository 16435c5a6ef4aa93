package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
)

const userColumns = `id, email, name, password_hash, onboarded, is_recruiter, created_at, updated_at,
	survey_completed_at, profile_complete, profile_image,
	google_access_token, google_refresh_token, google_token_expires_at, overall_velric_score`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                                        model.User
		name, image, googleAccess, googleRefresh sql.NullString
		surveyCompletedAt, googleExpiresAt       sql.NullTime
		velricScore                              sql.NullFloat64
	)
	err := row.Scan(
		&u.ID, &u.Email, &name, &u.PasswordHash, &u.Onboarded, &u.IsRecruiter, &u.CreatedAt, &u.UpdatedAt,
		&surveyCompletedAt, &u.ProfileComplete, &image,
		&googleAccess, &googleRefresh, &googleExpiresAt, &velricScore,
	)
	if err != nil {
		return nil, err
	}
	u.Name = nullString(name)
	u.ProfileImage = nullString(image)
	u.GoogleAccessToken = nullString(googleAccess)
	u.GoogleRefreshToken = nullString(googleRefresh)
	u.SurveyCompletedAt = nullTime(surveyCompletedAt)
	u.GoogleTokenExpiresAt = nullTime(googleExpiresAt)
	if velricScore.Valid {
		u.OverallVelricScore = &velricScore.Float64
	}
	return &u, nil
}

// CreateUser inserts a new account. A UUID is generated when user.ID is empty.
// Returns apperror.ErrConflict when the email is already registered.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.TrimSpace(user.Email)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, onboarded, is_recruiter, created_at, updated_at,
			survey_completed_at, profile_complete, profile_image,
			google_access_token, google_refresh_token, google_token_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Onboarded, user.IsRecruiter,
		user.CreatedAt, user.UpdatedAt, user.SurveyCompletedAt, user.ProfileComplete, user.ProfileImage,
		user.GoogleAccessToken, user.GoogleRefreshToken, user.GoogleTokenExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail matches case-insensitively (the column is COLLATE NOCASE).
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// GetUserByGoogleAccessToken finds the row whose stored Google access token
// equals token exactly.
func (db *DB) GetUserByGoogleAccessToken(ctx context.Context, token string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_access_token = ? LIMIT 1`, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", "google access token")
		}
		return nil, fmt.Errorf("sqlite: getting user by google token: %w", err)
	}
	return u, nil
}

// UpdateGoogleAccessToken overwrites the stored access token only.
func (db *DB) UpdateGoogleAccessToken(ctx context.Context, id, token string) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET google_access_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC(), id)
}

// UpdateGoogleTokens stores the full token set from an OAuth exchange. An
// empty refresh token keeps the stored one; Google only returns it on the
// first consent.
func (db *DB) UpdateGoogleTokens(ctx context.Context, id string, tokens model.GoogleTokens) error {
	var expiresAt *time.Time
	if !tokens.ExpiresAt.IsZero() {
		t := tokens.ExpiresAt.UTC()
		expiresAt = &t
	}
	return db.updateUser(ctx, id,
		`UPDATE users SET google_access_token = ?,
			google_refresh_token = COALESCE(NULLIF(?, ''), google_refresh_token),
			google_token_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		tokens.AccessToken, tokens.RefreshToken, expiresAt, time.Now().UTC(), id)
}

func (db *DB) UpdateVelricScore(ctx context.Context, id string, score float64) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET overall_velric_score = ?, updated_at = ? WHERE id = ?`,
		score, time.Now().UTC(), id)
}

// CompleteOnboarding marks the profile complete as of at.
func (db *DB) CompleteOnboarding(ctx context.Context, id string, at time.Time) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET onboarded = 1, profile_complete = 1, survey_completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id)
}

func (db *DB) updateUser(ctx context.Context, id, query string, args ...any) error {
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking update of user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
