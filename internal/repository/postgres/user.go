package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
)

const userColumns = `id, email, name, password_hash, onboarded, is_recruiter, created_at, updated_at,
	survey_completed_at, profile_complete, profile_image,
	google_access_token, google_refresh_token, google_token_expires_at, overall_velric_score`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Onboarded, &u.IsRecruiter, &u.CreatedAt, &u.UpdatedAt,
		&u.SurveyCompletedAt, &u.ProfileComplete, &u.ProfileImage,
		&u.GoogleAccessToken, &u.GoogleRefreshToken, &u.GoogleTokenExpiresAt, &u.OverallVelricScore,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account, generating a UUID when user.ID is empty.
// A second account with the same email (any case) is apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.TrimSpace(user.Email)

	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, password_hash, onboarded, is_recruiter,
			survey_completed_at, profile_complete, profile_image,
			google_access_token, google_refresh_token, google_token_expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Onboarded, user.IsRecruiter,
		user.SurveyCompletedAt, user.ProfileComplete, user.ProfileImage,
		user.GoogleAccessToken, user.GoogleRefreshToken, user.GoogleTokenExpiresAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == uniqueViolation {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("postgres: inserting user %s: %w", user.Email, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, id, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail matches case-insensitively through the lower(email) index.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	return db.getUser(ctx, email, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (db *DB) GetUserByGoogleAccessToken(ctx context.Context, token string) (*model.User, error) {
	return db.getUser(ctx, "google access token",
		`SELECT `+userColumns+` FROM users WHERE google_access_token = $1 LIMIT 1`, token)
}

func (db *DB) getUser(ctx context.Context, key, query string, arg any) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("postgres: getting user: %w", err)
	}
	return u, nil
}

func (db *DB) UpdateGoogleAccessToken(ctx context.Context, id, token string) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET google_access_token = $1, updated_at = now() WHERE id = $2`,
		token, id)
}

// UpdateGoogleTokens keeps the stored refresh token when the new one is
// empty; Google only sends it on first consent.
func (db *DB) UpdateGoogleTokens(ctx context.Context, id string, tokens model.GoogleTokens) error {
	var expiresAt *time.Time
	if !tokens.ExpiresAt.IsZero() {
		t := tokens.ExpiresAt.UTC()
		expiresAt = &t
	}
	return db.updateUser(ctx, id,
		`UPDATE users SET google_access_token = $1,
			google_refresh_token = COALESCE(NULLIF($2, ''), google_refresh_token),
			google_token_expires_at = $3, updated_at = now()
		 WHERE id = $4`,
		tokens.AccessToken, tokens.RefreshToken, expiresAt, id)
}

func (db *DB) UpdateVelricScore(ctx context.Context, id string, score float64) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET overall_velric_score = $1, updated_at = now() WHERE id = $2`,
		score, id)
}

func (db *DB) CompleteOnboarding(ctx context.Context, id string, at time.Time) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET onboarded = TRUE, profile_complete = TRUE, survey_completed_at = $1,
			updated_at = now()
		 WHERE id = $2`,
		at.UTC(), id)
}

func (db *DB) updateUser(ctx context.Context, id, query string, args ...any) error {
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: updating user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
