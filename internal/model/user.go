// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents an account row.
//
// Email is unique and is the join key between an externally issued Google
// identity and the internal row. ID is a UUID so that legacy callers can
// present it directly as a bearer token.
//
// Nullable columns are pointers. The Google token columns are never
// serialised to clients.
type User struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Name                 *string    `json:"name"`
	PasswordHash         string     `json:"-"`
	Onboarded            bool       `json:"onboarded"`
	IsRecruiter          bool       `json:"is_recruiter"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	SurveyCompletedAt    *time.Time `json:"survey_completed_at"`
	ProfileComplete      bool       `json:"profile_complete"`
	ProfileImage         *string    `json:"profile_image"`
	GoogleAccessToken    *string    `json:"-"`
	GoogleRefreshToken   *string    `json:"-"`
	GoogleTokenExpiresAt *time.Time `json:"-"`
	OverallVelricScore   *float64   `json:"overall_velric_score,omitempty"`
}

// Principal is the request-scoped projection of a User handed to route
// handlers after authentication. It is built fresh per request and never
// persisted.
type Principal struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Name              *string    `json:"name"`
	Onboarded         bool       `json:"onboarded"`
	IsRecruiter       bool       `json:"is_recruiter"`
	CreatedAt         time.Time  `json:"created_at"`
	SurveyCompletedAt *time.Time `json:"survey_completed_at"`
	ProfileComplete   bool       `json:"profile_complete"`
	ProfileImage      *string    `json:"profile_image"`
}

// Principal projects the row onto the fields route handlers may see.
func (u *User) Principal() *Principal {
	return &Principal{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		Onboarded:         u.Onboarded,
		IsRecruiter:       u.IsRecruiter,
		CreatedAt:         u.CreatedAt,
		SurveyCompletedAt: u.SurveyCompletedAt,
		ProfileComplete:   u.ProfileComplete,
		ProfileImage:      u.ProfileImage,
	}
}

// GoogleTokens is what the Google OAuth exchange hands back and what gets
// stored on the user row.
type GoogleTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
