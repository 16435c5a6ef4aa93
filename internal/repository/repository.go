// Package repository declares the storage interfaces the service and auth
// layers depend on. Implementations live in the sqlite and postgres
// subpackages; both return apperror.NotFound for missing rows.
package repository

import (
	"context"
	"time"

	"github.com/velric/velric-server/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// CandidateFilter narrows the recruiter candidate listing. Search matches
// name or email case-insensitively; a nil MinScore disables the score
// filter, and users without a score count as 0.
type CandidateFilter struct {
	Search   string
	MinScore *float64
	ListOptions
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleAccessToken(ctx context.Context, token string) (*model.User, error)
	UpdateGoogleAccessToken(ctx context.Context, id, token string) error
	UpdateGoogleTokens(ctx context.Context, id string, tokens model.GoogleTokens) error
	UpdateVelricScore(ctx context.Context, id string, score float64) error
	// CompleteOnboarding sets onboarded, profile_complete and
	// survey_completed_at in one write.
	CompleteOnboarding(ctx context.Context, id string, at time.Time) error
	// ListCandidates returns non-recruiter users, best score first, each
	// with their newest survey.
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error)
}

type MissionRepository interface {
	CreateMission(ctx context.Context, mission *model.Mission) error
	GetMissionByID(ctx context.Context, id string) (*model.Mission, error)
	ListMissions(ctx context.Context, opts ListOptions) ([]model.Mission, error)
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, submission *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// SaveGrading stores the grading and score and flips the status to graded.
	SaveGrading(ctx context.Context, id string, grading model.Grading, velricScore float64) error
	ListGradedSubmissionsByUser(ctx context.Context, userID string) ([]model.Submission, error)
}

type SurveyRepository interface {
	CreateSurvey(ctx context.Context, survey *model.Survey) error
	// GetLatestSurvey returns apperror.ErrNotFound when the user has none.
	GetLatestSurvey(ctx context.Context, userID string) (*model.Survey, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	UserRepository
	MissionRepository
	SubmissionRepository
	SurveyRepository
	Close() error
}
