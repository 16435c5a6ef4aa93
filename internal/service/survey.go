package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

// Answer sets the onboarding survey accepts.
var (
	EducationLevels = []string{
		"High School", "Some College", "Bachelors Degree", "Masters Degree", "PhD", "Self-Taught", "Other",
	}

	Industries = []string{
		"Technology & Software", "Artificial Intelligence & ML", "Finance & Banking",
		"Healthcare & Medical", "E-commerce & Retail", "Education & Learning", "Product Management",
		"Consulting & Services", "Marketing & Advertising", "Operations & Supply Chain",
		"Data Science & Analytics", "Design & Creative", "Startup Founder",
		"Government & Public Sector", "Non-profit", "Transportation & Logistics",
		"Real Estate & Property", "Manufacturing", "Agriculture & Food", "Media & Entertainment",
		"Legal Services", "Hospitality & Tourism", "Human Resources",
		"Sales & Business Development", "Research & Development", "Quality Assurance",
		"Customer Support", "IT Infrastructure", "Other",
	}

	Strengths = []string{
		"Leadership & Management", "Problem Solving", "Coding & Development", "Design Thinking",
		"Storytelling & Communication", "Data Analysis", "Marketing Strategy",
		"Technical Communication", "Teamwork & Collaboration",
	}

	LearningPreferences = []string{"trial-error", "reading", "both"}
)

const (
	minStrengthAreas   = 3
	maxMissionFocusLen = 100
	maxSurveyFieldLen  = 1000
)

var fullNamePattern = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)

// SurveyInput is the body of POST /api/survey.
type SurveyInput struct {
	FullName           string   `json:"fullName"`
	EducationLevel     string   `json:"educationLevel"`
	Industry           string   `json:"industry"`
	MissionFocus       []string `json:"missionFocus"`
	StrengthAreas      []string `json:"strengthAreas"`
	LearningPreference string   `json:"learningPreference"`
	PortfolioURL       string   `json:"portfolioUrl"`
	ExperienceSummary  string   `json:"experienceSummary"`
}

// validate checks fields in form order and reports the first problem.
func (in SurveyInput) validate() error {
	name := strings.TrimSpace(in.FullName)
	switch {
	case name == "":
		return apperror.ValidationFailed("fullName", "Name is required")
	case utf8.RuneCountInString(name) < 2:
		return apperror.ValidationFailed("fullName", "Name must be at least 2 characters")
	case utf8.RuneCountInString(name) > 50:
		return apperror.ValidationFailed("fullName", "Name must be under 50 characters")
	case !fullNamePattern.MatchString(name):
		return apperror.ValidationFailed("fullName", "Name contains invalid characters")
	}

	if !slices.Contains(EducationLevels, in.EducationLevel) {
		return apperror.ValidationFailed("educationLevel", "Invalid education level")
	}
	if !slices.Contains(Industries, in.Industry) {
		return apperror.ValidationFailed("industry", "Invalid industry")
	}

	if len(in.MissionFocus) == 0 {
		return apperror.ValidationFailed("missionFocus", "Please select at least 1 mission focus")
	}
	for _, f := range in.MissionFocus {
		if strings.TrimSpace(f) == "" || len(f) > maxMissionFocusLen {
			return apperror.ValidationFailed("missionFocus", "Invalid mission focus options")
		}
	}

	switch {
	case len(in.StrengthAreas) < minStrengthAreas:
		return apperror.ValidationFailed("strengthAreas", "Please select at least 3 strengths")
	case len(in.StrengthAreas) > len(Strengths):
		return apperror.ValidationFailed("strengthAreas", "Please select no more than 9 strengths")
	}
	for _, s := range in.StrengthAreas {
		if !slices.Contains(Strengths, s) {
			return apperror.ValidationFailed("strengthAreas", "Invalid strength selections")
		}
	}

	if !slices.Contains(LearningPreferences, in.LearningPreference) {
		return apperror.ValidationFailed("learningPreference", "Invalid learning preference")
	}

	if raw := strings.TrimSpace(in.PortfolioURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return apperror.ValidationFailed("portfolioUrl", "Invalid URL format")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return apperror.ValidationFailed("portfolioUrl", "URL must use HTTP or HTTPS")
		}
	}
	return nil
}

// sanitize trims and caps free text.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxSurveyFieldLen {
		s = string([]rune(s)[:maxSurveyFieldLen])
	}
	return s
}

func optional(s string) *string {
	s = sanitize(s)
	if s == "" {
		return nil
	}
	return &s
}

// SurveyService stores onboarding surveys and flips the user's onboarding
// flags.
type SurveyService struct {
	surveys repository.SurveyRepository
	users   repository.UserRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewSurveyService(surveys repository.SurveyRepository, users repository.UserRepository, logger *slog.Logger) *SurveyService {
	return &SurveyService{surveys: surveys, users: users, logger: logger, now: time.Now}
}

// Submit validates and stores the survey, then marks the user onboarded.
//
// A principal that only exists in the session authority gets its profile
// row created first. Failing to update the onboarding flags is logged and
// does not fail the call: the survey itself is already stored.
func (s *SurveyService) Submit(ctx context.Context, p *model.Principal, in SurveyInput) (*model.SurveyStatus, error) {
	if p == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if err := s.ensureProfile(ctx, p); err != nil {
		return nil, err
	}

	survey := &model.Survey{
		UserID:             p.ID,
		FullName:           sanitize(in.FullName),
		EducationLevel:     in.EducationLevel,
		Industry:           in.Industry,
		MissionFocus:       sanitizeAll(in.MissionFocus),
		StrengthAreas:      slices.Clone(in.StrengthAreas),
		LearningPreference: in.LearningPreference,
		PortfolioURL:       optional(in.PortfolioURL),
		ExperienceSummary:  optional(in.ExperienceSummary),
	}
	if err := s.surveys.CreateSurvey(ctx, survey); err != nil {
		s.logger.Error("failed to store survey",
			slog.String("userID", p.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing survey: %w", err)
	}

	completedAt := s.now().UTC()
	if err := s.users.CompleteOnboarding(ctx, p.ID, completedAt); err != nil {
		s.logger.Warn("survey stored but onboarding flags not updated",
			slog.String("userID", p.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("survey submitted",
		slog.String("userID", p.ID),
		slog.String("industry", survey.Industry),
	)

	return &model.SurveyStatus{
		UserID:       p.ID,
		Completed:    true,
		Onboarded:    true,
		LastModified: &completedAt,
		Survey:       survey,
	}, nil
}

// Status reports whether the user has finished onboarding, with the newest
// survey when there is one.
func (s *SurveyService) Status(ctx context.Context, p *model.Principal) (*model.SurveyStatus, error) {
	if p == nil {
		return nil, apperror.Unauthorized("authentication required")
	}

	status := &model.SurveyStatus{
		UserID:       p.ID,
		Onboarded:    p.Onboarded,
		LastModified: p.SurveyCompletedAt,
	}

	survey, err := s.surveys.GetLatestSurvey(ctx, p.ID)
	switch {
	case err == nil:
		status.Completed = true
		status.Survey = survey
		if status.LastModified == nil || survey.CreatedAt.After(*status.LastModified) {
			created := survey.CreatedAt
			status.LastModified = &created
		}
	case errors.Is(err, apperror.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading survey: %w", err)
	}
	return status, nil
}

func (s *SurveyService) ensureProfile(ctx context.Context, p *model.Principal) error {
	_, err := s.users.GetUserByID(ctx, p.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("loading profile: %w", err)
	}

	u := &model.User{
		ID:           p.ID,
		Email:        p.Email,
		Name:         p.Name,
		IsRecruiter:  p.IsRecruiter,
		ProfileImage: p.ProfileImage,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	s.logger.Info("profile row created for session user", slog.String("userID", p.ID))
	return nil
}

func sanitizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = sanitize(s)
	}
	return out
}
