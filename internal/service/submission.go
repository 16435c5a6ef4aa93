package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

// DefaultLanguage is assumed when a submission names none.
const DefaultLanguage = "python"

// SupportedLanguages are the editor languages a submission may carry.
var SupportedLanguages = map[string]bool{
	"python": true, "javascript": true, "typescript": true, "java": true, "cpp": true,
	"sql": true, "go": true, "rust": true, "csharp": true,
}

// SubmitInput is the body of POST /api/submissions. UserID is optional and
// must match the authenticated principal when present.
type SubmitInput struct {
	SubmissionText string `json:"submissionText"`
	Code           string `json:"code"`
	Language       string `json:"language"`
	MissionID      string `json:"missionId"`
	UserID         string `json:"userId"`
	TabSwitchCount int    `json:"tabSwitchCount"`
}

type SubmissionService struct {
	submissions repository.SubmissionRepository
	missions    repository.MissionRepository
	users       repository.UserRepository
	grader      Grader
	logger      *slog.Logger
}

func NewSubmissionService(
	submissions repository.SubmissionRepository,
	missions repository.MissionRepository,
	users repository.UserRepository,
	grader Grader,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissions: submissions,
		missions:    missions,
		users:       users,
		grader:      grader,
		logger:      logger,
	}
}

// Submit stores the submission, then grades it and refreshes the user's
// Velric score. Grading problems are logged and do not fail the call; the
// stored submission is returned either way.
func (s *SubmissionService) Submit(ctx context.Context, p *model.Principal, in SubmitInput) (*model.Submission, error) {
	if strings.TrimSpace(in.SubmissionText) == "" {
		return nil, apperror.ValidationFailed("submissionText", "submission text is required")
	}
	if len(in.SubmissionText) > MaxSubmissionTextLength {
		return nil, apperror.ValidationFailed("submissionText",
			fmt.Sprintf("submission text must be %d characters or less", MaxSubmissionTextLength))
	}
	if len(in.Code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	if in.TabSwitchCount < 0 {
		return nil, apperror.ValidationFailed("tabSwitchCount", "tab switch count cannot be negative")
	}
	if in.UserID != "" && in.UserID != p.ID {
		return nil, apperror.Forbidden("cannot submit on behalf of another user")
	}

	lang := strings.ToLower(strings.TrimSpace(in.Language))
	if lang == "" {
		lang = DefaultLanguage
	}
	if !SupportedLanguages[lang] {
		return nil, apperror.ValidationFailed("language", fmt.Sprintf("unsupported language %q", lang))
	}

	missionID := strings.TrimSpace(in.MissionID)
	if missionID == "" {
		return nil, apperror.ValidationFailed("missionId", "mission ID is required")
	}
	mission, err := s.missions.GetMissionByID(ctx, missionID)
	if err != nil {
		return nil, err
	}

	sub := &model.Submission{
		UserID:         p.ID,
		MissionID:      mission.ID,
		SubmissionText: in.SubmissionText,
		Code:           in.Code,
		Language:       lang,
		TabSwitchCount: in.TabSwitchCount,
	}
	if err := s.submissions.CreateSubmission(ctx, sub); err != nil {
		s.logger.Error("failed to store submission",
			slog.String("userID", p.ID),
			slog.String("missionID", mission.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing submission: %w", err)
	}

	s.logger.Info("submission stored",
		slog.String("id", sub.ID),
		slog.String("missionID", mission.ID),
		slog.Int("tabSwitchCount", sub.TabSwitchCount),
	)

	if err := s.grade(ctx, sub, mission); err != nil {
		s.logger.Error("failed to grade submission",
			slog.String("id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
	return sub, nil
}

func (s *SubmissionService) grade(ctx context.Context, sub *model.Submission, mission *model.Mission) error {
	grading, err := s.grader.Grade(ctx, GradeInput{
		Text:      sub.SubmissionText,
		Code:      sub.Code,
		Technical: mission.IsTechnical(),
	})
	if err != nil {
		return fmt.Errorf("grading: %w", err)
	}

	previous, err := s.submissions.ListGradedSubmissionsByUser(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("listing graded submissions: %w", err)
	}
	scores := make([]int, 0, len(previous)+1)
	for _, prev := range previous {
		if prev.Grading != nil {
			scores = append(scores, prev.Grading.OverallScore)
		} else {
			scores = append(scores, 0)
		}
	}
	scores = append(scores, grading.OverallScore)
	velric := VelricScore(scores)

	if err := s.submissions.SaveGrading(ctx, sub.ID, *grading, velric); err != nil {
		return fmt.Errorf("saving grading: %w", err)
	}
	if err := s.users.UpdateVelricScore(ctx, sub.UserID, velric); err != nil {
		return fmt.Errorf("updating velric score: %w", err)
	}

	sub.Status = model.StatusGraded
	sub.Grading = grading
	sub.VelricScore = &velric
	return nil
}

// Feedback returns a submission with its tab-switch deduction and the
// owner's overall Velric score. Only the owner or a recruiter may read it.
func (s *SubmissionService) Feedback(ctx context.Context, p *model.Principal, id string) (*model.Feedback, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "submission ID is required")
	}

	sub, err := s.submissions.GetSubmissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != p.ID && !p.IsRecruiter {
		return nil, apperror.Forbidden("you do not have access to this submission")
	}

	fb := &model.Feedback{
		Submission:         *sub,
		TabSwitchDeduction: TabSwitchDeduction(sub.TabSwitchCount),
	}

	owner, err := s.users.GetUserByID(ctx, sub.UserID)
	switch {
	case err == nil:
		fb.UserVelricScore = owner.OverallVelricScore
	case errors.Is(err, apperror.ErrNotFound):
	default:
		return nil, fmt.Errorf("fetching submission owner: %w", err)
	}
	return fb, nil
}
