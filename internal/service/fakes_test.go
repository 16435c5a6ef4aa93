package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// fakeStore implements every repository interface with maps. The *Err
// fields simulate database failures.

type fakeStore struct {
	users       map[string]*model.User
	missions    map[string]*model.Mission
	submissions map[string]*model.Submission
	surveys     []*model.Survey // insertion order, newest last
	order       []string        // submission ids in insertion order
	nextID      int

	createSubmissionErr   error
	saveGradingErr        error
	getUserErr            error
	createSurveyErr       error
	completeOnboardingErr error
	listCandidatesFilter  repository.CandidateFilter
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	f := &fakeStore{
		users:       map[string]*model.User{},
		missions:    map[string]*model.Mission{},
		submissions: map[string]*model.Submission{},
	}
	for _, m := range repository.StaticMissions {
		m := m
		f.missions[m.ID] = &m
	}
	return f
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperror.Conflict("user", u.Email)
		}
	}
	if u.ID == "" {
		u.ID = f.id("user")
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) GetUserByGoogleAccessToken(_ context.Context, token string) (*model.User, error) {
	for _, u := range f.users {
		if u.GoogleAccessToken != nil && *u.GoogleAccessToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", "google access token")
}

func (f *fakeStore) UpdateGoogleAccessToken(_ context.Context, id, token string) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.GoogleAccessToken = &token
	return nil
}

func (f *fakeStore) UpdateGoogleTokens(_ context.Context, id string, t model.GoogleTokens) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.GoogleAccessToken = &t.AccessToken
	if t.RefreshToken != "" {
		u.GoogleRefreshToken = &t.RefreshToken
	}
	return nil
}

func (f *fakeStore) UpdateVelricScore(_ context.Context, id string, score float64) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.OverallVelricScore = &score
	return nil
}

func (f *fakeStore) CompleteOnboarding(_ context.Context, id string, at time.Time) error {
	if f.completeOnboardingErr != nil {
		return f.completeOnboardingErr
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Onboarded = true
	u.ProfileComplete = true
	u.SurveyCompletedAt = &at
	return nil
}

// ListCandidates records the filter and returns non-recruiters by id; the
// SQL ordering and matching are covered by the repository tests.
func (f *fakeStore) ListCandidates(_ context.Context, filter repository.CandidateFilter) ([]model.Candidate, error) {
	f.listCandidatesFilter = filter
	var out []model.Candidate
	for _, u := range f.users {
		if u.IsRecruiter {
			continue
		}
		out = append(out, model.Candidate{ID: u.ID, Email: u.Email, Name: u.Name, VelricScore: u.OverallVelricScore})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateSurvey(_ context.Context, s *model.Survey) error {
	if f.createSurveyErr != nil {
		return f.createSurveyErr
	}
	if _, ok := f.users[s.UserID]; !ok {
		return apperror.NotFound("user", s.UserID)
	}
	s.ID = f.id("survey")
	s.CreatedAt = time.Now().UTC()
	cp := *s
	f.surveys = append(f.surveys, &cp)
	return nil
}

func (f *fakeStore) GetLatestSurvey(_ context.Context, userID string) (*model.Survey, error) {
	for i := len(f.surveys) - 1; i >= 0; i-- {
		if f.surveys[i].UserID == userID {
			cp := *f.surveys[i]
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("survey for user", userID)
}

func (f *fakeStore) CreateMission(_ context.Context, m *model.Mission) error {
	cp := *m
	f.missions[m.ID] = &cp
	return nil
}

func (f *fakeStore) GetMissionByID(_ context.Context, id string) (*model.Mission, error) {
	m, ok := f.missions[id]
	if !ok {
		return nil, apperror.NotFound("mission", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) ListMissions(_ context.Context, opts repository.ListOptions) ([]model.Mission, error) {
	out := make([]model.Mission, 0, len(f.missions))
	for _, m := range f.missions {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset >= len(out) {
		return []model.Mission{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) CreateSubmission(_ context.Context, s *model.Submission) error {
	if f.createSubmissionErr != nil {
		return f.createSubmissionErr
	}
	s.ID = f.id("sub")
	s.Status = model.StatusSubmitted
	cp := *s
	f.submissions[s.ID] = &cp
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeStore) GetSubmissionByID(_ context.Context, id string) (*model.Submission, error) {
	s, ok := f.submissions[id]
	if !ok {
		return nil, apperror.NotFound("submission", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) SaveGrading(_ context.Context, id string, g model.Grading, velric float64) error {
	if f.saveGradingErr != nil {
		return f.saveGradingErr
	}
	s, ok := f.submissions[id]
	if !ok {
		return apperror.NotFound("submission", id)
	}
	s.Grading = &g
	s.VelricScore = &velric
	s.Status = model.StatusGraded
	return nil
}

func (f *fakeStore) ListGradedSubmissionsByUser(_ context.Context, userID string) ([]model.Submission, error) {
	var out []model.Submission
	for _, id := range f.order {
		s := f.submissions[id]
		if s.UserID == userID && s.Status == model.StatusGraded {
			out = append(out, *s)
		}
	}
	return out, nil
}

// failingGrader always errors.
type failingGrader struct{}

func (failingGrader) Grade(context.Context, GradeInput) (*model.Grading, error) {
	return nil, errors.New("grader unavailable")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
