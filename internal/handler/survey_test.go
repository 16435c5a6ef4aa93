package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/handler"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/service"
)

// =====================================================================
// Fakes
// =====================================================================

type fakeSurveyService struct {
	gotPrincipal *model.Principal
	gotInput     service.SurveyInput

	status *model.SurveyStatus
	err    error
}

func (f *fakeSurveyService) Submit(_ context.Context, p *model.Principal, in service.SurveyInput) (*model.SurveyStatus, error) {
	f.gotPrincipal = p
	f.gotInput = in
	return f.status, f.err
}

func (f *fakeSurveyService) Status(_ context.Context, p *model.Principal) (*model.SurveyStatus, error) {
	f.gotPrincipal = p
	return f.status, f.err
}

type fakeRecruiterService struct {
	gotQuery   service.CandidateQuery
	candidates []model.Candidate
	err        error
}

func (f *fakeRecruiterService) Candidates(_ context.Context, _ *model.Principal, q service.CandidateQuery) ([]model.Candidate, error) {
	f.gotQuery = q
	return f.candidates, f.err
}

// =====================================================================
// Survey
// =====================================================================

func TestSurveyHandler_HandleSubmit(t *testing.T) {
	candidate := &model.Principal{ID: "user-1", Email: "c@example.com"}
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stored", func(t *testing.T) {
		svc := &fakeSurveyService{status: &model.SurveyStatus{
			UserID:       "user-1",
			Completed:    true,
			Onboarded:    true,
			LastModified: &completed,
			Survey:       &model.Survey{ID: "s1", UserID: "user-1", FullName: "Ada Lovelace"},
		}}
		h := handler.NewSurveyHandler(svc, testLogger())

		body := `{"fullName":"Ada Lovelace","educationLevel":"Bachelor's Degree","industry":"Technology",` +
			`"missionFocus":["AI"],"strengthAreas":["a","b","c"],"learningPreference":"both"}`
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/survey", bytes.NewBufferString(body)), candidate)
		rr := httptest.NewRecorder()
		h.HandleSubmit(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeBody(t, rr)
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "user-1", resp["userId"])
		assert.Equal(t, "Survey submitted successfully", resp["message"])

		profile, ok := resp["profile"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, profile["onboarded"])
		assert.Equal(t, "2026-03-01T12:00:00Z", profile["completedAt"])

		assert.Same(t, candidate, svc.gotPrincipal)
		assert.Equal(t, "Ada Lovelace", svc.gotInput.FullName)
		assert.Equal(t, []string{"a", "b", "c"}, svc.gotInput.StrengthAreas)
		assert.Equal(t, "both", svc.gotInput.LearningPreference)
	})

	t.Run("validation message surfaces verbatim", func(t *testing.T) {
		svc := &fakeSurveyService{err: apperror.ValidationFailed("strengthAreas", "Please select at least 3 strengths")}
		h := handler.NewSurveyHandler(svc, testLogger())

		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/survey",
			bytes.NewBufferString(`{"fullName":"Ada"}`)), candidate)
		rr := httptest.NewRecorder()
		h.HandleSubmit(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Please select at least 3 strengths", decodeBody(t, rr)["error"])
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &fakeSurveyService{}
		h := handler.NewSurveyHandler(svc, testLogger())

		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/survey",
			bytes.NewBufferString(`{"fullName":`)), candidate)
		rr := httptest.NewRecorder()
		h.HandleSubmit(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, svc.gotPrincipal)
	})

	t.Run("no principal never reaches the service", func(t *testing.T) {
		svc := &fakeSurveyService{}
		h := handler.NewSurveyHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/survey", bytes.NewBufferString(`{}`))
		rr := httptest.NewRecorder()
		h.HandleSubmit(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Nil(t, svc.gotPrincipal)
	})
}

func TestSurveyHandler_HandleStatus(t *testing.T) {
	candidate := &model.Principal{ID: "user-1", Email: "c@example.com"}

	t.Run("not yet completed", func(t *testing.T) {
		svc := &fakeSurveyService{status: &model.SurveyStatus{UserID: "user-1"}}
		h := handler.NewSurveyHandler(svc, testLogger())

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/survey/status", nil), candidate)
		rr := httptest.NewRecorder()
		h.HandleStatus(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeBody(t, rr)
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "user-1", resp["userId"])
		assert.Equal(t, false, resp["isCompleted"])
		assert.Equal(t, false, resp["onboarded"])
		assert.Nil(t, resp["data"])
	})

	t.Run("no principal", func(t *testing.T) {
		h := handler.NewSurveyHandler(&fakeSurveyService{}, testLogger())

		rr := httptest.NewRecorder()
		h.HandleStatus(rr, httptest.NewRequest(http.MethodGet, "/api/survey/status", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

// =====================================================================
// Recruiter
// =====================================================================

func TestRecruiterHandler_HandleCandidates(t *testing.T) {
	recruiter := &model.Principal{ID: "rec-1", Email: "r@example.com", IsRecruiter: true}

	t.Run("query parameters reach the service", func(t *testing.T) {
		score := 8.0
		svc := &fakeRecruiterService{candidates: []model.Candidate{
			{ID: "user-1", Email: "ada@example.com", VelricScore: &score},
		}}
		h := handler.NewRecruiterHandler(svc, testLogger())

		req := withPrincipal(httptest.NewRequest(http.MethodGet,
			"/api/recruiter/candidates?search=ada&minScore=6.5&limit=5&offset=10", nil), recruiter)
		rr := httptest.NewRecorder()
		h.HandleCandidates(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeBody(t, rr)
		assert.Equal(t, true, resp["success"])
		assert.EqualValues(t, 1, resp["total"])
		list, ok := resp["candidates"].([]any)
		require.True(t, ok)
		require.Len(t, list, 1)

		assert.Equal(t, "ada", svc.gotQuery.Search)
		require.NotNil(t, svc.gotQuery.MinScore)
		assert.InDelta(t, 6.5, *svc.gotQuery.MinScore, 1e-9)
		assert.Equal(t, 5, svc.gotQuery.Limit)
		assert.Equal(t, 10, svc.gotQuery.Offset)
	})

	t.Run("minScore must be numeric", func(t *testing.T) {
		svc := &fakeRecruiterService{}
		h := handler.NewRecruiterHandler(svc, testLogger())

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/recruiter/candidates?minScore=high", nil), recruiter)
		rr := httptest.NewRecorder()
		h.HandleCandidates(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "minScore must be a number", decodeBody(t, rr)["error"])
	})

	t.Run("candidates are refused", func(t *testing.T) {
		svc := &fakeRecruiterService{err: apperror.Forbidden("only recruiters can list candidates")}
		h := handler.NewRecruiterHandler(svc, testLogger())

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/recruiter/candidates", nil),
			&model.Principal{ID: "user-1"})
		rr := httptest.NewRecorder()
		h.HandleCandidates(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
