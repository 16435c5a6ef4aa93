package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/velric/velric-server/internal/auth"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/service"
)

type SurveyService interface {
	Submit(ctx context.Context, p *model.Principal, in service.SurveyInput) (*model.SurveyStatus, error)
	Status(ctx context.Context, p *model.Principal) (*model.SurveyStatus, error)
}

// SurveyHandler serves the onboarding survey. Both routes sit behind
// RequireAuth.
type SurveyHandler struct {
	surveys SurveyService
	logger  *slog.Logger
}

func NewSurveyHandler(surveys SurveyService, logger *slog.Logger) *SurveyHandler {
	return &SurveyHandler{surveys: surveys, logger: logger}
}

type surveyProfile struct {
	Onboarded   bool          `json:"onboarded"`
	CompletedAt *time.Time    `json:"completedAt"`
	SurveyData  *model.Survey `json:"surveyData"`
}

type surveySubmitResponse struct {
	Success bool          `json:"success"`
	UserID  string        `json:"userId"`
	Message string        `json:"message"`
	Profile surveyProfile `json:"profile"`
}

// HandleSubmit stores the survey and marks the caller onboarded.
//
// HTTP: POST /api/survey
// REQUEST BODY:
//
//	{"fullName": "...", "educationLevel": "...", "industry": "...",
//	 "missionFocus": ["..."], "strengthAreas": ["...", "...", "..."],
//	 "learningPreference": "both", "portfolioUrl": "", "experienceSummary": ""}
func (h *SurveyHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.UnauthorizedMessage})
		return
	}

	var in service.SurveyInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	status, err := h.surveys.Submit(r.Context(), p, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, surveySubmitResponse{
		Success: true,
		UserID:  status.UserID,
		Message: "Survey submitted successfully",
		Profile: surveyProfile{
			Onboarded:   status.Onboarded,
			CompletedAt: status.LastModified,
			SurveyData:  status.Survey,
		},
	})
}

// HandleStatus reports the caller's onboarding state.
//
// HTTP: GET /api/survey/status
// RESPONSE: {"success": true, "userId": "...", "isCompleted": true,
// "onboarded": true, "lastModified": "...", "data": {...}}
func (h *SurveyHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.UnauthorizedMessage})
		return
	}

	status, err := h.surveys.Status(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*model.SurveyStatus
	}{true, status})
}
