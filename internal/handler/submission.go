package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velric/velric-server/internal/auth"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/service"
)

type SubmissionService interface {
	Submit(ctx context.Context, p *model.Principal, in service.SubmitInput) (*model.Submission, error)
	Feedback(ctx context.Context, p *model.Principal, id string) (*model.Feedback, error)
}

// SubmissionHandler accepts mission submissions and serves their feedback.
// Both routes sit behind RequireAuth.
type SubmissionHandler struct {
	submissions SubmissionService
	logger      *slog.Logger
}

func NewSubmissionHandler(submissions SubmissionService, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, logger: logger}
}

type submitResponse struct {
	Success     bool     `json:"success"`
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	VelricScore *float64 `json:"velricScore,omitempty"`
}

// HandleSubmit stores a submission.
//
// HTTP: POST /api/submissions
// REQUEST BODY:
//
//	{"submissionText": "...", "code": "...", "language": "python",
//	 "missionId": "...", "userId": "...", "tabSwitchCount": 2}
//
// RESPONSE: 201 {"success": true, "id": "...", "status": "graded"}
func (h *SubmissionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.UnauthorizedMessage})
		return
	}

	var in service.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.submissions.Submit(r.Context(), p, in)
	if err != nil {
		h.logger.Info("submission rejected",
			slog.String("userID", p.ID),
			slog.String("missionID", in.MissionID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		Success:     true,
		ID:          sub.ID,
		Status:      sub.Status,
		VelricScore: sub.VelricScore,
	})
}

// HandleFeedback returns a graded submission with its deductions.
//
// HTTP: GET /api/feedback/{id}
func (h *SubmissionHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.UnauthorizedMessage})
		return
	}

	fb, err := h.submissions.Feedback(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"submission": fb,
	})
}
