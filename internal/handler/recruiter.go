package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/auth"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/service"
)

type RecruiterService interface {
	Candidates(ctx context.Context, p *model.Principal, q service.CandidateQuery) ([]model.Candidate, error)
}

type RecruiterHandler struct {
	recruiters RecruiterService
	logger     *slog.Logger
}

func NewRecruiterHandler(recruiters RecruiterService, logger *slog.Logger) *RecruiterHandler {
	return &RecruiterHandler{recruiters: recruiters, logger: logger}
}

// HandleCandidates lists candidates for recruiters.
//
// HTTP: GET /api/recruiter/candidates?search=ada&minScore=5&limit=20&offset=0
func (h *RecruiterHandler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: auth.UnauthorizedMessage})
		return
	}

	q := service.CandidateQuery{Search: r.URL.Query().Get("search")}
	var err error
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("minScore"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, apperror.ValidationFailed("minScore", "minScore must be a number"))
			return
		}
		q.MinScore = &v
	}

	candidates, err := h.recruiters.Candidates(r.Context(), p, q)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"candidates": candidates,
		"total":      len(candidates),
	})
}
