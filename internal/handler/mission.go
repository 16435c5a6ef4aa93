package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
)

type MissionService interface {
	Get(ctx context.Context, id string) (*model.Mission, error)
	List(ctx context.Context, limit, offset int) ([]model.Mission, error)
}

// MissionHandler serves the public mission catalog.
type MissionHandler struct {
	missions MissionService
	logger   *slog.Logger
}

func NewMissionHandler(missions MissionService, logger *slog.Logger) *MissionHandler {
	return &MissionHandler{missions: missions, logger: logger}
}

// HandleList returns a page of missions.
//
// HTTP: GET /api/missions?limit=20&offset=0
//
// Missing or zero values fall back to the service defaults; values outside
// the allowed range are clamped by the service.
func (h *MissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	missions, err := h.missions.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"missions": missions,
	})
}

// HandleGet returns one mission.
//
// HTTP: GET /api/missions/{id}
func (h *MissionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	mission, err := h.missions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"mission": mission,
	})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
