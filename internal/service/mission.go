package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

// MissionService serves the read-only mission catalog.
type MissionService struct {
	repo   repository.MissionRepository
	logger *slog.Logger
}

func NewMissionService(repo repository.MissionRepository, logger *slog.Logger) *MissionService {
	return &MissionService{repo: repo, logger: logger}
}

func (s *MissionService) Get(ctx context.Context, id string) (*model.Mission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "mission ID is required")
	}
	return s.repo.GetMissionByID(ctx, id)
}

// List pages through the catalog, oldest first.
func (s *MissionService) List(ctx context.Context, limit, offset int) ([]model.Mission, error) {
	limit, offset = clampPage(limit, offset)

	missions, err := s.repo.ListMissions(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list missions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing missions: %w", err)
	}
	if missions == nil {
		missions = []model.Mission{}
	}
	return missions, nil
}
