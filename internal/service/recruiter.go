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

// CandidateQuery is what a recruiter may filter the listing by.
type CandidateQuery struct {
	Search   string
	MinScore *float64
	Limit    int
	Offset   int
}

// RecruiterService serves recruiter-only views of candidates.
type RecruiterService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewRecruiterService(users repository.UserRepository, logger *slog.Logger) *RecruiterService {
	return &RecruiterService{users: users, logger: logger}
}

// Candidates lists non-recruiter users, best Velric score first.
func (s *RecruiterService) Candidates(ctx context.Context, p *model.Principal, q CandidateQuery) ([]model.Candidate, error) {
	if p == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	if !p.IsRecruiter {
		return nil, apperror.Forbidden("only recruiters can list candidates")
	}
	if q.MinScore != nil && *q.MinScore < 0 {
		return nil, apperror.ValidationFailed("minScore", "minScore cannot be negative")
	}

	limit, offset := clampPage(q.Limit, q.Offset)
	candidates, err := s.users.ListCandidates(ctx, repository.CandidateFilter{
		Search:      strings.TrimSpace(q.Search),
		MinScore:    q.MinScore,
		ListOptions: repository.ListOptions{Limit: limit, Offset: offset},
	})
	if err != nil {
		s.logger.Error("failed to list candidates", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	if candidates == nil {
		candidates = []model.Candidate{}
	}
	return candidates, nil
}
