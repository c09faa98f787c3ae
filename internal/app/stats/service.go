package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"
)

const defaultTopItems = 5

type Service struct {
	repo   interfaces.StatsRepository
	logger logger.Logger
	topN   int
}

func NewService(repo interfaces.StatsRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger, topN: defaultTopItems}
}

// SalesStats reports orders created in [from, to). A zero to means now.
func (s *Service) SalesStats(ctx context.Context, from, to time.Time) (*domain.SalesStats, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if !from.Before(to) {
		return nil, &domain.Error{Kind: domain.KindInvalidSelection, Field: "from", Message: "from must be before to"}
	}

	stats, err := s.repo.SalesStats(ctx, from, to, s.topN)
	if err != nil {
		s.logger.Error("stats_query_failed", "Failed to compute sales stats", "", nil, err)
		return nil, fmt.Errorf("failed to compute sales stats: %w", err)
	}
	return stats, nil
}
