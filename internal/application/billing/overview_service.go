package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
)

// KindOverview summarizes one resource kind across active invoices
type KindOverview struct {
	Kind        billing.ResourceKind `json:"kind"`
	Total       int64                `json:"total"`
	Active      int64                `json:"active"`
	TotalCost   float64              `json:"total_cost"`
	CurrentCost float64              `json:"current_cost"`
}

// OverviewService aggregates resource counts and costs for the admin
// dashboard and the metrics exporter
type OverviewService struct {
	components billing.ComponentRepository
	registry   *billing.Registry
	logger     *zap.Logger
}

// NewOverviewService creates an overview service
func NewOverviewService(components billing.ComponentRepository, registry *billing.Registry, logger *zap.Logger) *OverviewService {
	return &OverviewService{components: components, registry: registry, logger: logger}
}

// ByKind returns a summary row per registered resource kind
func (s *OverviewService) ByKind(ctx context.Context) ([]KindOverview, error) {
	kinds := s.registry.AllKinds()
	out := make([]KindOverview, 0, len(kinds))
	for _, kind := range kinds {
		total, err := s.components.CountByKind(ctx, kind, false)
		if err != nil {
			return nil, err
		}
		active, err := s.components.CountByKind(ctx, kind, true)
		if err != nil {
			return nil, err
		}
		totalCost, err := s.components.CostByKind(ctx, kind, false)
		if err != nil {
			return nil, err
		}
		currentCost, err := s.components.CostByKind(ctx, kind, true)
		if err != nil {
			return nil, err
		}
		out = append(out, KindOverview{
			Kind:        kind,
			Total:       total,
			Active:      active,
			TotalCost:   totalCost,
			CurrentCost: currentCost,
		})
	}
	return out, nil
}
