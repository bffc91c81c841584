package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// PriceService manages the price list and serves as the PriceSource
// consulted by component handlers
type PriceService struct {
	prices billing.PriceRepository
	logger *zap.Logger
}

// NewPriceService creates a price service
func NewPriceService(prices billing.PriceRepository, logger *zap.Logger) *PriceService {
	return &PriceService{prices: prices, logger: logger}
}

var _ billing.PriceSource = (*PriceService)(nil)

// HourlyRate resolves the base rate for a resource variant
func (s *PriceService) HourlyRate(ctx context.Context, kind billing.ResourceKind, key string) (valueobject.Money, error) {
	entry, err := s.prices.FindByKindKey(ctx, kind, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return valueobject.Money{}, &billing.PriceNotFoundError{Kind: kind, Key: key}
		}
		return valueobject.Money{}, err
	}
	return entry.Rate, nil
}

// SetPrice creates or updates a price list entry
func (s *PriceService) SetPrice(ctx context.Context, kind billing.ResourceKind, key string, rate valueobject.Money) (*billing.PriceEntry, error) {
	entry, err := billing.NewPriceEntry(kind, key, rate)
	if err != nil {
		return nil, err
	}
	if err := s.prices.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info("price entry set",
		zap.String("kind", string(kind)),
		zap.String("key", key),
		zap.String("rate", rate.String()),
	)
	return entry, nil
}

// ListPrices returns the price list, optionally filtered by kind
func (s *PriceService) ListPrices(ctx context.Context, kind billing.ResourceKind) ([]*billing.PriceEntry, error) {
	if kind == "" {
		return s.prices.List(ctx)
	}
	return s.prices.ListByKind(ctx, kind)
}

// DeletePrice removes a price list entry
func (s *PriceService) DeletePrice(ctx context.Context, id uuid.UUID) error {
	return s.prices.Delete(ctx, id)
}
