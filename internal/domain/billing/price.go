package billing

import (
	"context"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// PriceEntry is one row of the price list. Key selects the variant
// within a kind: flavor ID for instances, volume type for volumes,
// empty for flat-priced kinds. The rate is hourly, per unit (per GB
// for size-based kinds).
type PriceEntry struct {
	shared.BaseEntity
	Kind ResourceKind
	Key  string
	Rate valueobject.Money
}

// NewPriceEntry creates a price list row
func NewPriceEntry(kind ResourceKind, key string, rate valueobject.Money) (*PriceEntry, error) {
	if kind == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "resource kind cannot be empty")
	}
	if rate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "price rate cannot be negative")
	}
	return &PriceEntry{
		BaseEntity: shared.NewBaseEntity(),
		Kind:       kind,
		Key:        key,
		Rate:       rate,
	}, nil
}

// PriceSource resolves the hourly base rate for a resource variant.
// A missing entry yields *PriceNotFoundError.
type PriceSource interface {
	HourlyRate(ctx context.Context, kind ResourceKind, key string) (valueobject.Money, error)
}
