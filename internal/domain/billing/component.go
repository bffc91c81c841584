package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// ResourceKind identifies a billable resource type
type ResourceKind string

const (
	KindInstance   ResourceKind = "instance"
	KindVolume     ResourceKind = "volume"
	KindFloatingIP ResourceKind = "floating_ip"
	KindRouter     ResourceKind = "router"
	KindSnapshot   ResourceKind = "snapshot"
	KindImage      ResourceKind = "image"
)

// UsageComponent is one metered resource on one invoice. A component
// with no end date is active and still accruing; PriceCharged is
// finalized when the component closes.
type UsageComponent struct {
	shared.BaseEntity
	InvoiceID  uuid.UUID
	Kind       ResourceKind
	ResourceID string
	Name       string

	// kind-specific attributes, unused ones stay zero
	FlavorID     string
	VolumeTypeID string
	IPAddress    string
	SizeGB       int64

	StartDate time.Time
	EndDate   *time.Time

	HourlyRate   valueobject.Money
	PriceCharged valueobject.Money
}

// IsActive reports whether the component is still accruing
func (c *UsageComponent) IsActive() bool {
	return c.EndDate == nil
}

// Close ends accrual at the given time and finalizes the charge as
// hourly rate times elapsed hours
func (c *UsageComponent) Close(at time.Time) error {
	if c.EndDate != nil {
		return shared.ErrInvalidState
	}
	end := at
	c.EndDate = &end
	c.PriceCharged = c.chargeBetween(c.StartDate, at)
	c.UpdatedAt = at
	return nil
}

// RollTo clones the component onto a successor invoice, restarting
// accrual at the close time with the given rate
func (c *UsageComponent) RollTo(invoiceID uuid.UUID, at time.Time, rate valueobject.Money) *UsageComponent {
	return &UsageComponent{
		BaseEntity:   shared.NewBaseEntityAt(at),
		InvoiceID:    invoiceID,
		Kind:         c.Kind,
		ResourceID:   c.ResourceID,
		Name:         c.Name,
		FlavorID:     c.FlavorID,
		VolumeTypeID: c.VolumeTypeID,
		IPAddress:    c.IPAddress,
		SizeGB:       c.SizeGB,
		StartDate:    at,
		HourlyRate:   rate,
		PriceCharged: valueobject.Zero(rate.Currency()),
	}
}

func (c *UsageComponent) chargeBetween(start, end time.Time) valueobject.Money {
	if !end.After(start) {
		return valueobject.Zero(c.HourlyRate.Currency())
	}
	minutes := int64(end.Sub(start) / time.Minute)
	hours := decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60))
	return c.HourlyRate.Multiply(hours)
}

// SumCharges totals the finalized charges of a component set, enforcing
// currency uniformity across the invoice
func SumCharges(components []*UsageComponent) (valueobject.Money, error) {
	if len(components) == 0 {
		return valueobject.Zero(valueobject.DefaultCurrency), nil
	}
	total := valueobject.Zero(components[0].PriceCharged.Currency())
	for _, c := range components {
		if !total.SameCurrency(c.PriceCharged) {
			return valueobject.Money{}, &CurrencyMismatchError{
				Want: total.Currency(),
				Got:  c.PriceCharged.Currency(),
			}
		}
		total = total.MustAdd(c.PriceCharged)
	}
	return total, nil
}
