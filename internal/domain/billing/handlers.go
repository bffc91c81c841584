package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// componentHandler carries the pricing behavior shared by every kind.
// priceKey extracts the price list key for a payload, scale the unit
// count the base rate is multiplied by (1 for flat-priced kinds).
type componentHandler struct {
	kind        ResourceKind
	prices      PriceSource
	defaultRate valueobject.Money
	priceKey    func(p CreatePayload) string
	scale       func(p CreatePayload) int64
}

func (h *componentHandler) Kind() ResourceKind { return h.kind }

func (h *componentHandler) Create(ctx context.Context, invoiceID uuid.UUID, p CreatePayload, fallbackPrice bool) (*UsageComponent, error) {
	rate, err := h.resolveRate(ctx, h.priceKey(p), h.scale(p))
	if err != nil {
		if !fallbackPrice || !IsPriceNotFound(err) {
			return nil, err
		}
		rate = h.defaultRate.MultiplyByInt(h.scale(p))
	}
	return &UsageComponent{
		BaseEntity:   shared.NewBaseEntityAt(p.StartDate),
		InvoiceID:    invoiceID,
		Kind:         h.kind,
		ResourceID:   p.ResourceID,
		Name:         p.Name,
		FlavorID:     p.FlavorID,
		VolumeTypeID: p.VolumeTypeID,
		IPAddress:    p.IPAddress,
		SizeGB:       p.SizeGB,
		StartDate:    p.StartDate,
		HourlyRate:   rate,
		PriceCharged: valueobject.Zero(rate.Currency()),
	}, nil
}

func (h *componentHandler) Close(c *UsageComponent, at time.Time) error {
	return c.Close(at)
}

func (h *componentHandler) Roll(ctx context.Context, c *UsageComponent, invoiceID uuid.UUID, at time.Time) (*UsageComponent, error) {
	p := payloadFromComponent(c)
	rate, err := h.resolveRate(ctx, h.priceKey(p), h.scale(p))
	if err != nil {
		if !IsPriceNotFound(err) {
			return nil, err
		}
		// price entry removed mid-flight, keep charging the old rate
		rate = c.HourlyRate
	}
	return c.RollTo(invoiceID, at, rate), nil
}

func (h *componentHandler) resolveRate(ctx context.Context, key string, scale int64) (valueobject.Money, error) {
	base, err := h.prices.HourlyRate(ctx, h.kind, key)
	if err != nil {
		return valueobject.Money{}, err
	}
	return base.MultiplyByInt(scale), nil
}

func payloadFromComponent(c *UsageComponent) CreatePayload {
	return CreatePayload{
		ResourceID:   c.ResourceID,
		Name:         c.Name,
		FlavorID:     c.FlavorID,
		VolumeTypeID: c.VolumeTypeID,
		IPAddress:    c.IPAddress,
		SizeGB:       c.SizeGB,
	}
}

func flatKey(CreatePayload) string  { return "" }
func unitScale(CreatePayload) int64 { return 1 }
func sizeScale(p CreatePayload) int64 {
	if p.SizeGB <= 0 {
		return 1
	}
	return p.SizeGB
}

// NewInstanceHandler prices compute instances by flavor
func NewInstanceHandler(prices PriceSource, defaultRate valueobject.Money) ComponentHandler {
	return &componentHandler{
		kind:        KindInstance,
		prices:      prices,
		defaultRate: defaultRate,
		priceKey:    func(p CreatePayload) string { return p.FlavorID },
		scale:       unitScale,
	}
}

// NewVolumeHandler prices block storage per GB by volume type
func NewVolumeHandler(prices PriceSource, defaultRate valueobject.Money) ComponentHandler {
	return &componentHandler{
		kind:        KindVolume,
		prices:      prices,
		defaultRate: defaultRate,
		priceKey:    func(p CreatePayload) string { return p.VolumeTypeID },
		scale:       sizeScale,
	}
}

// NewFloatingIPHandler prices floating IPs at a flat hourly rate
func NewFloatingIPHandler(prices PriceSource, defaultRate valueobject.Money) ComponentHandler {
	return &componentHandler{
		kind:        KindFloatingIP,
		prices:      prices,
		defaultRate: defaultRate,
		priceKey:    flatKey,
		scale:       unitScale,
	}
}

// NewRouterHandler prices routers at a flat hourly rate
func NewRouterHandler(prices PriceSource, defaultRate valueobject.Money) ComponentHandler {
	return &componentHandler{
		kind:        KindRouter,
		prices:      prices,
		defaultRate: defaultRate,
		priceKey:    flatKey,
		scale:       unitScale,
	}
}

// NewSnapshotHandler prices volume snapshots per GB
func NewSnapshotHandler(prices PriceSource, defaultRate valueobject.Money) ComponentHandler {
	return &componentHandler{
		kind:        KindSnapshot,
		prices:      prices,
		defaultRate: defaultRate,
		priceKey:    flatKey,
		scale:       sizeScale,
	}
}

// NewImageHandler prices tenant images per GB
func NewImageHandler(prices PriceSource, defaultRate valueobject.Money) ComponentHandler {
	return &componentHandler{
		kind:        KindImage,
		prices:      prices,
		defaultRate: defaultRate,
		priceKey:    flatKey,
		scale:       sizeScale,
	}
}

// NewDefaultRegistry wires the static handler table. Registration
// order fixes sweep processing order. Missing default rates fall back
// to zero in the default currency.
func NewDefaultRegistry(prices PriceSource, defaults map[ResourceKind]valueobject.Money) *Registry {
	rate := func(kind ResourceKind) valueobject.Money {
		if r, ok := defaults[kind]; ok {
			return r
		}
		return valueobject.Zero(valueobject.DefaultCurrency)
	}
	r := NewRegistry()
	r.MustRegister(NewInstanceHandler(prices, rate(KindInstance)))
	r.MustRegister(NewVolumeHandler(prices, rate(KindVolume)))
	r.MustRegister(NewFloatingIPHandler(prices, rate(KindFloatingIP)))
	r.MustRegister(NewRouterHandler(prices, rate(KindRouter)))
	r.MustRegister(NewSnapshotHandler(prices, rate(KindSnapshot)))
	r.MustRegister(NewImageHandler(prices, rate(KindImage)))
	return r
}
