package escalation

import (
	"context"
	"time"

	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
)

// eventSpec describes how to interpret one cloud event type
type eventSpec struct {
	kind    billing.ResourceKind
	created bool
	idKey   string
	nameKey string
	sizeKey string
}

// eventSpecs maps the control plane's notification topics onto billing
// actions. Unlisted event types are ignored.
var eventSpecs = map[string]eventSpec{
	"compute.instance.create.end": {kind: billing.KindInstance, created: true, idKey: "instance_id", nameKey: "display_name"},
	"compute.instance.delete.end": {kind: billing.KindInstance, idKey: "instance_id"},
	"volume.create.end":           {kind: billing.KindVolume, created: true, idKey: "volume_id", nameKey: "display_name", sizeKey: "size"},
	"volume.delete.end":           {kind: billing.KindVolume, idKey: "volume_id"},
	"floatingip.create.end":       {kind: billing.KindFloatingIP, created: true, idKey: "floatingip_id"},
	"floatingip.delete.end":       {kind: billing.KindFloatingIP, idKey: "floatingip_id"},
	"router.create.end":           {kind: billing.KindRouter, created: true, idKey: "router_id", nameKey: "name"},
	"router.delete.end":           {kind: billing.KindRouter, idKey: "router_id"},
	"snapshot.create.end":         {kind: billing.KindSnapshot, created: true, idKey: "snapshot_id", nameKey: "display_name", sizeKey: "size"},
	"snapshot.delete.end":         {kind: billing.KindSnapshot, idKey: "snapshot_id"},
	"image.activate":              {kind: billing.KindImage, created: true, idKey: "image_id", nameKey: "name", sizeKey: "size_gb"},
	"image.delete":                {kind: billing.KindImage, idKey: "image_id"},
}

// ResourceTracker starts and stops metering for single resources
type ResourceTracker interface {
	TrackResource(ctx context.Context, tenantID string, res appbilling.ResourceInit) (*billing.UsageComponent, error)
	ReleaseResource(ctx context.Context, kind billing.ResourceKind, resourceID string) error
}

// DelinquencyHandler re-applies standing sanctions when a delinquent
// tenant grows resources
type DelinquencyHandler interface {
	HandleResourceEvent(ctx context.Context, tenantID string, now time.Time) error
}

// EventService turns raw usage events from the cloud control plane
// into metering changes and escalation triggers
type EventService struct {
	tracker ResourceTracker
	unpaid  DelinquencyHandler
	logger  *zap.Logger
}

// NewEventService creates a cloud event intake service
func NewEventService(tracker ResourceTracker, unpaid DelinquencyHandler, logger *zap.Logger) *EventService {
	return &EventService{tracker: tracker, unpaid: unpaid, logger: logger}
}

// Handle processes one cloud event. Resource creation starts metering
// and re-applies any escalation in force for the tenant; deletion ends
// metering. Unknown event types are dropped silently.
func (s *EventService) Handle(ctx context.Context, eventType string, payload map[string]any) error {
	spec, ok := eventSpecs[eventType]
	if !ok {
		s.logger.Debug("ignoring unknown event type", zap.String("event_type", eventType))
		return nil
	}

	tenantID := stringField(payload, "tenant_id")
	if tenantID == "" {
		tenantID = stringField(payload, "project_id")
	}
	resourceID := stringField(payload, spec.idKey)
	if resourceID == "" {
		return shared.NewDomainError("INVALID_INPUT", "event payload is missing the resource id")
	}

	if !spec.created {
		return s.tracker.ReleaseResource(ctx, spec.kind, resourceID)
	}

	if tenantID == "" {
		return shared.NewDomainError("INVALID_INPUT", "event payload is missing the tenant id")
	}
	res := appbilling.ResourceInit{
		Kind: spec.kind,
		Payload: billing.CreatePayload{
			ResourceID:   resourceID,
			Name:         stringField(payload, spec.nameKey),
			FlavorID:     stringField(payload, "flavor_id"),
			VolumeTypeID: stringField(payload, "volume_type"),
			IPAddress:    stringField(payload, "floating_ip_address"),
			SizeGB:       intField(payload, spec.sizeKey),
			StartDate:    time.Now().UTC(),
		},
	}
	if _, err := s.tracker.TrackResource(ctx, tenantID, res); err != nil {
		return err
	}

	// a delinquent tenant's new resource gets the standing sanction
	if err := s.unpaid.HandleResourceEvent(ctx, tenantID, time.Now()); err != nil {
		s.logger.Error("event-triggered escalation failed",
			zap.String("tenant_id", tenantID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
	return nil
}

func stringField(payload map[string]any, key string) string {
	if key == "" {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func intField(payload map[string]any, key string) int64 {
	if key == "" {
		return 0
	}
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
