package cloud

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/escalation"
)

// InMemoryCloudClient records control plane actions without touching
// any cloud. Used in development and as the default when no control
// plane is configured.
type InMemoryCloudClient struct {
	mu      sync.Mutex
	actions []Action
	logger  *zap.Logger
}

// Action is one recorded control plane call
type Action struct {
	Name     string
	TenantID string
}

// NewInMemoryCloudClient creates a recording cloud client
func NewInMemoryCloudClient(logger *zap.Logger) *InMemoryCloudClient {
	return &InMemoryCloudClient{logger: logger}
}

// Actions returns the recorded calls in order
func (c *InMemoryCloudClient) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

func (c *InMemoryCloudClient) record(name, tenantID string) error {
	c.mu.Lock()
	c.actions = append(c.actions, Action{Name: name, TenantID: tenantID})
	c.mu.Unlock()
	c.logger.Info("Cloud action recorded (no control plane configured)",
		zap.String("action", name),
		zap.String("tenant_id", tenantID),
	)
	return nil
}

func (c *InMemoryCloudClient) StopInstances(_ context.Context, tenantID string) error {
	return c.record("stop_instances", tenantID)
}

func (c *InMemoryCloudClient) SuspendInstances(_ context.Context, tenantID string) error {
	return c.record("suspend_instances", tenantID)
}

func (c *InMemoryCloudClient) PauseInstances(_ context.Context, tenantID string) error {
	return c.record("pause_instances", tenantID)
}

func (c *InMemoryCloudClient) DeleteInstances(_ context.Context, tenantID string) error {
	return c.record("delete_instances", tenantID)
}

func (c *InMemoryCloudClient) DeleteImages(_ context.Context, tenantID string) error {
	return c.record("delete_images", tenantID)
}

func (c *InMemoryCloudClient) DeleteFloatingIPs(_ context.Context, tenantID string) error {
	return c.record("delete_floating_ips", tenantID)
}

func (c *InMemoryCloudClient) DeleteRouters(_ context.Context, tenantID string) error {
	return c.record("delete_routers", tenantID)
}

func (c *InMemoryCloudClient) DeleteVolumes(_ context.Context, tenantID string) error {
	return c.record("delete_volumes", tenantID)
}

func (c *InMemoryCloudClient) DeleteSnapshots(_ context.Context, tenantID string) error {
	return c.record("delete_snapshots", tenantID)
}

// Ensure InMemoryCloudClient implements CloudClient
var _ escalation.CloudClient = (*InMemoryCloudClient)(nil)
