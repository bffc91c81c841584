package escalation

import (
	"context"
	"fmt"
)

// CloudClient drives the cloud control plane for one tenant's
// resources. Implementations must be safe for concurrent use; every
// call is bounded by the caller's context.
type CloudClient interface {
	StopInstances(ctx context.Context, tenantID string) error
	SuspendInstances(ctx context.Context, tenantID string) error
	PauseInstances(ctx context.Context, tenantID string) error
	DeleteInstances(ctx context.Context, tenantID string) error
	DeleteImages(ctx context.Context, tenantID string) error
	DeleteFloatingIPs(ctx context.Context, tenantID string) error
	DeleteRouters(ctx context.Context, tenantID string) error
	DeleteVolumes(ctx context.Context, tenantID string) error
	DeleteSnapshots(ctx context.Context, tenantID string) error
}

// DeleteEverything tears down a tenant's resources in dependency
// order: instances first so volumes detach, network plumbing before
// the volumes and snapshots that nothing references anymore. The
// first failure aborts the teardown; a later sweep retries.
func DeleteEverything(ctx context.Context, client CloudClient, tenantID string) error {
	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"instances", client.DeleteInstances},
		{"images", client.DeleteImages},
		{"floating ips", client.DeleteFloatingIPs},
		{"routers", client.DeleteRouters},
		{"volumes", client.DeleteVolumes},
		{"snapshots", client.DeleteSnapshots},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(ctx, tenantID); err != nil {
			return fmt.Errorf("delete %s for tenant %s: %w", step.name, tenantID, err)
		}
	}
	return nil
}
