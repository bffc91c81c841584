package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudbill/backend/internal/domain/escalation"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024 // 1MB max response

// Config holds the control plane connection settings
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("cloud base URL is required")
	}
	return nil
}

// HTTPCloudClient drives the cloud control plane over its REST API.
// Every call posts a tenant-scoped bulk action and is bounded by the
// caller's context plus the configured timeout.
type HTTPCloudClient struct {
	config     Config
	httpClient *http.Client
}

// NewHTTPCloudClient creates a control plane client
func NewHTTPCloudClient(config Config) (*HTTPCloudClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCloudClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// StopInstances stops all instances of a tenant
func (c *HTTPCloudClient) StopInstances(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/instances/stop", tenantID)
}

// SuspendInstances suspends all instances of a tenant
func (c *HTTPCloudClient) SuspendInstances(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/instances/suspend", tenantID)
}

// PauseInstances pauses all instances of a tenant
func (c *HTTPCloudClient) PauseInstances(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/instances/pause", tenantID)
}

// DeleteInstances deletes all instances of a tenant
func (c *HTTPCloudClient) DeleteInstances(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/instances/delete", tenantID)
}

// DeleteImages deletes all images of a tenant
func (c *HTTPCloudClient) DeleteImages(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/images/delete", tenantID)
}

// DeleteFloatingIPs deletes all floating IPs of a tenant
func (c *HTTPCloudClient) DeleteFloatingIPs(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/floating-ips/delete", tenantID)
}

// DeleteRouters deletes all routers of a tenant
func (c *HTTPCloudClient) DeleteRouters(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/routers/delete", tenantID)
}

// DeleteVolumes deletes all volumes of a tenant
func (c *HTTPCloudClient) DeleteVolumes(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/volumes/delete", tenantID)
}

// DeleteSnapshots deletes all snapshots of a tenant
func (c *HTTPCloudClient) DeleteSnapshots(ctx context.Context, tenantID string) error {
	return c.post(ctx, "/v1/snapshots/delete", tenantID)
}

// actionRequest is the body of every bulk action call
type actionRequest struct {
	TenantID string `json:"tenant_id"`
}

// errorResponse is the control plane's error envelope
type errorResponse struct {
	Message string `json:"message"`
}

func (c *HTTPCloudClient) post(ctx context.Context, path, tenantID string) error {
	body, err := json.Marshal(actionRequest{TenantID: tenantID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call control plane: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	var errResp errorResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Message != "" {
		return fmt.Errorf("control plane %s returned %d: %s", path, resp.StatusCode, errResp.Message)
	}
	return fmt.Errorf("control plane %s returned %d", path, resp.StatusCode)
}

// Ensure HTTPCloudClient implements CloudClient
var _ escalation.CloudClient = (*HTTPCloudClient)(nil)
