package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// SchedulerControl exposes the cron scheduler to the admin API
type SchedulerControl interface {
	TriggerInvoiceRun() error
	TriggerUnpaidRun() error
	GetStatus() map[string]any
}

// BillingAdminHandler serves the operator endpoints that drive billing
// as a whole: on, off, reset, and manual sweep triggers
type BillingAdminHandler struct {
	BaseHandler
	driver    *appbilling.DriverService
	settings  *appbilling.SettingsService
	scheduler SchedulerControl
	logger    *zap.Logger
}

// NewBillingAdminHandler creates a billing admin handler
func NewBillingAdminHandler(
	driver *appbilling.DriverService,
	settings *appbilling.SettingsService,
	scheduler SchedulerControl,
	logger *zap.Logger,
) *BillingAdminHandler {
	return &BillingAdminHandler{
		driver:    driver,
		settings:  settings,
		scheduler: scheduler,
		logger:    logger,
	}
}

func toResourceInits(reqs []dto.ResourceInitRequest) []appbilling.ResourceInit {
	out := make([]appbilling.ResourceInit, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, appbilling.ResourceInit{
			Kind: billing.ResourceKind(r.Kind),
			Payload: billing.CreatePayload{
				ResourceID:   r.ResourceID,
				Name:         r.Name,
				FlavorID:     r.FlavorID,
				VolumeTypeID: r.VolumeTypeID,
				IPAddress:    r.IPAddress,
				SizeGB:       r.SizeGB,
				StartDate:    r.StartDate,
			},
		})
	}
	return out
}

func toBatchResponse(batch *appbilling.BatchResult) dto.BatchResultResponse {
	resp := dto.BatchResultResponse{Closed: batch.Closed, Skipped: batch.Skipped}
	if len(batch.Failed) > 0 {
		resp.Failed = make(map[string]string, len(batch.Failed))
		for id, err := range batch.Failed {
			resp.Failed[id.String()] = err.Error()
		}
	}
	return resp
}

// Enable turns billing on and opens the first invoices
// POST /api/v1/billing/enable
func (h *BillingAdminHandler) Enable(c *gin.Context) {
	var req dto.EnableBillingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	inits := make([]appbilling.TenantInit, 0, len(req.Tenants))
	for _, t := range req.Tenants {
		inits = append(inits, appbilling.TenantInit{
			TenantID:  t.TenantID,
			Email:     t.Email,
			Resources: toResourceInits(t.Resources),
		})
	}

	if err := h.driver.EnableBilling(c.Request.Context(), inits); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"enabled": true, "tenants": len(inits)})
}

// Disable turns billing off and closes every active invoice for good
// POST /api/v1/billing/disable
func (h *BillingAdminHandler) Disable(c *gin.Context) {
	batch, err := h.driver.DisableBilling(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBatchResponse(batch))
}

// Reset turns billing off and erases all billing state
// POST /api/v1/billing/reset
func (h *BillingAdminHandler) Reset(c *gin.Context) {
	if err := h.driver.ResetBilling(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"reset": true})
}

// Status reports the billing configuration and scheduler state
// GET /api/v1/billing/status
func (h *BillingAdminHandler) Status(c *gin.Context) {
	cfg, err := h.settings.Snapshot(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	status := gin.H{
		"enabled":     cfg.Enabled,
		"tax_rate":    cfg.TaxRate.String(),
		"auto_deduct": cfg.AutoDeduct,
		"time":        time.Now().UTC(),
	}
	if h.scheduler != nil {
		status["scheduler"] = h.scheduler.GetStatus()
	}
	h.Success(c, status)
}

// RunInvoiceSweep kicks the period close off outside its schedule
// POST /api/v1/billing/run/invoices
func (h *BillingAdminHandler) RunInvoiceSweep(c *gin.Context) {
	if h.scheduler == nil {
		h.Conflict(c, "Scheduler is not running")
		return
	}
	if err := h.scheduler.TriggerInvoiceRun(); err != nil {
		h.Conflict(c, err.Error())
		return
	}
	h.Success(c, gin.H{"triggered": "invoice-close"})
}

// RunUnpaidSweep kicks the unpaid escalation sweep off outside its
// schedule
// POST /api/v1/billing/run/unpaid
func (h *BillingAdminHandler) RunUnpaidSweep(c *gin.Context) {
	if h.scheduler == nil {
		h.Conflict(c, "Scheduler is not running")
		return
	}
	if err := h.scheduler.TriggerUnpaidRun(); err != nil {
		h.Conflict(c, err.Error())
		return
	}
	h.Success(c, gin.H{"triggered": "unpaid-sweep"})
}
