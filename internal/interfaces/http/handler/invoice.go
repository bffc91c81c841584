package handler

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// InvoiceHandler serves the invoice lifecycle endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices *appbilling.InvoiceService
	logger   *zap.Logger
}

// NewInvoiceHandler creates an invoice handler
func NewInvoiceHandler(invoices *appbilling.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, logger: logger}
}

// List returns invoices, all of them or one tenant's
// GET /api/v1/invoices?tenant_id=...
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID != "" {
		list, err := h.invoices.ListByTenant(c.Request.Context(), tenantID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.FromInvoices(list))
		return
	}

	list, err := h.invoices.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromInvoices(list))
}

// Get returns one invoice with its usage components
// GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	inv, comps, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromInvoiceDetail(inv, comps))
}

// Finish settles an unpaid invoice
// POST /api/v1/invoices/:id/finish
func (h *InvoiceHandler) Finish(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}
	var req dto.SettleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	inv, err := h.invoices.Finish(c.Request.Context(), id, req.SkipBalance)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromInvoice(inv))
}

// Rollback reverts a settled invoice back to unpaid
// POST /api/v1/invoices/:id/rollback
func (h *InvoiceHandler) Rollback(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}
	var req dto.SettleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	inv, err := h.invoices.RollbackToUnpaid(c.Request.Context(), id, req.SkipBalance)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromInvoice(inv))
}
