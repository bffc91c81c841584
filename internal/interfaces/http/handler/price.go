package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// PriceHandler serves the price list endpoints
type PriceHandler struct {
	BaseHandler
	prices   *appbilling.PriceService
	importer *appbilling.PriceImportService
	logger   *zap.Logger
}

// NewPriceHandler creates a price handler
func NewPriceHandler(prices *appbilling.PriceService, importer *appbilling.PriceImportService, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, importer: importer, logger: logger}
}

// List returns the price list, optionally filtered by kind
// GET /api/v1/prices?kind=...
func (h *PriceHandler) List(c *gin.Context) {
	kind := billing.ResourceKind(c.Query("kind"))
	prices, err := h.prices.ListPrices(c.Request.Context(), kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromPrices(prices))
}

// Set creates or replaces a price list entry
// PUT /api/v1/prices
func (h *PriceHandler) Set(c *gin.Context) {
	var req dto.SetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	rate, err := parseMoney(req.Rate, req.Currency)
	if err != nil {
		h.BadRequest(c, "Invalid rate")
		return
	}

	entry, err := h.prices.SetPrice(c.Request.Context(), billing.ResourceKind(req.Kind), req.Key, rate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromPrice(entry))
}

// Import bulk-loads price entries from a CSV body with columns
// kind, key, rate, currency
// POST /api/v1/prices/import
func (h *PriceHandler) Import(c *gin.Context) {
	result, err := h.importer.ImportCSV(c.Request.Context(), c.Request.Body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete removes a price list entry
// DELETE /api/v1/prices/:id
func (h *PriceHandler) Delete(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid price ID")
		return
	}

	if err := h.prices.DeletePrice(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
