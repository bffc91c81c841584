package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
)

// OverviewHandler serves the per-kind resource overview
type OverviewHandler struct {
	BaseHandler
	overview *appbilling.OverviewService
	logger   *zap.Logger
}

// NewOverviewHandler creates an overview handler
func NewOverviewHandler(overview *appbilling.OverviewService, logger *zap.Logger) *OverviewHandler {
	return &OverviewHandler{overview: overview, logger: logger}
}

// ByKind summarizes resource counts and charges per resource kind
// GET /api/v1/overview
func (h *OverviewHandler) ByKind(c *gin.Context) {
	overviews, err := h.overview.ByKind(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, overviews)
}
