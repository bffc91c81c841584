package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// SettingsHandler serves the dynamic settings endpoints
type SettingsHandler struct {
	BaseHandler
	settings *appbilling.SettingsService
	logger   *zap.Logger
}

// NewSettingsHandler creates a settings handler
func NewSettingsHandler(settings *appbilling.SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// List returns every dynamic setting
// GET /api/v1/settings
func (h *SettingsHandler) List(c *gin.Context) {
	values, err := h.settings.All(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, values)
}

// Get returns one setting value
// GET /api/v1/settings/:key
func (h *SettingsHandler) Get(c *gin.Context) {
	key := c.Param("key")
	value, err := h.settings.Get(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"key": key, "value": value})
}

// Set validates and stores a setting value
// PUT /api/v1/settings/:key
func (h *SettingsHandler) Set(c *gin.Context) {
	key := c.Param("key")
	var req dto.SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.settings.Set(c.Request.Context(), key, req.Value); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"key": key, "value": req.Value})
}
