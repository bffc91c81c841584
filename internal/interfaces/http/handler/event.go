package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appescalation "github.com/cloudbill/backend/internal/application/escalation"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// EventHandler ingests usage events from the cloud control plane
type EventHandler struct {
	BaseHandler
	events *appescalation.EventService
	logger *zap.Logger
}

// NewEventHandler creates a cloud event handler
func NewEventHandler(events *appescalation.EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// Ingest processes one usage event. Events arriving while billing is
// off are acknowledged and dropped so the control plane does not
// retry them forever.
// POST /api/v1/events
func (h *EventHandler) Ingest(c *gin.Context) {
	var req dto.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.events.Handle(c.Request.Context(), req.EventType, req.Payload); err != nil {
		if errors.Is(err, shared.ErrBillingDisabled) {
			h.logger.Debug("dropping event, billing disabled",
				zap.String("event_type", req.EventType))
			h.Success(c, gin.H{"accepted": false, "reason": "billing_disabled"})
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"accepted": true})
}
