package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// NotificationHandler serves the stored notification endpoints
type NotificationHandler struct {
	BaseHandler
	notifications *appbilling.NotificationService
	logger        *zap.Logger
}

// NewNotificationHandler creates a notification handler
func NewNotificationHandler(notifications *appbilling.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List returns notifications, all of them or one tenant's
// GET /api/v1/notifications?tenant_id=...
func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromNotifications(list))
}

// Get retrieves a notification and marks it read
// GET /api/v1/notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid notification ID")
		return
	}

	n, err := h.notifications.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromNotification(n))
}

// MarkRead flags a notification read
// POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.setRead(c, true)
}

// MarkUnread flags a notification unread
// POST /api/v1/notifications/:id/unread
func (h *NotificationHandler) MarkUnread(c *gin.Context) {
	h.setRead(c, false)
}

func (h *NotificationHandler) setRead(c *gin.Context, read bool) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid notification ID")
		return
	}

	n, err := h.notifications.SetRead(c.Request.Context(), id, read)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromNotification(n))
}

// Resend delivers an existing notification again
// POST /api/v1/notifications/:id/resend
func (h *NotificationHandler) Resend(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid notification ID")
		return
	}

	n, err := h.notifications.Resend(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromNotification(n))
}
