package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// ProjectHandler serves the billing project endpoints
type ProjectHandler struct {
	BaseHandler
	projects *appbilling.ProjectService
	logger   *zap.Logger
}

// NewProjectHandler creates a project handler
func NewProjectHandler(projects *appbilling.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// List returns all billing projects
// GET /api/v1/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromProjects(projects))
}

// GetByTenant returns the billing project for a cloud tenant
// GET /api/v1/tenants/:tenant_id/project
func (h *ProjectHandler) GetByTenant(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	project, err := h.projects.GetByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromProject(project))
}

// UpdateEmail changes where a tenant's notifications go
// PUT /api/v1/tenants/:tenant_id/email
func (h *ProjectHandler) UpdateEmail(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	var req dto.UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	project, err := h.projects.UpdateEmail(c.Request.Context(), tenantID, req.Email)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromProject(project))
}
