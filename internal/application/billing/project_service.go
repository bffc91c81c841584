package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
)

// ProjectService manages billing projects and their contact details
type ProjectService struct {
	projects billing.ProjectRepository
	logger   *zap.Logger
}

// NewProjectService creates a project service
func NewProjectService(projects billing.ProjectRepository, logger *zap.Logger) *ProjectService {
	return &ProjectService{projects: projects, logger: logger}
}

// List returns all billing projects
func (s *ProjectService) List(ctx context.Context) ([]*billing.BillingProject, error) {
	return s.projects.List(ctx)
}

// GetByTenant returns the billing project for a cloud tenant
func (s *ProjectService) GetByTenant(ctx context.Context, tenantID string) (*billing.BillingProject, error) {
	return s.projects.FindByTenant(ctx, tenantID)
}

// UpdateEmail changes where a tenant's notifications go
func (s *ProjectService) UpdateEmail(ctx context.Context, tenantID, email string) (*billing.BillingProject, error) {
	project, err := s.projects.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	project.UpdateEmail(email)
	if err := s.projects.Save(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project email updated", zap.String("tenant_id", tenantID))
	return project, nil
}
