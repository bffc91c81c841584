package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
)

// GormBillingProjectRepository implements ProjectRepository using GORM
type GormBillingProjectRepository struct {
	db *gorm.DB
}

// NewGormBillingProjectRepository creates a new GormBillingProjectRepository
func NewGormBillingProjectRepository(db *gorm.DB) *GormBillingProjectRepository {
	return &GormBillingProjectRepository{db: db}
}

// Save creates or updates a billing project
func (r *GormBillingProjectRepository) Save(ctx context.Context, p *billing.BillingProject) error {
	model := models.BillingProjectModelFromDomain(p)
	return dbFrom(ctx, r.db).Save(model).Error
}

// FindByID finds a billing project by ID
func (r *GormBillingProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.BillingProject, error) {
	var model models.BillingProjectModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenant finds a billing project by its cloud tenant ID
func (r *GormBillingProjectRepository) FindByTenant(ctx context.Context, tenantID string) (*billing.BillingProject, error) {
	var model models.BillingProjectModel
	if err := dbFrom(ctx, r.db).Where("tenant_id = ?", tenantID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetOrCreateByTenant returns the project for a tenant, creating it on
// first sight
func (r *GormBillingProjectRepository) GetOrCreateByTenant(ctx context.Context, tenantID string) (*billing.BillingProject, error) {
	existing, err := r.FindByTenant(ctx, tenantID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	project, err := billing.NewBillingProject(tenantID)
	if err != nil {
		return nil, err
	}
	if err := dbFrom(ctx, r.db).Create(models.BillingProjectModelFromDomain(project)).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// List lists all billing projects
func (r *GormBillingProjectRepository) List(ctx context.Context) ([]*billing.BillingProject, error) {
	var projectModels []models.BillingProjectModel
	if err := dbFrom(ctx, r.db).Order("created_at ASC").Find(&projectModels).Error; err != nil {
		return nil, err
	}
	projects := make([]*billing.BillingProject, len(projectModels))
	for i, model := range projectModels {
		projects[i] = model.ToDomain()
	}
	return projects, nil
}

// DeleteAll removes every project together with its invoices,
// components, balances, and balance transactions. Billing reset only.
func (r *GormBillingProjectRepository) DeleteAll(ctx context.Context) error {
	db := dbFrom(ctx, r.db)

	if err := db.Where("balance_id IN (?)",
		db.Session(&gorm.Session{NewDB: true}).Model(&models.BalanceModel{}).Select("id"),
	).Delete(&models.BalanceTransactionModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("1 = 1").Delete(&models.BalanceModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("invoice_id IN (?)",
		db.Session(&gorm.Session{NewDB: true}).Model(&models.InvoiceModel{}).Select("id"),
	).Delete(&models.UsageComponentModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("1 = 1").Delete(&models.InvoiceModel{}).Error; err != nil {
		return err
	}
	return db.Where("1 = 1").Delete(&models.BillingProjectModel{}).Error
}

// Ensure GormBillingProjectRepository implements ProjectRepository
var _ billing.ProjectRepository = (*GormBillingProjectRepository)(nil)
