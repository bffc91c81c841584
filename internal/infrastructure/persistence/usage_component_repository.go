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

// GormUsageComponentRepository implements ComponentRepository using GORM
type GormUsageComponentRepository struct {
	db *gorm.DB
}

// NewGormUsageComponentRepository creates a new GormUsageComponentRepository
func NewGormUsageComponentRepository(db *gorm.DB) *GormUsageComponentRepository {
	return &GormUsageComponentRepository{db: db}
}

// Create creates a new usage component
func (r *GormUsageComponentRepository) Create(ctx context.Context, c *billing.UsageComponent) error {
	model := models.UsageComponentModelFromDomain(c)
	return dbFrom(ctx, r.db).Create(model).Error
}

// Save updates an existing usage component
func (r *GormUsageComponentRepository) Save(ctx context.Context, c *billing.UsageComponent) error {
	model := models.UsageComponentModelFromDomain(c)
	return dbFrom(ctx, r.db).Save(model).Error
}

// FindByID finds a usage component by ID
func (r *GormUsageComponentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.UsageComponent, error) {
	var model models.UsageComponentModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByInvoice lists all components on an invoice
func (r *GormUsageComponentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*billing.UsageComponent, error) {
	var componentModels []models.UsageComponentModel
	if err := dbFrom(ctx, r.db).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&componentModels).Error; err != nil {
		return nil, err
	}
	return toComponents(componentModels), nil
}

// ListByInvoiceAndKind lists the components of one resource kind on an
// invoice
func (r *GormUsageComponentRepository) ListByInvoiceAndKind(ctx context.Context, invoiceID uuid.UUID, kind billing.ResourceKind) ([]*billing.UsageComponent, error) {
	var componentModels []models.UsageComponentModel
	if err := dbFrom(ctx, r.db).
		Where("invoice_id = ? AND kind = ?", invoiceID, string(kind)).
		Order("created_at ASC").
		Find(&componentModels).Error; err != nil {
		return nil, err
	}
	return toComponents(componentModels), nil
}

// FindActiveByResource finds the still accruing component metering a
// cloud resource
func (r *GormUsageComponentRepository) FindActiveByResource(ctx context.Context, kind billing.ResourceKind, resourceID string) (*billing.UsageComponent, error) {
	var model models.UsageComponentModel
	if err := dbFrom(ctx, r.db).
		Where("kind = ? AND resource_id = ? AND end_date IS NULL", string(kind), resourceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByKind counts the components of a kind on in-progress invoices
func (r *GormUsageComponentRepository) CountByKind(ctx context.Context, kind billing.ResourceKind, activeOnly bool) (int64, error) {
	var count int64
	query := r.inProgressByKind(ctx, kind, activeOnly)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CostByKind sums the finalized charges of a kind on in-progress
// invoices
func (r *GormUsageComponentRepository) CostByKind(ctx context.Context, kind billing.ResourceKind, activeOnly bool) (float64, error) {
	var result struct {
		Total float64
	}
	query := r.inProgressByKind(ctx, kind, activeOnly)
	if err := query.
		Select("COALESCE(SUM(usage_components.price_charged), 0) as total").
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

// inProgressByKind scopes a query to components of one kind whose
// invoice is still in progress
func (r *GormUsageComponentRepository) inProgressByKind(ctx context.Context, kind billing.ResourceKind, activeOnly bool) *gorm.DB {
	query := dbFrom(ctx, r.db).
		Model(&models.UsageComponentModel{}).
		Joins("JOIN invoices ON invoices.id = usage_components.invoice_id").
		Where("usage_components.kind = ? AND invoices.state = ?", string(kind), string(billing.InvoiceInProgress))
	if activeOnly {
		query = query.Where("usage_components.end_date IS NULL")
	}
	return query
}

func toComponents(componentModels []models.UsageComponentModel) []*billing.UsageComponent {
	components := make([]*billing.UsageComponent, len(componentModels))
	for i, model := range componentModels {
		components[i] = model.ToDomain()
	}
	return components
}

// Ensure GormUsageComponentRepository implements ComponentRepository
var _ billing.ComponentRepository = (*GormUsageComponentRepository)(nil)
