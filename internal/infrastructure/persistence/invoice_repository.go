package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Create creates a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	return dbFrom(ctx, r.db).Create(model).Error
}

// Save updates an existing invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	return dbFrom(ctx, r.db).Save(model).Error
}

// FindByID finds an invoice by ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return r.findOne(dbFrom(ctx, r.db).Where("id = ?", id))
}

// FindByIDForUpdate finds an invoice by ID and locks the row for the
// enclosing transaction
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return r.findOne(dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindInProgressByProject finds the active billing period of a project
func (r *GormInvoiceRepository) FindInProgressByProject(ctx context.Context, projectID uuid.UUID) (*billing.Invoice, error) {
	return r.findOne(dbFrom(ctx, r.db).
		Where("project_id = ? AND state = ?", projectID, string(billing.InvoiceInProgress)))
}

// FindOldestUnpaidByProject finds the longest outstanding unpaid invoice
// of a project
func (r *GormInvoiceRepository) FindOldestUnpaidByProject(ctx context.Context, projectID uuid.UUID) (*billing.Invoice, error) {
	return r.findOne(dbFrom(ctx, r.db).
		Where("project_id = ? AND state = ?", projectID, string(billing.InvoiceUnpaid)).
		Order("end_date ASC"))
}

// FindIDsInState returns the IDs of all invoices in the given state so
// a sweep can lock and load each one in its own transaction
func (r *GormInvoiceRepository) FindIDsInState(ctx context.Context, state billing.InvoiceState) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbFrom(ctx, r.db).
		Model(&models.InvoiceModel{}).
		Where("state = ?", string(state)).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListByProject lists all invoices of a project, newest period first
func (r *GormInvoiceRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := dbFrom(ctx, r.db).
		Where("project_id = ?", projectID).
		Order("start_date DESC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

// List lists all invoices
func (r *GormInvoiceRepository) List(ctx context.Context) ([]*billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := dbFrom(ctx, r.db).
		Order("start_date DESC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

func (r *GormInvoiceRepository) findOne(query *gorm.DB) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func toInvoices(invoiceModels []models.InvoiceModel) []*billing.Invoice {
	invoices := make([]*billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = model.ToDomain()
	}
	return invoices
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
