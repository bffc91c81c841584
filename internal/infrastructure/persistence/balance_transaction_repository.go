package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
)

// GormBalanceTransactionRepository implements BalanceTransactionRepository using GORM
type GormBalanceTransactionRepository struct {
	db *gorm.DB
}

// NewGormBalanceTransactionRepository creates a new GormBalanceTransactionRepository
func NewGormBalanceTransactionRepository(db *gorm.DB) *GormBalanceTransactionRepository {
	return &GormBalanceTransactionRepository{db: db}
}

// Create appends a balance movement. Rows are never updated or deleted.
func (r *GormBalanceTransactionRepository) Create(ctx context.Context, t *billing.BalanceTransaction) error {
	model := models.BalanceTransactionModelFromDomain(t)
	return dbFrom(ctx, r.db).Create(model).Error
}

// ListByBalance lists the movements of a balance, most recent first
func (r *GormBalanceTransactionRepository) ListByBalance(ctx context.Context, balanceID uuid.UUID) ([]*billing.BalanceTransaction, error) {
	var transactionModels []models.BalanceTransactionModel
	if err := dbFrom(ctx, r.db).
		Where("balance_id = ?", balanceID).
		Order("created_at DESC").
		Find(&transactionModels).Error; err != nil {
		return nil, err
	}
	transactions := make([]*billing.BalanceTransaction, len(transactionModels))
	for i, model := range transactionModels {
		transactions[i] = model.ToDomain()
	}
	return transactions, nil
}

// Ensure GormBalanceTransactionRepository implements BalanceTransactionRepository
var _ billing.BalanceTransactionRepository = (*GormBalanceTransactionRepository)(nil)
