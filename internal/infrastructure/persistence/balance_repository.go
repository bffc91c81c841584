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

// GormBalanceRepository implements BalanceRepository using GORM
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewGormBalanceRepository creates a new GormBalanceRepository
func NewGormBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// Save creates or updates a balance
func (r *GormBalanceRepository) Save(ctx context.Context, b *billing.Balance) error {
	model := models.BalanceModelFromDomain(b)
	return dbFrom(ctx, r.db).Save(model).Error
}

// FindByProject finds the balance of a project
func (r *GormBalanceRepository) FindByProject(ctx context.Context, projectID uuid.UUID) (*billing.Balance, error) {
	return r.findByProject(dbFrom(ctx, r.db), projectID)
}

// FindByProjectForUpdate finds the balance of a project and locks the
// row for the enclosing transaction
func (r *GormBalanceRepository) FindByProjectForUpdate(ctx context.Context, projectID uuid.UUID) (*billing.Balance, error) {
	return r.findByProject(dbFrom(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), projectID)
}

// GetOrCreateByProject returns the balance of a project, opening a zero
// balance on first sight
func (r *GormBalanceRepository) GetOrCreateByProject(ctx context.Context, projectID uuid.UUID) (*billing.Balance, error) {
	existing, err := r.FindByProject(ctx, projectID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	balance := billing.NewBalance(projectID)
	if err := dbFrom(ctx, r.db).Create(models.BalanceModelFromDomain(balance)).Error; err != nil {
		return nil, err
	}
	return balance, nil
}

// List lists all balances
func (r *GormBalanceRepository) List(ctx context.Context) ([]*billing.Balance, error) {
	var balanceModels []models.BalanceModel
	if err := dbFrom(ctx, r.db).Order("created_at ASC").Find(&balanceModels).Error; err != nil {
		return nil, err
	}
	balances := make([]*billing.Balance, len(balanceModels))
	for i, model := range balanceModels {
		balances[i] = model.ToDomain()
	}
	return balances, nil
}

func (r *GormBalanceRepository) findByProject(query *gorm.DB, projectID uuid.UUID) (*billing.Balance, error) {
	var model models.BalanceModel
	if err := query.Where("project_id = ?", projectID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormBalanceRepository implements BalanceRepository
var _ billing.BalanceRepository = (*GormBalanceRepository)(nil)
