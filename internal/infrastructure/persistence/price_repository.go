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

// GormPriceRepository implements PriceRepository using GORM
type GormPriceRepository struct {
	db *gorm.DB
}

// NewGormPriceRepository creates a new GormPriceRepository
func NewGormPriceRepository(db *gorm.DB) *GormPriceRepository {
	return &GormPriceRepository{db: db}
}

// Upsert inserts a price entry or updates the rate of the existing row
// for the same kind and key
func (r *GormPriceRepository) Upsert(ctx context.Context, e *billing.PriceEntry) error {
	model := models.PriceEntryModelFromDomain(e)
	return dbFrom(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "currency", "updated_at"}),
		}).
		Create(model).Error
}

// FindByKindKey finds the price entry for a resource variant
func (r *GormPriceRepository) FindByKindKey(ctx context.Context, kind billing.ResourceKind, key string) (*billing.PriceEntry, error) {
	var model models.PriceEntryModel
	if err := dbFrom(ctx, r.db).
		Where("kind = ? AND key = ?", string(kind), key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByKind lists the price entries of one resource kind
func (r *GormPriceRepository) ListByKind(ctx context.Context, kind billing.ResourceKind) ([]*billing.PriceEntry, error) {
	var entryModels []models.PriceEntryModel
	if err := dbFrom(ctx, r.db).
		Where("kind = ?", string(kind)).
		Order("key ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toPriceEntries(entryModels), nil
}

// List lists the whole price list
func (r *GormPriceRepository) List(ctx context.Context) ([]*billing.PriceEntry, error) {
	var entryModels []models.PriceEntryModel
	if err := dbFrom(ctx, r.db).
		Order("kind ASC, key ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toPriceEntries(entryModels), nil
}

// Delete removes a price entry
func (r *GormPriceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := dbFrom(ctx, r.db).Where("id = ?", id).Delete(&models.PriceEntryModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteAll clears the price list. Billing reset only.
func (r *GormPriceRepository) DeleteAll(ctx context.Context) error {
	return dbFrom(ctx, r.db).Where("1 = 1").Delete(&models.PriceEntryModel{}).Error
}

func toPriceEntries(entryModels []models.PriceEntryModel) []*billing.PriceEntry {
	entries := make([]*billing.PriceEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = model.ToDomain()
	}
	return entries
}

// Ensure GormPriceRepository implements PriceRepository
var _ billing.PriceRepository = (*GormPriceRepository)(nil)
