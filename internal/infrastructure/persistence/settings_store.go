package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
)

// GormSettingsStore implements SettingsStore on a key/value table
type GormSettingsStore struct {
	db *gorm.DB
}

// NewGormSettingsStore creates a new GormSettingsStore
func NewGormSettingsStore(db *gorm.DB) *GormSettingsStore {
	return &GormSettingsStore{db: db}
}

// Get returns the value stored under key
func (s *GormSettingsStore) Get(ctx context.Context, key string) (string, error) {
	var model models.SettingModel
	if err := dbFrom(ctx, s.db).Where("key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return model.Value, nil
}

// Set writes the value under key, inserting or overwriting
func (s *GormSettingsStore) Set(ctx context.Context, key, value string) error {
	model := models.SettingModel{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return dbFrom(ctx, s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model).Error
}

// All returns every stored setting
func (s *GormSettingsStore) All(ctx context.Context) (map[string]string, error) {
	var settingModels []models.SettingModel
	if err := dbFrom(ctx, s.db).Find(&settingModels).Error; err != nil {
		return nil, err
	}
	values := make(map[string]string, len(settingModels))
	for _, model := range settingModels {
		values[model.Key] = model.Value
	}
	return values, nil
}

// Ensure GormSettingsStore implements SettingsStore
var _ billing.SettingsStore = (*GormSettingsStore)(nil)
