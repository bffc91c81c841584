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

// GormNotificationRepository implements NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create creates a new notification
func (r *GormNotificationRepository) Create(ctx context.Context, n *billing.Notification) error {
	model := models.NotificationModelFromDomain(n)
	return dbFrom(ctx, r.db).Create(model).Error
}

// Save updates an existing notification
func (r *GormNotificationRepository) Save(ctx context.Context, n *billing.Notification) error {
	model := models.NotificationModelFromDomain(n)
	return dbFrom(ctx, r.db).Save(model).Error
}

// FindByID finds a notification by ID
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Notification, error) {
	var model models.NotificationModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByProject lists the notifications addressed to one project
func (r *GormNotificationRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*billing.Notification, error) {
	var notificationModels []models.NotificationModel
	if err := dbFrom(ctx, r.db).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&notificationModels).Error; err != nil {
		return nil, err
	}
	return toNotifications(notificationModels), nil
}

// List lists all notifications, most recent first
func (r *GormNotificationRepository) List(ctx context.Context) ([]*billing.Notification, error) {
	var notificationModels []models.NotificationModel
	if err := dbFrom(ctx, r.db).
		Order("created_at DESC").
		Find(&notificationModels).Error; err != nil {
		return nil, err
	}
	return toNotifications(notificationModels), nil
}

func toNotifications(notificationModels []models.NotificationModel) []*billing.Notification {
	notifications := make([]*billing.Notification, len(notificationModels))
	for i, model := range notificationModels {
		notifications[i] = model.ToDomain()
	}
	return notifications
}

// Ensure GormNotificationRepository implements NotificationRepository
var _ billing.NotificationRepository = (*GormNotificationRepository)(nil)
