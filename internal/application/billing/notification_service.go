package billing

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
)

// NotificationService persists notifications and hands them to the
// delivery backend. Delivery failures are logged and swallowed;
// billing work never fails because an email bounced.
type NotificationService struct {
	notifications billing.NotificationRepository
	projects      billing.ProjectRepository
	notifier      billing.Notifier
	logger        *zap.Logger
}

// NewNotificationService creates a notification service
func NewNotificationService(
	notifications billing.NotificationRepository,
	projects billing.ProjectRepository,
	notifier billing.Notifier,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		projects:      projects,
		notifier:      notifier,
		logger:        logger,
	}
}

// NotifyProject stores and delivers a message to a tenant
func (s *NotificationService) NotifyProject(ctx context.Context, projectID uuid.UUID, title, short, content string) (*billing.Notification, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	n := billing.NewNotification(projectID, project.Email, title, short, content)
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	s.deliver(ctx, n)
	return n, nil
}

// NotifyOperators stores and delivers an operator alert
func (s *NotificationService) NotifyOperators(ctx context.Context, title, short, content string) (*billing.Notification, error) {
	n := billing.NewOperatorNotification(title, short, content)
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	s.deliver(ctx, n)
	return n, nil
}

func (s *NotificationService) deliver(ctx context.Context, n *billing.Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Error("notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("title", n.Title),
			zap.Error(err),
		)
	}
}

// List returns notifications, all of them or one tenant's
func (s *NotificationService) List(ctx context.Context, tenantID string) ([]*billing.Notification, error) {
	if tenantID == "" {
		return s.notifications.List(ctx)
	}
	project, err := s.projects.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.notifications.ListByProject(ctx, project.ID)
}

// Get retrieves a notification and marks it read
func (s *NotificationService) Get(ctx context.Context, id uuid.UUID) (*billing.Notification, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.IsRead {
		n.MarkRead()
		if err := s.notifications.Save(ctx, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// SetRead flags a notification read or unread
func (s *NotificationService) SetRead(ctx context.Context, id uuid.UUID, read bool) (*billing.Notification, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if read {
		n.MarkRead()
	} else {
		n.MarkUnread()
	}
	if err := s.notifications.Save(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Resend delivers an existing notification again
func (s *NotificationService) Resend(ctx context.Context, id uuid.UUID) (*billing.Notification, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
