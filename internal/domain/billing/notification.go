package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudbill/backend/internal/domain/shared"
)

// Notification is a persisted message to a tenant, or to operators
// when ProjectID is nil
type Notification struct {
	shared.BaseEntity
	ProjectID        *uuid.UUID
	Recipient        string
	Title            string
	ShortDescription string
	Content          string
	IsRead           bool
}

// NewNotification builds a tenant-addressed notification
func NewNotification(projectID uuid.UUID, recipient, title, short, content string) *Notification {
	return &Notification{
		BaseEntity:       shared.NewBaseEntity(),
		ProjectID:        &projectID,
		Recipient:        recipient,
		Title:            title,
		ShortDescription: short,
		Content:          content,
	}
}

// NewOperatorNotification builds a notification addressed to operators
func NewOperatorNotification(title, short, content string) *Notification {
	return &Notification{
		BaseEntity:       shared.NewBaseEntity(),
		Title:            title,
		ShortDescription: short,
		Content:          content,
	}
}

// MarkRead flags the notification as seen
func (n *Notification) MarkRead() {
	n.IsRead = true
	n.UpdatedAt = time.Now()
}

// MarkUnread flags the notification as not seen
func (n *Notification) MarkUnread() {
	n.IsRead = false
	n.UpdatedAt = time.Now()
}

// Notifier delivers a notification to its recipient. Delivery failure
// must not fail billing work; callers log and continue.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}
