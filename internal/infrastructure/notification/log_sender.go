// Package notification delivers billing notifications to tenants and
// operators. The log sender is the default delivery channel; a mail
// relay can replace it behind the same interface.
package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
)

// LogSender implements Notifier by writing the notification to the
// application log. Useful in development and as a safe default when no
// mail relay is configured.
type LogSender struct {
	sender string
	logger *zap.Logger
}

// NewLogSender creates a log-backed notification sender
func NewLogSender(sender string, logger *zap.Logger) *LogSender {
	return &LogSender{sender: sender, logger: logger}
}

// Send writes the notification to the log
func (s *LogSender) Send(_ context.Context, n *billing.Notification) error {
	fields := []zap.Field{
		zap.String("from", s.sender),
		zap.String("recipient", n.Recipient),
		zap.String("title", n.Title),
		zap.String("short_description", n.ShortDescription),
	}
	if n.ProjectID != nil {
		fields = append(fields, zap.String("project_id", n.ProjectID.String()))
	}
	s.logger.Info("Notification delivered", fields...)
	return nil
}

// Ensure LogSender implements Notifier
var _ billing.Notifier = (*LogSender)(nil)
