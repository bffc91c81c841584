package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/escalation"
	"github.com/cloudbill/backend/internal/domain/shared"
)

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

// SweepResult aggregates one pass over the unpaid invoices
type SweepResult struct {
	Processed  int
	ActionsRun int
	Failed     map[uuid.UUID]error
}

// UnpaidService applies the escalation policy to unpaid invoices.
// Periodic sweeps fire the entries due exactly on an invoice's unpaid
// age; resource events re-apply the most severe entry already due.
type UnpaidService struct {
	invoices      billing.InvoiceRepository
	projects      billing.ProjectRepository
	policy        *escalation.Policy
	cloud         escalation.CloudClient
	notifications *appbilling.NotificationService
	actionTimeout time.Duration
	logger        *zap.Logger
}

// NewUnpaidService creates an unpaid invoice escalation service
func NewUnpaidService(
	invoices billing.InvoiceRepository,
	projects billing.ProjectRepository,
	policy *escalation.Policy,
	cloud escalation.CloudClient,
	notifications *appbilling.NotificationService,
	actionTimeout time.Duration,
	logger *zap.Logger,
) *UnpaidService {
	if actionTimeout <= 0 {
		actionTimeout = 5 * time.Minute
	}
	return &UnpaidService{
		invoices:      invoices,
		projects:      projects,
		policy:        policy,
		cloud:         cloud,
		notifications: notifications,
		actionTimeout: actionTimeout,
		logger:        logger,
	}
}

// SweepUnpaid walks every unpaid invoice once. Invoices are handled in
// their own goroutine with a bounded context; one tenant's broken
// resources never stall the rest of the sweep.
func (s *UnpaidService) SweepUnpaid(ctx context.Context, now time.Time) (*SweepResult, error) {
	if s.policy.IsEmpty() {
		s.logger.Debug("no escalation policy configured, skipping unpaid sweep")
		return &SweepResult{Failed: map[uuid.UUID]error{}}, nil
	}
	ids, err := s.invoices.FindIDsInState(ctx, billing.InvoiceUnpaid)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Failed: make(map[uuid.UUID]error)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(invoiceID uuid.UUID) {
			defer wg.Done()
			actionCtx, cancel := context.WithTimeout(ctx, s.actionTimeout)
			defer cancel()

			ran, err := s.processInvoice(actionCtx, invoiceID, now)
			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			result.ActionsRun += ran
			if err != nil {
				result.Failed[invoiceID] = err
			}
		}(id)
	}
	wg.Wait()

	s.logger.Info("unpaid invoice sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("actions_run", result.ActionsRun),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *UnpaidService) processInvoice(ctx context.Context, invoiceID uuid.UUID, now time.Time) (int, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return 0, err
	}
	if !inv.IsUnpaid() {
		return 0, nil
	}
	project, err := s.projects.FindByID(ctx, inv.ProjectID)
	if err != nil {
		return 0, err
	}

	age := inv.AgeDays(now)
	entries := s.policy.SelectExact(age)
	if len(entries) == 0 {
		return 0, nil
	}

	var ran int
	var firstErr error
	for _, entry := range entries {
		if err := s.runAction(ctx, entry, project, inv); err != nil {
			s.logger.Error("escalation action failed",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("tenant_id", project.TenantID),
				zap.String("action", string(entry.Action)),
				zap.Int("day", entry.Day),
				zap.Error(err),
			)
			s.alertOperators(ctx, entry, project, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ran++
	}
	return ran, firstErr
}

// HandleResourceEvent re-applies the escalation already in force when
// a delinquent tenant grows new resources, so they do not escape the
// sanction applied to the old ones.
func (s *UnpaidService) HandleResourceEvent(ctx context.Context, tenantID string, now time.Time) error {
	project, err := s.projects.FindByTenant(ctx, tenantID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	inv, err := s.invoices.FindOldestUnpaidByProject(ctx, project.ID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	entry, ok := s.policy.SelectEventTriggered(inv.AgeDays(now))
	if !ok {
		return nil
	}

	actionCtx, cancel := context.WithTimeout(ctx, s.actionTimeout)
	defer cancel()
	if err := s.runAction(actionCtx, entry, project, inv); err != nil {
		s.alertOperators(ctx, entry, project, err)
		return err
	}
	return nil
}

func (s *UnpaidService) runAction(ctx context.Context, entry escalation.Entry, project *billing.BillingProject, inv *billing.Invoice) error {
	s.logger.Info("running escalation action",
		zap.String("tenant_id", project.TenantID),
		zap.String("action", string(entry.Action)),
		zap.Int("day", entry.Day),
	)
	switch entry.Action {
	case escalation.ActionSendMessage:
		title, short, content := reminderText(entry, inv)
		_, err := s.notifications.NotifyProject(ctx, project.ID, title, short, content)
		return err
	case escalation.ActionStopInstances:
		return s.cloud.StopInstances(ctx, project.TenantID)
	case escalation.ActionSuspendInstances:
		return s.cloud.SuspendInstances(ctx, project.TenantID)
	case escalation.ActionPauseInstances:
		return s.cloud.PauseInstances(ctx, project.TenantID)
	case escalation.ActionDeleteEverything:
		return escalation.DeleteEverything(ctx, s.cloud, project.TenantID)
	default:
		return fmt.Errorf("unknown escalation action %q", entry.Action)
	}
}

// reminderText takes the message configured on the policy entry,
// filling in a generic reminder for any field left blank
func reminderText(entry escalation.Entry, inv *billing.Invoice) (title, short, content string) {
	title = entry.MessageTitle
	if title == "" {
		title = "Unpaid invoice reminder"
	}
	short = entry.MessageShort
	if short == "" {
		short = fmt.Sprintf("Invoice %s is %d days overdue", inv.ID, entry.Day)
	}
	content = entry.MessageContent
	if content == "" {
		content = fmt.Sprintf("Your invoice %s over %s has been unpaid for %d days. "+
			"Please settle it to avoid service interruption.",
			inv.ID, inv.AmountDue(), entry.Day)
	}
	return title, short, content
}

func (s *UnpaidService) alertOperators(ctx context.Context, entry escalation.Entry, project *billing.BillingProject, actionErr error) {
	_, err := s.notifications.NotifyOperators(ctx,
		"Escalation action failed",
		fmt.Sprintf("%s failed for tenant %s", entry.Action, project.TenantID),
		fmt.Sprintf("Escalation action %q (day %d) failed for tenant %s: %v",
			entry.Action, entry.Day, project.TenantID, actionErr),
	)
	if err != nil {
		s.logger.Error("operator alert failed", zap.Error(err))
	}
}
