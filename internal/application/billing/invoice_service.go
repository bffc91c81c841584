package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// CloseResult aggregates the per-component outcomes of closing one
// invoice
type CloseResult struct {
	InvoiceID        uuid.UUID
	SuccessorID      *uuid.UUID
	Subtotal         valueobject.Money
	Total            valueobject.Money
	ComponentsClosed int
	ComponentsRolled int
	Settled          bool
}

// BatchResult aggregates a sweep over many invoices. A failed invoice
// rolls back alone; the sweep continues.
type BatchResult struct {
	Closed  int
	Skipped int
	Failed  map[uuid.UUID]error
}

// InvoiceService drives the invoice lifecycle: period close with
// successor creation and component roll, settlement, and reversal.
type InvoiceService struct {
	tm            billing.TransactionManager
	invoices      billing.InvoiceRepository
	components    billing.ComponentRepository
	projects      billing.ProjectRepository
	registry      *billing.Registry
	balances      *BalanceService
	notifications *NotificationService
	logger        *zap.Logger
}

// NewInvoiceService creates an invoice service
func NewInvoiceService(
	tm billing.TransactionManager,
	invoices billing.InvoiceRepository,
	components billing.ComponentRepository,
	projects billing.ProjectRepository,
	registry *billing.Registry,
	balances *BalanceService,
	notifications *NotificationService,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		tm:            tm,
		invoices:      invoices,
		components:    components,
		projects:      projects,
		registry:      registry,
		balances:      balances,
		notifications: notifications,
		logger:        logger,
	}
}

// Get returns one invoice with its components
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, []*billing.UsageComponent, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	comps, err := s.components.ListByInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inv, comps, nil
}

// List returns all invoices
func (s *InvoiceService) List(ctx context.Context) ([]*billing.Invoice, error) {
	return s.invoices.List(ctx)
}

// ListByTenant returns a tenant's invoices, newest period first
func (s *InvoiceService) ListByTenant(ctx context.Context, tenantID string) ([]*billing.Invoice, error) {
	project, err := s.projects.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.invoices.ListByProject(ctx, project.ID)
}

// CloseActiveInvoice ends one invoice's billing period: finalize every
// still-active component, total the charges with tax, transition to
// UNPAID, and when createSuccessor is set open the next period and
// roll the active components onto it one to one. All of it commits or
// rolls back as a single database transaction.
func (s *InvoiceService) CloseActiveInvoice(
	ctx context.Context,
	invoiceID uuid.UUID,
	at time.Time,
	cfg billing.BillingConfig,
	createSuccessor bool,
) (*CloseResult, error) {
	result := &CloseResult{InvoiceID: invoiceID}
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsInProgress() {
			s.logger.Debug("invoice no longer in progress, skipping close",
				zap.String("invoice_id", invoiceID.String()),
				zap.String("state", string(inv.State)),
			)
			return nil
		}

		all, err := s.components.ListByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		var active []*billing.UsageComponent
		for _, c := range all {
			if c.IsActive() {
				active = append(active, c)
			}
		}

		for _, c := range active {
			handler, err := s.registry.HandlerFor(c.Kind)
			if err != nil {
				return err
			}
			if err := handler.Close(c, at); err != nil {
				return fmt.Errorf("close %s component %s: %w", c.Kind, c.ID, err)
			}
			if err := s.components.Save(ctx, c); err != nil {
				return err
			}
			result.ComponentsClosed++
		}

		subtotal, err := billing.SumCharges(all)
		if err != nil {
			return err
		}
		if err := inv.Close(at, subtotal, cfg.TaxRate); err != nil {
			return err
		}
		if err := s.invoices.Save(ctx, inv); err != nil {
			return err
		}
		result.Subtotal = inv.Subtotal
		result.Total = inv.Total

		if createSuccessor {
			next := billing.NewInvoice(inv.ProjectID, at, &inv.ID)
			if err := s.invoices.Create(ctx, next); err != nil {
				return err
			}
			result.SuccessorID = &next.ID
			for _, c := range active {
				handler, err := s.registry.HandlerFor(c.Kind)
				if err != nil {
					return err
				}
				rolled, err := handler.Roll(ctx, c, next.ID, at)
				if err != nil {
					return fmt.Errorf("roll %s component %s: %w", c.Kind, c.ID, err)
				}
				if err := s.components.Create(ctx, rolled); err != nil {
					return err
				}
				result.ComponentsRolled++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice closed",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("total", result.Total.String()),
		zap.Int("components_closed", result.ComponentsClosed),
		zap.Int("components_rolled", result.ComponentsRolled),
	)
	return result, nil
}

// CloseAllInProgress sweeps every active invoice with one settings
// snapshot. Each invoice closes in its own transaction; one bad
// invoice does not stop the sweep. With cfg.AutoDeduct set, each
// closed invoice is settled from the project balance as a separate
// atomic step.
func (s *InvoiceService) CloseAllInProgress(
	ctx context.Context,
	at time.Time,
	cfg billing.BillingConfig,
	createSuccessor bool,
) (*BatchResult, error) {
	ids, err := s.invoices.FindIDsInState(ctx, billing.InvoiceInProgress)
	if err != nil {
		return nil, err
	}
	batch := &BatchResult{Failed: make(map[uuid.UUID]error)}
	for _, id := range ids {
		_, err := s.CloseActiveInvoice(ctx, id, at, cfg, createSuccessor)
		if err != nil {
			s.logger.Error("invoice close failed, continuing sweep",
				zap.String("invoice_id", id.String()),
				zap.Error(err),
			)
			batch.Failed[id] = err
			continue
		}
		batch.Closed++
		if cfg.AutoDeduct {
			if err := s.AutoDeduct(ctx, id, cfg); err != nil {
				s.logger.Error("auto deduct failed",
					zap.String("invoice_id", id.String()),
					zap.Error(err),
				)
				batch.Failed[id] = err
			}
		}
	}
	return batch, nil
}

// AutoDeduct settles an unpaid invoice from the project balance when
// it covers the total. Insufficient funds leave the invoice unpaid
// without error. Either way the tenant is told how the period close
// settled: paid from balance, or awaiting payment.
func (s *InvoiceService) AutoDeduct(ctx context.Context, invoiceID uuid.UUID, cfg billing.BillingConfig) error {
	var (
		inv     *billing.Invoice
		settled bool
	)
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsUnpaid() {
			inv = nil
			return nil
		}
		if inv.Total.IsZero() {
			settled = true
			return s.finishLocked(ctx, inv, time.Now())
		}
		balance, err := s.balances.WithdrawIfSufficient(ctx, inv.ProjectID, inv.Total,
			fmt.Sprintf("auto deduct for invoice %s", inv.ID))
		if err != nil {
			return err
		}
		if balance == nil {
			return nil
		}
		settled = true
		return s.finishLocked(ctx, inv, time.Now())
	})
	if err != nil {
		return err
	}
	if inv != nil {
		s.notifySettlement(ctx, inv, cfg, settled)
	}
	return nil
}

// notifySettlement emits the post-close notification: "paid from
// balance" on a successful auto deduct, "ready to pay" when the
// balance fell short. Notification failures are logged, not returned;
// the settlement itself already committed.
func (s *InvoiceService) notifySettlement(ctx context.Context, inv *billing.Invoice, cfg billing.BillingConfig, settled bool) {
	var title, short, content string
	if settled {
		title = "Invoice paid from balance"
		short = fmt.Sprintf("Invoice %s was settled from your balance", inv.ID)
		content = fmt.Sprintf("Your invoice %s over %s has been paid from your project balance.",
			inv.ID, inv.AmountDue())
	} else {
		title = "Invoice ready to pay"
		short = fmt.Sprintf("Invoice %s awaits payment", inv.ID)
		content = fmt.Sprintf("Your invoice %s over %s is ready to pay. "+
			"Your balance did not cover the total; please top it up or settle the invoice directly.",
			inv.ID, inv.AmountDue())
	}
	if cfg.EmailTag != "" {
		title = fmt.Sprintf("[%s] %s", cfg.EmailTag, title)
	}
	if cfg.CompanyName != "" {
		content += "\n\n" + cfg.CompanyName
		if cfg.CompanyAddress != "" {
			content += "\n" + cfg.CompanyAddress
		}
	}
	if _, err := s.notifications.NotifyProject(ctx, inv.ProjectID, title, short, content); err != nil {
		s.logger.Error("settlement notification failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}
}

// Finish settles an unpaid invoice. Unless skipBalance is set the
// total is debited from the project balance, unconditionally, in the
// same transaction. An invoice in any other state is left untouched
// and returned as is; nothing is debited.
func (s *InvoiceService) Finish(ctx context.Context, invoiceID uuid.UUID, skipBalance bool) (*billing.Invoice, error) {
	var result *billing.Invoice
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsUnpaid() {
			result = inv
			return nil
		}
		if !skipBalance && inv.Total.IsPositive() {
			if _, err := s.balances.Withdraw(ctx, inv.ProjectID, inv.Total,
				fmt.Sprintf("payment of invoice %s", inv.ID)); err != nil {
				return err
			}
		}
		if err := s.finishLocked(ctx, inv, time.Now()); err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *InvoiceService) finishLocked(ctx context.Context, inv *billing.Invoice, at time.Time) error {
	if err := inv.Finish(at); err != nil {
		return err
	}
	if err := s.invoices.Save(ctx, inv); err != nil {
		return err
	}
	s.logger.Info("invoice finished", zap.String("invoice_id", inv.ID.String()))
	return nil
}

// RollbackToUnpaid reverts a mistaken settlement. Unless skipBalance
// is set the total is credited back to the project balance, so a
// finish/rollback round trip restores it exactly. An invoice that is
// not finished is returned as is, with no refund.
func (s *InvoiceService) RollbackToUnpaid(ctx context.Context, invoiceID uuid.UUID, skipBalance bool) (*billing.Invoice, error) {
	var (
		result   *billing.Invoice
		reverted bool
	)
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsFinished() {
			result = inv
			return nil
		}
		if err := inv.RollbackToUnpaid(time.Now()); err != nil {
			return err
		}
		if err := s.invoices.Save(ctx, inv); err != nil {
			return err
		}
		if !skipBalance && inv.Total.IsPositive() {
			if _, err := s.balances.Deposit(ctx, inv.ProjectID, inv.Total,
				fmt.Sprintf("rollback of invoice %s", inv.ID)); err != nil {
				return err
			}
		}
		result = inv
		reverted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reverted {
		s.logger.Info("invoice rolled back to unpaid", zap.String("invoice_id", invoiceID.String()))
	}
	return result, nil
}
