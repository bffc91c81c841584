package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
)

// ResourceInit describes one resource to start metering when billing
// turns on
type ResourceInit struct {
	Kind    billing.ResourceKind
	Payload billing.CreatePayload
}

// TenantInit carries a tenant's existing resources at enable time
type TenantInit struct {
	TenantID  string
	Email     string
	Resources []ResourceInit
}

// DriverService turns billing on and off and runs the period close.
// It owns the billing_enabled flag and the lazy creation of projects
// and first invoices.
type DriverService struct {
	tm         billing.TransactionManager
	settings   billing.SettingsStore
	projects   billing.ProjectRepository
	invoices   billing.InvoiceRepository
	components billing.ComponentRepository
	prices     billing.PriceRepository
	registry   *billing.Registry
	invoiceSvc *InvoiceService
	logger     *zap.Logger
}

// NewDriverService creates a billing driver
func NewDriverService(
	tm billing.TransactionManager,
	settings billing.SettingsStore,
	projects billing.ProjectRepository,
	invoices billing.InvoiceRepository,
	components billing.ComponentRepository,
	prices billing.PriceRepository,
	registry *billing.Registry,
	invoiceSvc *InvoiceService,
	logger *zap.Logger,
) *DriverService {
	return &DriverService{
		tm:         tm,
		settings:   settings,
		projects:   projects,
		invoices:   invoices,
		components: components,
		prices:     prices,
		registry:   registry,
		invoiceSvc: invoiceSvc,
		logger:     logger,
	}
}

// firstOfMonth clamps a timestamp to the start of its calendar month.
// Billing periods always open on month boundaries.
func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EnableBilling flips billing on and opens the first invoice for each
// tenant, metering the resources it already runs. Projects and
// invoices are created lazily and memoized per call, so one tenant
// appearing twice in the payload still gets exactly one invoice.
// Resource creation uses fallback pricing; a fresh deployment with an
// empty price list must not fail to enable.
func (s *DriverService) EnableBilling(ctx context.Context, inits []TenantInit) error {
	if err := s.settings.Set(ctx, billing.SettingBillingEnabled, strconv.FormatBool(true)); err != nil {
		return err
	}
	start := firstOfMonth(time.Now().UTC())

	type tenantState struct {
		project *billing.BillingProject
		invoice *billing.Invoice
	}
	seen := make(map[string]*tenantState)

	return s.tm.Do(ctx, func(ctx context.Context) error {
		for _, init := range inits {
			state, ok := seen[init.TenantID]
			if !ok {
				project, err := s.projects.GetOrCreateByTenant(ctx, init.TenantID)
				if err != nil {
					return err
				}
				if init.Email != "" && project.Email != init.Email {
					project.UpdateEmail(init.Email)
					if err := s.projects.Save(ctx, project); err != nil {
						return err
					}
				}
				invoice, err := s.invoices.FindInProgressByProject(ctx, project.ID)
				if err != nil {
					if !isNotFound(err) {
						return err
					}
					invoice = billing.NewInvoice(project.ID, start, nil)
					if err := s.invoices.Create(ctx, invoice); err != nil {
						return err
					}
				}
				state = &tenantState{project: project, invoice: invoice}
				seen[init.TenantID] = state
			}

			for _, res := range init.Resources {
				handler, err := s.registry.HandlerFor(res.Kind)
				if err != nil {
					return err
				}
				payload := res.Payload
				if payload.StartDate.IsZero() || payload.StartDate.Before(state.invoice.StartDate) {
					payload.StartDate = state.invoice.StartDate
				}
				component, err := handler.Create(ctx, state.invoice.ID, payload, true)
				if err != nil {
					return fmt.Errorf("init %s %s for tenant %s: %w",
						res.Kind, payload.ResourceID, init.TenantID, err)
				}
				if err := s.components.Create(ctx, component); err != nil {
					return err
				}
			}
			s.logger.Info("billing enabled for tenant",
				zap.String("tenant_id", init.TenantID),
				zap.Int("resources", len(init.Resources)),
			)
		}
		return nil
	})
}

// DisableBilling flips billing off and closes every active invoice
// for good, without opening successors
func (s *DriverService) DisableBilling(ctx context.Context) (*BatchResult, error) {
	if err := s.settings.Set(ctx, billing.SettingBillingEnabled, strconv.FormatBool(false)); err != nil {
		return nil, err
	}
	cfg, err := billing.LoadBillingConfig(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("billing disabled, closing all active invoices")
	return s.invoiceSvc.CloseAllInProgress(ctx, time.Now().UTC(), cfg, false)
}

// ResetBilling flips billing off and erases all billing state:
// projects cascade to invoices, components, balances, and
// transactions; the price list is cleared too
func (s *DriverService) ResetBilling(ctx context.Context) error {
	if err := s.settings.Set(ctx, billing.SettingBillingEnabled, strconv.FormatBool(false)); err != nil {
		return err
	}
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		if err := s.projects.DeleteAll(ctx); err != nil {
			return err
		}
		return s.prices.DeleteAll(ctx)
	})
	if err != nil {
		return err
	}
	s.logger.Warn("billing state reset")
	return nil
}

// RunPeriodClose closes every active invoice and opens the next
// period. The settings snapshot is taken once, up front, so the whole
// sweep runs under one configuration.
func (s *DriverService) RunPeriodClose(ctx context.Context) (*BatchResult, error) {
	cfg, err := billing.LoadBillingConfig(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, shared.ErrBillingDisabled
	}
	at := time.Now().UTC()
	batch, err := s.invoiceSvc.CloseAllInProgress(ctx, at, cfg, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("billing period close finished",
		zap.Int("closed", batch.Closed),
		zap.Int("failed", len(batch.Failed)),
	)
	return batch, nil
}

// TrackResource opens a component for a resource that appeared while
// billing is running. The tenant's project and active invoice are
// created on demand.
func (s *DriverService) TrackResource(ctx context.Context, tenantID string, res ResourceInit) (*billing.UsageComponent, error) {
	cfg, err := billing.LoadBillingConfig(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, shared.ErrBillingDisabled
	}
	var component *billing.UsageComponent
	err = s.tm.Do(ctx, func(ctx context.Context) error {
		project, err := s.projects.GetOrCreateByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		invoice, err := s.invoices.FindInProgressByProject(ctx, project.ID)
		if err != nil {
			if !isNotFound(err) {
				return err
			}
			invoice = billing.NewInvoice(project.ID, firstOfMonth(time.Now().UTC()), nil)
			if err := s.invoices.Create(ctx, invoice); err != nil {
				return err
			}
		}
		handler, err := s.registry.HandlerFor(res.Kind)
		if err != nil {
			return err
		}
		payload := res.Payload
		if payload.StartDate.IsZero() {
			payload.StartDate = time.Now().UTC()
		}
		component, err = handler.Create(ctx, invoice.ID, payload, false)
		if err != nil {
			return err
		}
		return s.components.Create(ctx, component)
	})
	if err != nil {
		return nil, err
	}
	return component, nil
}

// ReleaseResource ends metering for a resource deleted mid-period.
// The component closes and prices immediately but stays on its
// invoice.
func (s *DriverService) ReleaseResource(ctx context.Context, kind billing.ResourceKind, resourceID string) error {
	return s.tm.Do(ctx, func(ctx context.Context) error {
		component, err := s.components.FindActiveByResource(ctx, kind, resourceID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		handler, err := s.registry.HandlerFor(kind)
		if err != nil {
			return err
		}
		if err := handler.Close(component, time.Now().UTC()); err != nil {
			return err
		}
		return s.components.Save(ctx, component)
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
