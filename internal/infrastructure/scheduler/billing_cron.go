package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	appescalation "github.com/cloudbill/backend/internal/application/escalation"
	"github.com/cloudbill/backend/internal/domain/shared"
)

// Lease names for the two periodic sweeps
const (
	leaseInvoiceClose = "invoice-close"
	leaseUnpaidSweep  = "unpaid-sweep"
)

// Lock serializes sweeps across instances. A sweep runs only on the
// instance that wins the lease.
type Lock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// PeriodCloser closes every in-progress billing period
type PeriodCloser interface {
	RunPeriodClose(ctx context.Context) (*appbilling.BatchResult, error)
}

// UnpaidSweeper applies the escalation policy to unpaid invoices
type UnpaidSweeper interface {
	SweepUnpaid(ctx context.Context, now time.Time) (*appescalation.SweepResult, error)
}

// Config holds the billing scheduler settings
type Config struct {
	Enabled bool
	// InvoiceCronSchedule is the cron expression for billing period
	// close, normally the first of the month
	InvoiceCronSchedule string
	// UnpaidCronSchedule is the cron expression for the daily unpaid
	// invoice escalation sweep
	UnpaidCronSchedule string
	JobTimeout         time.Duration
	LockTTL            time.Duration
}

// BillingCronScheduler runs the billing period close and the unpaid
// invoice escalation sweep on cron schedules
type BillingCronScheduler struct {
	config  Config
	closer  PeriodCloser
	sweeper UnpaidSweeper
	lock    Lock
	logger  *zap.Logger

	cron *cron.Cron

	mu               sync.Mutex
	isRunning        bool
	lastInvoiceRunAt *time.Time
	lastUnpaidRunAt  *time.Time
}

// NewBillingCronScheduler creates the billing cron scheduler
func NewBillingCronScheduler(config Config, closer PeriodCloser, sweeper UnpaidSweeper, lock Lock, logger *zap.Logger) *BillingCronScheduler {
	return &BillingCronScheduler{
		config:  config,
		closer:  closer,
		sweeper: sweeper,
		lock:    lock,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start registers the cron entries and starts the scheduler
func (s *BillingCronScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.InvoiceCronSchedule, func() {
		s.runInvoiceClose(context.Background())
	}); err != nil {
		return ErrInvalidConfig
	}
	if _, err := s.cron.AddFunc(s.config.UnpaidCronSchedule, func() {
		s.runUnpaidSweep(context.Background())
	}); err != nil {
		return ErrInvalidConfig
	}

	s.cron.Start()
	s.isRunning = true

	s.logger.Info("Billing cron scheduler started",
		zap.String("invoice_schedule", s.config.InvoiceCronSchedule),
		zap.String("unpaid_schedule", s.config.UnpaidCronSchedule),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *BillingCronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("Billing cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Billing cron scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerInvoiceRun triggers an immediate billing period close.
// Uses a background context so the run survives the HTTP request that
// triggered it.
func (s *BillingCronScheduler) TriggerInvoiceRun() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	go s.runInvoiceClose(context.Background())
	return nil
}

// TriggerUnpaidRun triggers an immediate unpaid invoice sweep
func (s *BillingCronScheduler) TriggerUnpaidRun() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	go s.runUnpaidSweep(context.Background())
	return nil
}

// GetStatus returns the current status of the scheduler
func (s *BillingCronScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":             s.config.Enabled,
		"is_running":          s.isRunning,
		"invoice_schedule":    s.config.InvoiceCronSchedule,
		"unpaid_schedule":     s.config.UnpaidCronSchedule,
		"last_invoice_run_at": s.lastInvoiceRunAt,
		"last_unpaid_run_at":  s.lastUnpaidRunAt,
	}
}

func (s *BillingCronScheduler) runInvoiceClose(ctx context.Context) {
	acquired, err := s.lock.Acquire(ctx, leaseInvoiceClose, s.config.LockTTL)
	if err != nil {
		s.logger.Error("Failed to acquire invoice close lease", zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Info("Invoice close already running elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.lock.Release(context.Background(), leaseInvoiceClose); err != nil {
			s.logger.Warn("Failed to release invoice close lease", zap.Error(err))
		}
	}()

	now := time.Now()
	s.mu.Lock()
	s.lastInvoiceRunAt = &now
	s.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	batch, err := s.closer.RunPeriodClose(jobCtx)
	if err != nil {
		if errors.Is(err, shared.ErrBillingDisabled) {
			s.logger.Info("Billing disabled, skipping period close")
			return
		}
		s.logger.Error("Billing period close failed", zap.Error(err))
		return
	}

	s.logger.Info("Billing period close finished",
		zap.Int("closed", batch.Closed),
		zap.Int("skipped", batch.Skipped),
		zap.Int("failed", len(batch.Failed)),
	)
}

func (s *BillingCronScheduler) runUnpaidSweep(ctx context.Context) {
	acquired, err := s.lock.Acquire(ctx, leaseUnpaidSweep, s.config.LockTTL)
	if err != nil {
		s.logger.Error("Failed to acquire unpaid sweep lease", zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Info("Unpaid sweep already running elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.lock.Release(context.Background(), leaseUnpaidSweep); err != nil {
			s.logger.Warn("Failed to release unpaid sweep lease", zap.Error(err))
		}
	}()

	now := time.Now()
	s.mu.Lock()
	s.lastUnpaidRunAt = &now
	s.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	result, err := s.sweeper.SweepUnpaid(jobCtx, now)
	if err != nil {
		s.logger.Error("Unpaid invoice sweep failed", zap.Error(err))
		return
	}

	s.logger.Info("Unpaid invoice sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("actions_run", result.ActionsRun),
		zap.Int("failed", len(result.Failed)),
	)
}
