package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	appescalation "github.com/cloudbill/backend/internal/application/escalation"
	"github.com/cloudbill/backend/internal/domain/shared"
)

type stubCloser struct {
	calls int
	err   error
}

func (c *stubCloser) RunPeriodClose(_ context.Context) (*appbilling.BatchResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &appbilling.BatchResult{Closed: 1}, nil
}

type stubSweeper struct {
	calls int
}

func (s *stubSweeper) SweepUnpaid(_ context.Context, _ time.Time) (*appescalation.SweepResult, error) {
	s.calls++
	return &appescalation.SweepResult{Processed: 2, ActionsRun: 1}, nil
}

type stubLock struct {
	denied   bool
	acquired []string
	released []string
}

func (l *stubLock) Acquire(_ context.Context, name string, _ time.Duration) (bool, error) {
	if l.denied {
		return false, nil
	}
	l.acquired = append(l.acquired, name)
	return true, nil
}

func (l *stubLock) Release(_ context.Context, name string) error {
	l.released = append(l.released, name)
	return nil
}

func testConfig() Config {
	return Config{
		Enabled:             true,
		InvoiceCronSchedule: "5 0 1 * *",
		UnpaidCronSchedule:  "0 1 * * *",
		JobTimeout:          time.Minute,
		LockTTL:             time.Minute,
	}
}

func TestBillingCronScheduler(t *testing.T) {
	t.Run("start rejects an invalid cron expression", func(t *testing.T) {
		cfg := testConfig()
		cfg.InvoiceCronSchedule = "not a schedule"
		s := NewBillingCronScheduler(cfg, &stubCloser{}, &stubSweeper{}, &stubLock{}, zap.NewNop())

		assert.ErrorIs(t, s.Start(), ErrInvalidConfig)
	})

	t.Run("trigger before start is refused", func(t *testing.T) {
		s := NewBillingCronScheduler(testConfig(), &stubCloser{}, &stubSweeper{}, &stubLock{}, zap.NewNop())

		assert.ErrorIs(t, s.TriggerInvoiceRun(), ErrSchedulerNotRunning)
		assert.ErrorIs(t, s.TriggerUnpaidRun(), ErrSchedulerNotRunning)
	})

	t.Run("invoice run holds and releases the lease", func(t *testing.T) {
		closer := &stubCloser{}
		lock := &stubLock{}
		s := NewBillingCronScheduler(testConfig(), closer, &stubSweeper{}, lock, zap.NewNop())

		s.runInvoiceClose(context.Background())

		assert.Equal(t, 1, closer.calls)
		assert.Equal(t, []string{leaseInvoiceClose}, lock.acquired)
		assert.Equal(t, []string{leaseInvoiceClose}, lock.released)
	})

	t.Run("run is skipped when the lease is held elsewhere", func(t *testing.T) {
		closer := &stubCloser{}
		sweeper := &stubSweeper{}
		lock := &stubLock{denied: true}
		s := NewBillingCronScheduler(testConfig(), closer, sweeper, lock, zap.NewNop())

		s.runInvoiceClose(context.Background())
		s.runUnpaidSweep(context.Background())

		assert.Zero(t, closer.calls)
		assert.Zero(t, sweeper.calls)
		assert.Empty(t, lock.released)
	})

	t.Run("disabled billing is not an error", func(t *testing.T) {
		closer := &stubCloser{err: shared.ErrBillingDisabled}
		lock := &stubLock{}
		s := NewBillingCronScheduler(testConfig(), closer, &stubSweeper{}, lock, zap.NewNop())

		s.runInvoiceClose(context.Background())

		assert.Equal(t, 1, closer.calls)
		assert.Equal(t, []string{leaseInvoiceClose}, lock.released)
	})

	t.Run("unpaid sweep runs and records the time", func(t *testing.T) {
		sweeper := &stubSweeper{}
		s := NewBillingCronScheduler(testConfig(), &stubCloser{}, sweeper, &stubLock{}, zap.NewNop())

		s.runUnpaidSweep(context.Background())

		assert.Equal(t, 1, sweeper.calls)
		status := s.GetStatus()
		assert.NotNil(t, status["last_unpaid_run_at"])
	})

	t.Run("start and stop round trip", func(t *testing.T) {
		s := NewBillingCronScheduler(testConfig(), &stubCloser{}, &stubSweeper{}, &stubLock{}, zap.NewNop())

		require.NoError(t, s.Start())
		assert.True(t, s.GetStatus()["is_running"].(bool))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, s.Stop(ctx))
		assert.False(t, s.GetStatus()["is_running"].(bool))
	})
}
