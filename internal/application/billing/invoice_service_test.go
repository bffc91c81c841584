package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

type testEnv struct {
	projects      *memProjects
	invoices      *memInvoices
	components    *memComponents
	balances      *memBalances
	txs           *memTransactions
	settings      *memSettings
	prices        *memPrices
	notifications *memNotifications
	registry      *billing.Registry
	priceSvc      *PriceService
	balanceSvc    *BalanceService
	notifySvc     *NotificationService
	invoiceSvc    *InvoiceService
	driver        *DriverService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &testEnv{
		projects:      newMemProjects(),
		invoices:      newMemInvoices(),
		balances:      newMemBalances(),
		txs:           &memTransactions{},
		settings:      newMemSettings(),
		prices:        newMemPrices(),
		notifications: newMemNotifications(),
	}
	env.components = newMemComponents(env.invoices)
	env.priceSvc = NewPriceService(env.prices, logger)
	env.registry = billing.NewDefaultRegistry(env.priceSvc, nil)
	env.balanceSvc = NewBalanceService(fakeTM{}, env.balances, env.txs, logger)
	env.notifySvc = NewNotificationService(env.notifications, env.projects, &recordingNotifier{}, logger)
	env.invoiceSvc = NewInvoiceService(fakeTM{}, env.invoices, env.components,
		env.projects, env.registry, env.balanceSvc, env.notifySvc, logger)
	env.driver = NewDriverService(fakeTM{}, env.settings, env.projects, env.invoices,
		env.components, env.prices, env.registry, env.invoiceSvc, logger)
	return env
}

func (env *testEnv) seedPrice(t *testing.T, kind billing.ResourceKind, key string, rate float64) {
	t.Helper()
	_, err := env.priceSvc.SetPrice(context.Background(), kind, key, valueobject.NewMoneyUSDFromFloat(rate))
	require.NoError(t, err)
}

// seedInvoice opens a project with one active invoice starting at the
// given time
func (env *testEnv) seedInvoice(t *testing.T, tenantID string, start time.Time) *billing.Invoice {
	t.Helper()
	ctx := context.Background()
	project, err := env.projects.GetOrCreateByTenant(ctx, tenantID)
	require.NoError(t, err)
	inv := billing.NewInvoice(project.ID, start, nil)
	require.NoError(t, env.invoices.Create(ctx, inv))
	return inv
}

func (env *testEnv) seedComponent(t *testing.T, inv *billing.Invoice, kind billing.ResourceKind, p billing.CreatePayload) *billing.UsageComponent {
	t.Helper()
	handler, err := env.registry.HandlerFor(kind)
	require.NoError(t, err)
	c, err := handler.Create(context.Background(), inv.ID, p, false)
	require.NoError(t, err)
	require.NoError(t, env.components.Create(context.Background(), c))
	return c
}

func TestInvoiceServiceCloseActiveInvoice(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	closeAt := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) // 744 hours

	t.Run("closes components, applies tax, rolls onto successor", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedPrice(t, billing.KindInstance, "m1.small", 0.5)
		env.seedPrice(t, billing.KindFloatingIP, "", 0.01)

		inv := env.seedInvoice(t, "tenant-a", start)
		env.seedComponent(t, inv, billing.KindInstance, billing.CreatePayload{
			ResourceID: "srv-1", FlavorID: "m1.small", StartDate: start,
		})
		fip := env.seedComponent(t, inv, billing.KindFloatingIP, billing.CreatePayload{
			ResourceID: "fip-1", IPAddress: "10.0.0.5", StartDate: start,
		})
		// resource deleted mid-period, already priced
		require.NoError(t, fip.Close(start.AddDate(0, 0, 10))) // 240h * 0.01 = 2.40
		require.NoError(t, env.components.Save(ctx, fip))

		cfg := billing.BillingConfig{Enabled: true, TaxRate: decimal.NewFromFloat(0.1)}
		res, err := env.invoiceSvc.CloseActiveInvoice(ctx, inv.ID, closeAt, cfg, true)
		require.NoError(t, err)

		// 744h * 0.5 + 2.40
		assert.True(t, res.Subtotal.Equals(valueobject.NewMoneyUSDFromFloat(374.40)), res.Subtotal.String())
		assert.True(t, res.Total.Equals(valueobject.NewMoneyUSDFromFloat(411.84)), res.Total.String())
		assert.Equal(t, 1, res.ComponentsClosed)
		assert.Equal(t, 1, res.ComponentsRolled)

		closed, err := env.invoices.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, closed.IsUnpaid())

		require.NotNil(t, res.SuccessorID)
		next, err := env.invoices.FindByID(ctx, *res.SuccessorID)
		require.NoError(t, err)
		assert.True(t, next.IsInProgress())
		require.NotNil(t, next.PreviousInvoiceID)
		assert.Equal(t, inv.ID, *next.PreviousInvoiceID)
		assert.Equal(t, closeAt, next.StartDate)

		rolled, err := env.components.ListByInvoice(ctx, next.ID)
		require.NoError(t, err)
		require.Len(t, rolled, 1)
		assert.Equal(t, "srv-1", rolled[0].ResourceID)
		assert.Equal(t, closeAt, rolled[0].StartDate)
		assert.True(t, rolled[0].IsActive())
	})

	t.Run("without successor nothing rolls", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedPrice(t, billing.KindInstance, "m1.small", 0.5)
		inv := env.seedInvoice(t, "tenant-b", start)
		env.seedComponent(t, inv, billing.KindInstance, billing.CreatePayload{
			ResourceID: "srv-1", FlavorID: "m1.small", StartDate: start,
		})

		res, err := env.invoiceSvc.CloseActiveInvoice(ctx, inv.ID, closeAt, billing.BillingConfig{}, false)
		require.NoError(t, err)
		assert.Nil(t, res.SuccessorID)
		assert.Equal(t, 0, res.ComponentsRolled)

		all, err := env.invoices.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("skips invoices no longer in progress", func(t *testing.T) {
		env := newTestEnv(t)
		inv := env.seedInvoice(t, "tenant-c", start)
		require.NoError(t, inv.Close(closeAt, valueobject.ZeroUSD(), decimal.Zero))

		res, err := env.invoiceSvc.CloseActiveInvoice(ctx, inv.ID, closeAt, billing.BillingConfig{}, true)
		require.NoError(t, err)
		assert.Equal(t, 0, res.ComponentsClosed)
		assert.Nil(t, res.SuccessorID)
	})

	t.Run("currency mismatch aborts the close", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedPrice(t, billing.KindInstance, "m1.small", 0.5)
		inv := env.seedInvoice(t, "tenant-d", start)
		env.seedComponent(t, inv, billing.KindInstance, billing.CreatePayload{
			ResourceID: "srv-1", FlavorID: "m1.small", StartDate: start,
		})
		rogue := env.seedComponent(t, inv, billing.KindInstance, billing.CreatePayload{
			ResourceID: "srv-2", FlavorID: "m1.small", StartDate: start,
		})
		eur, _ := valueobject.NewMoneyFromFloat(1, valueobject.EUR)
		rogue.HourlyRate = eur
		require.NoError(t, env.components.Save(ctx, rogue))

		_, err := env.invoiceSvc.CloseActiveInvoice(ctx, inv.ID, closeAt, billing.BillingConfig{}, true)
		require.Error(t, err)
		var mismatch *billing.CurrencyMismatchError
		assert.ErrorAs(t, err, &mismatch)

		got, findErr := env.invoices.FindByID(ctx, inv.ID)
		require.NoError(t, findErr)
		assert.True(t, got.IsInProgress())
	})
}

func TestInvoiceServiceFinishAndRollback(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	closeAt := start.AddDate(0, 1, 0)

	setup := func(t *testing.T) (*testEnv, *billing.Invoice) {
		env := newTestEnv(t)
		env.seedPrice(t, billing.KindRouter, "", 0.1)
		inv := env.seedInvoice(t, "tenant-a", start)
		env.seedComponent(t, inv, billing.KindRouter, billing.CreatePayload{
			ResourceID: "rtr-1", StartDate: start,
		})
		_, err := env.invoiceSvc.CloseActiveInvoice(ctx, inv.ID, closeAt, billing.BillingConfig{}, false)
		require.NoError(t, err)
		// 744h * 0.1 = 74.40 total, no tax
		return env, inv
	}

	t.Run("finish debits the balance and settles", func(t *testing.T) {
		env, inv := setup(t)
		_, err := env.balanceSvc.Deposit(ctx, inv.ProjectID, valueobject.NewMoneyUSDFromFloat(100), "top up")
		require.NoError(t, err)

		finished, err := env.invoiceSvc.Finish(ctx, inv.ID, false)
		require.NoError(t, err)
		assert.True(t, finished.IsFinished())

		balance, err := env.balances.FindByProject(ctx, inv.ProjectID)
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equals(valueobject.NewMoneyUSDFromFloat(25.60)), balance.Amount.String())
	})

	t.Run("finish with skipBalance leaves the balance alone", func(t *testing.T) {
		env, inv := setup(t)
		_, err := env.balanceSvc.Deposit(ctx, inv.ProjectID, valueobject.NewMoneyUSDFromFloat(100), "top up")
		require.NoError(t, err)

		_, err = env.invoiceSvc.Finish(ctx, inv.ID, true)
		require.NoError(t, err)

		balance, err := env.balances.FindByProject(ctx, inv.ProjectID)
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equals(valueobject.NewMoneyUSDFromFloat(100)))
	})

	t.Run("finish then rollback restores the balance exactly", func(t *testing.T) {
		env, inv := setup(t)
		_, err := env.balanceSvc.Deposit(ctx, inv.ProjectID, valueobject.NewMoneyUSDFromFloat(100), "top up")
		require.NoError(t, err)

		_, err = env.invoiceSvc.Finish(ctx, inv.ID, false)
		require.NoError(t, err)
		rolled, err := env.invoiceSvc.RollbackToUnpaid(ctx, inv.ID, false)
		require.NoError(t, err)
		assert.True(t, rolled.IsUnpaid())

		balance, err := env.balances.FindByProject(ctx, inv.ProjectID)
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equals(valueobject.NewMoneyUSDFromFloat(100)))
	})

	t.Run("finish of a settled invoice is a no-op", func(t *testing.T) {
		env, inv := setup(t)
		_, err := env.balanceSvc.Deposit(ctx, inv.ProjectID, valueobject.NewMoneyUSDFromFloat(200), "top up")
		require.NoError(t, err)

		_, err = env.invoiceSvc.Finish(ctx, inv.ID, false)
		require.NoError(t, err)
		again, err := env.invoiceSvc.Finish(ctx, inv.ID, false)
		require.NoError(t, err)
		assert.True(t, again.IsFinished())

		// the second finish must not debit a second time
		balance, err := env.balances.FindByProject(ctx, inv.ProjectID)
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equals(valueobject.NewMoneyUSDFromFloat(125.60)), balance.Amount.String())
	})

	t.Run("rollback of an unpaid invoice is a no-op", func(t *testing.T) {
		env, inv := setup(t)
		rolled, err := env.invoiceSvc.RollbackToUnpaid(ctx, inv.ID, false)
		require.NoError(t, err)
		assert.True(t, rolled.IsUnpaid())

		// no refund was credited
		assert.Empty(t, env.txs.l)
	})
}

func TestInvoiceServiceAutoDeduct(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	closeAt := start.AddDate(0, 1, 0)

	setupUnpaid := func(t *testing.T) (*testEnv, *billing.Invoice) {
		env := newTestEnv(t)
		env.seedPrice(t, billing.KindRouter, "", 0.1)
		inv := env.seedInvoice(t, "tenant-a", start)
		env.seedComponent(t, inv, billing.KindRouter, billing.CreatePayload{
			ResourceID: "rtr-1", StartDate: start,
		})
		_, err := env.invoiceSvc.CloseActiveInvoice(ctx, inv.ID, closeAt, billing.BillingConfig{}, false)
		require.NoError(t, err) // total 74.40
		return env, inv
	}

	t.Run("settles when the balance covers the total", func(t *testing.T) {
		env, inv := setupUnpaid(t)
		_, err := env.balanceSvc.Deposit(ctx, inv.ProjectID, valueobject.NewMoneyUSDFromFloat(80), "top up")
		require.NoError(t, err)

		require.NoError(t, env.invoiceSvc.AutoDeduct(ctx, inv.ID, billing.BillingConfig{AutoDeduct: true}))

		got, err := env.invoices.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, got.IsFinished())

		balance, err := env.balances.FindByProject(ctx, inv.ProjectID)
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equals(valueobject.NewMoneyUSDFromFloat(5.60)), balance.Amount.String())

		// the tenant is told the invoice was paid from balance
		stored, err := env.notifications.List(ctx)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "Invoice paid from balance", stored[0].Title)
		require.NotNil(t, stored[0].ProjectID)
		assert.Equal(t, inv.ProjectID, *stored[0].ProjectID)
	})

	t.Run("insufficient funds leave the invoice unpaid without error", func(t *testing.T) {
		env, inv := setupUnpaid(t)
		_, err := env.balanceSvc.Deposit(ctx, inv.ProjectID, valueobject.NewMoneyUSDFromFloat(10), "top up")
		require.NoError(t, err)

		require.NoError(t, env.invoiceSvc.AutoDeduct(ctx, inv.ID, billing.BillingConfig{AutoDeduct: true}))

		got, err := env.invoices.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, got.IsUnpaid())

		balance, err := env.balances.FindByProject(ctx, inv.ProjectID)
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equals(valueobject.NewMoneyUSDFromFloat(10)))
		assert.False(t, balance.Amount.IsNegative())

		// the tenant is asked to pay instead
		stored, err := env.notifications.List(ctx)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "Invoice ready to pay", stored[0].Title)
	})

	t.Run("notifications carry the company identity from settings", func(t *testing.T) {
		env, inv := setupUnpaid(t)
		cfg := billing.BillingConfig{
			AutoDeduct:     true,
			CompanyName:    "Acme Cloud",
			CompanyAddress: "1 Nimbus Way",
			EmailTag:       "Billing",
		}

		require.NoError(t, env.invoiceSvc.AutoDeduct(ctx, inv.ID, cfg))

		stored, err := env.notifications.List(ctx)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "[Billing] Invoice ready to pay", stored[0].Title)
		assert.Contains(t, stored[0].Content, "Acme Cloud")
		assert.Contains(t, stored[0].Content, "1 Nimbus Way")
	})

	t.Run("already settled invoices notify nobody", func(t *testing.T) {
		env, inv := setupUnpaid(t)
		_, err := env.invoiceSvc.Finish(ctx, inv.ID, true)
		require.NoError(t, err)

		require.NoError(t, env.invoiceSvc.AutoDeduct(ctx, inv.ID, billing.BillingConfig{AutoDeduct: true}))

		stored, err := env.notifications.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestInvoiceServiceCloseAllInProgress(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	closeAt := start.AddDate(0, 1, 0)

	t.Run("one bad invoice does not stop the sweep", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedPrice(t, billing.KindInstance, "m1.small", 0.5)

		good := env.seedInvoice(t, "tenant-good", start)
		env.seedComponent(t, good, billing.KindInstance, billing.CreatePayload{
			ResourceID: "srv-1", FlavorID: "m1.small", StartDate: start,
		})

		bad := env.seedInvoice(t, "tenant-bad", start)
		rogue := env.seedComponent(t, bad, billing.KindInstance, billing.CreatePayload{
			ResourceID: "srv-2", FlavorID: "m1.small", StartDate: start,
		})
		eur, _ := valueobject.NewMoneyFromFloat(1, valueobject.EUR)
		rogue.HourlyRate = eur
		require.NoError(t, env.components.Save(ctx, rogue))
		// second component forces the currency clash
		env.seedComponent(t, bad, billing.KindInstance, billing.CreatePayload{
			ResourceID: "srv-3", FlavorID: "m1.small", StartDate: start,
		})

		batch, err := env.invoiceSvc.CloseAllInProgress(ctx, closeAt, billing.BillingConfig{}, true)
		require.NoError(t, err)
		assert.Equal(t, 1, batch.Closed)
		require.Len(t, batch.Failed, 1)
		assert.Contains(t, batch.Failed, bad.ID)

		closed, err := env.invoices.FindByID(ctx, good.ID)
		require.NoError(t, err)
		assert.True(t, closed.IsUnpaid())
	})
}
