package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

func TestNewInvoice(t *testing.T) {
	projectID := uuid.New()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	inv := NewInvoice(projectID, start, nil)

	assert.Equal(t, projectID, inv.ProjectID)
	assert.Equal(t, InvoiceInProgress, inv.State)
	assert.True(t, inv.IsInProgress())
	assert.Equal(t, start, inv.StartDate)
	assert.Nil(t, inv.EndDate)
	assert.Nil(t, inv.PreviousInvoiceID)
	assert.True(t, inv.Total.IsZero())
}

func TestInvoiceClose(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("applies tax and transitions to unpaid", func(t *testing.T) {
		inv := NewInvoice(uuid.New(), start, nil)
		subtotal := valueobject.NewMoneyUSDFromFloat(200)

		err := inv.Close(end, subtotal, decimal.NewFromFloat(0.11))
		require.NoError(t, err)

		assert.Equal(t, InvoiceUnpaid, inv.State)
		require.NotNil(t, inv.EndDate)
		assert.Equal(t, end, *inv.EndDate)
		assert.True(t, inv.Subtotal.Equals(subtotal))
		assert.True(t, inv.TaxAmount.Equals(valueobject.NewMoneyUSDFromFloat(22)))
		assert.True(t, inv.Total.Equals(valueobject.NewMoneyUSDFromFloat(222)))
	})

	t.Run("tax rate is a fraction of the subtotal", func(t *testing.T) {
		inv := NewInvoice(uuid.New(), start, nil)

		err := inv.Close(end, valueobject.NewMoneyUSDFromFloat(50), decimal.NewFromFloat(0.1))
		require.NoError(t, err)

		assert.True(t, inv.TaxAmount.Equals(valueobject.NewMoneyUSDFromFloat(5)), inv.TaxAmount.String())
		assert.Equal(t, "55.00 USD", inv.Total.String())
	})

	t.Run("zero tax rate", func(t *testing.T) {
		inv := NewInvoice(uuid.New(), start, nil)
		subtotal := valueobject.NewMoneyUSDFromFloat(50)

		err := inv.Close(end, subtotal, decimal.Zero)
		require.NoError(t, err)
		assert.True(t, inv.Total.Equals(subtotal))
	})

	t.Run("rejects closing a non-active invoice", func(t *testing.T) {
		inv := NewInvoice(uuid.New(), start, nil)
		require.NoError(t, inv.Close(end, valueobject.ZeroUSD(), decimal.Zero))

		err := inv.Close(end, valueobject.ZeroUSD(), decimal.Zero)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestInvoiceFinishAndRollback(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	newUnpaid := func(t *testing.T) *Invoice {
		inv := NewInvoice(uuid.New(), start, nil)
		require.NoError(t, inv.Close(end, valueobject.NewMoneyUSDFromFloat(100), decimal.Zero))
		return inv
	}

	t.Run("finish settles an unpaid invoice", func(t *testing.T) {
		inv := newUnpaid(t)
		paidAt := end.Add(48 * time.Hour)

		require.NoError(t, inv.Finish(paidAt))
		assert.True(t, inv.IsFinished())
		require.NotNil(t, inv.FinishedAt)
		assert.Equal(t, paidAt, *inv.FinishedAt)
	})

	t.Run("finish rejects in-progress invoice", func(t *testing.T) {
		inv := NewInvoice(uuid.New(), start, nil)
		assert.ErrorIs(t, inv.Finish(end), shared.ErrInvalidState)
	})

	t.Run("rollback reverts a finished invoice", func(t *testing.T) {
		inv := newUnpaid(t)
		require.NoError(t, inv.Finish(end))

		require.NoError(t, inv.RollbackToUnpaid(end.Add(time.Hour)))
		assert.True(t, inv.IsUnpaid())
		assert.Nil(t, inv.FinishedAt)
	})

	t.Run("rollback rejects unpaid invoice", func(t *testing.T) {
		inv := newUnpaid(t)
		assert.ErrorIs(t, inv.RollbackToUnpaid(end), shared.ErrInvalidState)
	})
}

func TestInvoiceAgeDays(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	inv := NewInvoice(uuid.New(), start, nil)

	t.Run("zero while still open", func(t *testing.T) {
		assert.Equal(t, 0, inv.AgeDays(end))
	})

	require.NoError(t, inv.Close(end, valueobject.ZeroUSD(), decimal.Zero))

	t.Run("whole days since period end", func(t *testing.T) {
		assert.Equal(t, 0, inv.AgeDays(end.Add(12*time.Hour)))
		assert.Equal(t, 1, inv.AgeDays(end.Add(24*time.Hour)))
		assert.Equal(t, 10, inv.AgeDays(end.AddDate(0, 0, 10)))
	})

	t.Run("never negative", func(t *testing.T) {
		assert.Equal(t, 0, inv.AgeDays(end.Add(-time.Hour)))
	})
}

func TestInvoicePreviousReference(t *testing.T) {
	first := NewInvoice(uuid.New(), time.Now(), nil)
	second := NewInvoice(first.ProjectID, time.Now(), &first.ID)

	require.NotNil(t, second.PreviousInvoiceID)
	assert.Equal(t, first.ID, *second.PreviousInvoiceID)
}
