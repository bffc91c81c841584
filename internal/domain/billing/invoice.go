package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// InvoiceState is the lifecycle state of an invoice
type InvoiceState string

const (
	// InvoiceInProgress accumulates usage for the current period
	InvoiceInProgress InvoiceState = "in_progress"
	// InvoiceUnpaid is closed and awaiting payment
	InvoiceUnpaid InvoiceState = "unpaid"
	// InvoiceFinished is closed and settled
	InvoiceFinished InvoiceState = "finished"
)

// Invoice is one billing period of a project. Exactly one invoice per
// project is IN_PROGRESS at a time; closing it creates the successor,
// which keeps a back-reference to this one. The predecessor never
// learns about its successor.
type Invoice struct {
	shared.BaseEntity
	ProjectID         uuid.UUID
	PreviousInvoiceID *uuid.UUID
	State             InvoiceState
	StartDate         time.Time
	EndDate           *time.Time
	FinishedAt        *time.Time

	Subtotal  valueobject.Money
	TaxAmount valueobject.Money
	Total     valueobject.Money
}

// NewInvoice opens a new billing period for a project
func NewInvoice(projectID uuid.UUID, start time.Time, previous *uuid.UUID) *Invoice {
	return &Invoice{
		BaseEntity:        shared.NewBaseEntityAt(start),
		ProjectID:         projectID,
		PreviousInvoiceID: previous,
		State:             InvoiceInProgress,
		StartDate:         start,
		Subtotal:          valueobject.ZeroUSD(),
		TaxAmount:         valueobject.ZeroUSD(),
		Total:             valueobject.ZeroUSD(),
	}
}

// IsInProgress reports whether the invoice is the active period
func (i *Invoice) IsInProgress() bool { return i.State == InvoiceInProgress }

// IsUnpaid reports whether the invoice awaits payment
func (i *Invoice) IsUnpaid() bool { return i.State == InvoiceUnpaid }

// IsFinished reports whether the invoice is settled
func (i *Invoice) IsFinished() bool { return i.State == InvoiceFinished }

// Close ends the billing period. The subtotal is the sum of all
// component charges; tax is the subtotal times the configured
// fractional rate (0.1 adds ten percent). Transitions
// IN_PROGRESS -> UNPAID.
func (i *Invoice) Close(at time.Time, subtotal valueobject.Money, taxRate decimal.Decimal) error {
	if i.State != InvoiceInProgress {
		return shared.ErrInvalidState
	}
	end := at
	i.EndDate = &end
	i.Subtotal = subtotal
	i.TaxAmount = subtotal.Multiply(taxRate)
	i.Total = subtotal.MustAdd(i.TaxAmount)
	i.State = InvoiceUnpaid
	i.UpdatedAt = at
	return nil
}

// Finish marks an unpaid invoice as settled
func (i *Invoice) Finish(at time.Time) error {
	if i.State != InvoiceUnpaid {
		return shared.ErrInvalidState
	}
	i.State = InvoiceFinished
	i.FinishedAt = &at
	i.UpdatedAt = at
	return nil
}

// RollbackToUnpaid reverts a mistaken settlement
func (i *Invoice) RollbackToUnpaid(at time.Time) error {
	if i.State != InvoiceFinished {
		return shared.ErrInvalidState
	}
	i.State = InvoiceUnpaid
	i.FinishedAt = nil
	i.UpdatedAt = at
	return nil
}

// AmountDue is what the tenant owes for this invoice
func (i *Invoice) AmountDue() valueobject.Money {
	return i.Total
}

// AgeDays is the number of whole days the invoice has been unpaid,
// measured from the period end
func (i *Invoice) AgeDays(now time.Time) int {
	if i.EndDate == nil {
		return 0
	}
	d := int(now.Sub(*i.EndDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
