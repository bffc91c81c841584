package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// TransactionType classifies a balance movement
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Balance is a project's prepaid credit. It never goes below zero
// through the conditional withdrawal path; unconditional withdrawals
// are reserved for reversals that restore a known prior state.
type Balance struct {
	shared.BaseEntity
	ProjectID uuid.UUID
	Amount    valueobject.Money
}

// NewBalance opens a zero balance for a project
func NewBalance(projectID uuid.UUID) *Balance {
	return &Balance{
		BaseEntity: shared.NewBaseEntity(),
		ProjectID:  projectID,
		Amount:     valueobject.Zero(valueobject.DefaultCurrency),
	}
}

// Deposit credits the balance
func (b *Balance) Deposit(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_INPUT", "deposit amount must be positive")
	}
	next, err := b.Amount.Add(amount)
	if err != nil {
		return err
	}
	b.Amount = next
	b.UpdatedAt = time.Now()
	return nil
}

// Withdraw debits the balance unconditionally; the result may be
// negative
func (b *Balance) Withdraw(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_INPUT", "withdrawal amount must be positive")
	}
	next, err := b.Amount.Subtract(amount)
	if err != nil {
		return err
	}
	b.Amount = next
	b.UpdatedAt = time.Now()
	return nil
}

// CanCover reports whether the balance suffices for the amount
func (b *Balance) CanCover(amount valueobject.Money) (bool, error) {
	return b.Amount.GreaterThanOrEqual(amount)
}

// BalanceTransaction is an append-only record of a balance movement
type BalanceTransaction struct {
	shared.BaseEntity
	BalanceID   uuid.UUID
	Type        TransactionType
	Amount      valueobject.Money
	Description string
}

// NewBalanceTransaction records one movement against a balance
func NewBalanceTransaction(balanceID uuid.UUID, t TransactionType, amount valueobject.Money, description string) *BalanceTransaction {
	return &BalanceTransaction{
		BaseEntity:  shared.NewBaseEntity(),
		BalanceID:   balanceID,
		Type:        t,
		Amount:      amount,
		Description: description,
	}
}
