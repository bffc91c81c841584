package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// BalanceService manages project balances and their transaction log.
// Every mutation locks the balance row and appends a transaction in
// the same database transaction.
type BalanceService struct {
	tm           billing.TransactionManager
	balances     billing.BalanceRepository
	transactions billing.BalanceTransactionRepository
	logger       *zap.Logger
}

// NewBalanceService creates a balance service
func NewBalanceService(
	tm billing.TransactionManager,
	balances billing.BalanceRepository,
	transactions billing.BalanceTransactionRepository,
	logger *zap.Logger,
) *BalanceService {
	return &BalanceService{
		tm:           tm,
		balances:     balances,
		transactions: transactions,
		logger:       logger,
	}
}

// GetOrCreate returns the project's balance, opening a zero balance on
// first access
func (s *BalanceService) GetOrCreate(ctx context.Context, projectID uuid.UUID) (*billing.Balance, error) {
	return s.balances.GetOrCreateByProject(ctx, projectID)
}

// List returns all balances
func (s *BalanceService) List(ctx context.Context) ([]*billing.Balance, error) {
	return s.balances.List(ctx)
}

// Transactions returns the movement log of a project's balance
func (s *BalanceService) Transactions(ctx context.Context, projectID uuid.UUID) ([]*billing.BalanceTransaction, error) {
	balance, err := s.balances.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.transactions.ListByBalance(ctx, balance.ID)
}

// Deposit credits a project's balance
func (s *BalanceService) Deposit(ctx context.Context, projectID uuid.UUID, amount valueobject.Money, description string) (*billing.Balance, error) {
	var result *billing.Balance
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		if _, err := s.balances.GetOrCreateByProject(ctx, projectID); err != nil {
			return err
		}
		balance, err := s.balances.FindByProjectForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if err := balance.Deposit(amount); err != nil {
			return err
		}
		if err := s.balances.Save(ctx, balance); err != nil {
			return err
		}
		tx := billing.NewBalanceTransaction(balance.ID, billing.TransactionDeposit, amount, description)
		if err := s.transactions.Create(ctx, tx); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deposit for project %s: %w", projectID, err)
	}
	s.logger.Info("balance deposit",
		zap.String("project_id", projectID.String()),
		zap.String("amount", amount.String()),
	)
	return result, nil
}

// Withdraw debits a project's balance unconditionally. Reversals use
// this path; the result may go negative.
func (s *BalanceService) Withdraw(ctx context.Context, projectID uuid.UUID, amount valueobject.Money, description string) (*billing.Balance, error) {
	var result *billing.Balance
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		balance, err := s.balances.FindByProjectForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if err := balance.Withdraw(amount); err != nil {
			return err
		}
		if err := s.balances.Save(ctx, balance); err != nil {
			return err
		}
		tx := billing.NewBalanceTransaction(balance.ID, billing.TransactionWithdrawal, amount, description)
		if err := s.transactions.Create(ctx, tx); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw for project %s: %w", projectID, err)
	}
	s.logger.Info("balance withdrawal",
		zap.String("project_id", projectID.String()),
		zap.String("amount", amount.String()),
	)
	return result, nil
}

// WithdrawIfSufficient debits the balance only when it covers the
// amount. Returns (nil, nil) when funds are insufficient; that is a
// normal outcome, not an error. The check and the debit happen under
// one row lock so the balance never goes below zero through this path.
func (s *BalanceService) WithdrawIfSufficient(ctx context.Context, projectID uuid.UUID, amount valueobject.Money, description string) (*billing.Balance, error) {
	var result *billing.Balance
	err := s.tm.Do(ctx, func(ctx context.Context) error {
		balance, err := s.balances.FindByProjectForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		ok, err := balance.CanCover(amount)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Info("balance insufficient for withdrawal",
				zap.String("project_id", projectID.String()),
				zap.String("amount", amount.String()),
				zap.String("balance", balance.Amount.String()),
			)
			return nil
		}
		if err := balance.Withdraw(amount); err != nil {
			return err
		}
		if err := s.balances.Save(ctx, balance); err != nil {
			return err
		}
		tx := billing.NewBalanceTransaction(balance.ID, billing.TransactionWithdrawal, amount, description)
		if err := s.transactions.Create(ctx, tx); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("conditional withdraw for project %s: %w", projectID, err)
	}
	return result, nil
}
