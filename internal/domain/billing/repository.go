package billing

import (
	"context"

	"github.com/google/uuid"
)

// TransactionManager runs fn atomically. Repositories called with the
// ctx passed to fn join the same database transaction.
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProjectRepository persists billing projects
type ProjectRepository interface {
	Save(ctx context.Context, p *BillingProject) error
	FindByID(ctx context.Context, id uuid.UUID) (*BillingProject, error)
	FindByTenant(ctx context.Context, tenantID string) (*BillingProject, error)
	GetOrCreateByTenant(ctx context.Context, tenantID string) (*BillingProject, error)
	List(ctx context.Context) ([]*BillingProject, error)
	// DeleteAll cascades to invoices, components, balances, and
	// transactions. Used by billing reset only.
	DeleteAll(ctx context.Context) error
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	Save(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate locks the invoice row for the enclosing
	// transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindInProgressByProject(ctx context.Context, projectID uuid.UUID) (*Invoice, error)
	// FindOldestUnpaidByProject anchors escalation age on the longest
	// outstanding invoice
	FindOldestUnpaidByProject(ctx context.Context, projectID uuid.UUID) (*Invoice, error)
	// FindIDsInState returns bare IDs so sweeps can lock and load each
	// invoice inside its own transaction
	FindIDsInState(ctx context.Context, state InvoiceState) ([]uuid.UUID, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Invoice, error)
	List(ctx context.Context) ([]*Invoice, error)
}

// ComponentRepository persists usage components
type ComponentRepository interface {
	Create(ctx context.Context, c *UsageComponent) error
	Save(ctx context.Context, c *UsageComponent) error
	FindByID(ctx context.Context, id uuid.UUID) (*UsageComponent, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*UsageComponent, error)
	ListByInvoiceAndKind(ctx context.Context, invoiceID uuid.UUID, kind ResourceKind) ([]*UsageComponent, error)
	FindActiveByResource(ctx context.Context, kind ResourceKind, resourceID string) (*UsageComponent, error)
	// CountByKind and CostByKind aggregate over components of
	// IN_PROGRESS invoices, optionally restricted to active components
	CountByKind(ctx context.Context, kind ResourceKind, activeOnly bool) (int64, error)
	CostByKind(ctx context.Context, kind ResourceKind, activeOnly bool) (float64, error)
}

// PriceRepository persists the price list
type PriceRepository interface {
	Upsert(ctx context.Context, e *PriceEntry) error
	FindByKindKey(ctx context.Context, kind ResourceKind, key string) (*PriceEntry, error)
	ListByKind(ctx context.Context, kind ResourceKind) ([]*PriceEntry, error)
	List(ctx context.Context) ([]*PriceEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// BalanceRepository persists project balances
type BalanceRepository interface {
	Save(ctx context.Context, b *Balance) error
	FindByProject(ctx context.Context, projectID uuid.UUID) (*Balance, error)
	// FindByProjectForUpdate locks the balance row for the enclosing
	// transaction
	FindByProjectForUpdate(ctx context.Context, projectID uuid.UUID) (*Balance, error)
	GetOrCreateByProject(ctx context.Context, projectID uuid.UUID) (*Balance, error)
	List(ctx context.Context) ([]*Balance, error)
}

// BalanceTransactionRepository appends and lists balance movements
type BalanceTransactionRepository interface {
	Create(ctx context.Context, t *BalanceTransaction) error
	ListByBalance(ctx context.Context, balanceID uuid.UUID) ([]*BalanceTransaction, error)
}

// NotificationRepository persists notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	Save(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Notification, error)
	List(ctx context.Context) ([]*Notification, error)
}
