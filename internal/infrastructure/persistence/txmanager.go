package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/cloudbill/backend/internal/domain/billing"
)

// txKey carries the active transaction through the context so that
// repositories and nested Do calls join it instead of opening a new one
type txKey struct{}

// GormTransactionManager implements billing.TransactionManager on GORM.
// The transaction handle travels in the context; every repository built
// on dbFrom participates automatically.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a transaction manager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// Do runs fn inside a database transaction. A Do call made with a ctx
// that already carries a transaction joins it; the outermost Do owns
// commit and rollback.
func (m *GormTransactionManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// dbFrom returns the transaction carried by ctx, or the fallback handle
// when no transaction is open
func dbFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

var _ billing.TransactionManager = (*GormTransactionManager)(nil)
