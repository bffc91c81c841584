package billing

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SettingsService exposes the dynamic settings store with per-key
// validation
type SettingsService struct {
	store  billing.SettingsStore
	logger *zap.Logger
}

// NewSettingsService creates a settings service
func NewSettingsService(store billing.SettingsStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// All returns every dynamic setting
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return s.store.All(ctx)
}

// Get returns one setting value
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, key)
}

// Set validates and stores a setting value
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	switch key {
	case billing.SettingBillingEnabled, billing.SettingAutoDeduct:
		if _, err := strconv.ParseBool(value); err != nil {
			return shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("%s must be a boolean, got %q", key, value))
		}
	case billing.SettingInvoiceTax:
		rate, err := decimal.NewFromString(value)
		if err != nil || rate.IsNegative() {
			return shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("%s must be a non-negative decimal rate, got %q", key, value))
		}
	case billing.SettingCompanyName, billing.SettingCompanyAddress, billing.SettingEmailTag:
		// free-form
	default:
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("unknown setting %q", key))
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		return err
	}
	s.logger.Info("setting updated", zap.String("key", key), zap.String("value", value))
	return nil
}

// Snapshot returns the current billing configuration
func (s *SettingsService) Snapshot(ctx context.Context) (billing.BillingConfig, error) {
	return billing.LoadBillingConfig(ctx, s.store)
}
