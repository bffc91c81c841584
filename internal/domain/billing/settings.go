package billing

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

// Dynamic setting keys. Settings live in the database so operators can
// flip them without a redeploy.
const (
	SettingBillingEnabled = "billing_enabled"
	SettingInvoiceTax     = "invoice_tax"
	SettingAutoDeduct     = "auto_deduct_balance"
	SettingCompanyName    = "company_name"
	SettingCompanyAddress = "company_address"
	SettingEmailTag       = "email_tag"
)

// BillingConfig is an explicit snapshot of the dynamic settings, read
// once at the start of a sweep so every invoice in the batch sees the
// same configuration.
type BillingConfig struct {
	Enabled        bool
	TaxRate        decimal.Decimal
	AutoDeduct     bool
	CompanyName    string
	CompanyAddress string
	EmailTag       string
}

// SettingsStore persists the dynamic settings as key/value rows
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// LoadBillingConfig snapshots the dynamic settings. Unset keys take
// their zero defaults (billing off, no tax, no auto-deduct).
func LoadBillingConfig(ctx context.Context, store SettingsStore) (BillingConfig, error) {
	values, err := store.All(ctx)
	if err != nil {
		return BillingConfig{}, err
	}
	cfg := BillingConfig{TaxRate: decimal.Zero}
	if v, ok := values[SettingBillingEnabled]; ok {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}
	if v, ok := values[SettingInvoiceTax]; ok {
		if rate, err := decimal.NewFromString(v); err == nil {
			cfg.TaxRate = rate
		}
	}
	if v, ok := values[SettingAutoDeduct]; ok {
		cfg.AutoDeduct, _ = strconv.ParseBool(v)
	}
	cfg.CompanyName = values[SettingCompanyName]
	cfg.CompanyAddress = values[SettingCompanyAddress]
	cfg.EmailTag = values[SettingEmailTag]
	return cfg, nil
}
