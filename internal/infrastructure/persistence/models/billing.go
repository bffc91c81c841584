package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// restoreMoney rebuilds a Money value from its stored columns. Rows
// written before currencies were stored carry an empty currency and
// fall back to the default.
func restoreMoney(amount decimal.Decimal, currency string) valueobject.Money {
	c := valueobject.Currency(currency)
	if c == "" {
		c = valueobject.DefaultCurrency
	}
	m, _ := valueobject.NewMoney(amount, c)
	return m
}

// BillingProjectModel is the GORM model for billing projects
type BillingProjectModel struct {
	BaseModel
	TenantID string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Email    string `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (BillingProjectModel) TableName() string {
	return "billing_projects"
}

// ToDomain converts the persistence model to a domain BillingProject.
func (m *BillingProjectModel) ToDomain() *billing.BillingProject {
	return &billing.BillingProject{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		Email:      m.Email,
	}
}

// BillingProjectModelFromDomain creates a persistence model from a domain BillingProject
func BillingProjectModelFromDomain(p *billing.BillingProject) *BillingProjectModel {
	m := &BillingProjectModel{
		TenantID: p.TenantID,
		Email:    p.Email,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// InvoiceModel is the GORM model for invoices
type InvoiceModel struct {
	BaseModel
	ProjectID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	PreviousInvoiceID *uuid.UUID `gorm:"type:uuid;index"`
	State             string     `gorm:"type:varchar(20);not null;index"`
	StartDate         time.Time  `gorm:"not null"`
	EndDate           *time.Time
	FinishedAt        *time.Time

	SubtotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency       string          `gorm:"type:varchar(3);not null;default:'USD'"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseEntity:        m.BaseModel.ToDomain(),
		ProjectID:         m.ProjectID,
		PreviousInvoiceID: m.PreviousInvoiceID,
		State:             billing.InvoiceState(m.State),
		StartDate:         m.StartDate,
		EndDate:           m.EndDate,
		FinishedAt:        m.FinishedAt,
		Subtotal:          restoreMoney(m.SubtotalAmount, m.Currency),
		TaxAmount:         restoreMoney(m.TaxAmount, m.Currency),
		Total:             restoreMoney(m.TotalAmount, m.Currency),
	}
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		ProjectID:         inv.ProjectID,
		PreviousInvoiceID: inv.PreviousInvoiceID,
		State:             string(inv.State),
		StartDate:         inv.StartDate,
		EndDate:           inv.EndDate,
		FinishedAt:        inv.FinishedAt,
		SubtotalAmount:    inv.Subtotal.Amount(),
		TaxAmount:         inv.TaxAmount.Amount(),
		TotalAmount:       inv.Total.Amount(),
		Currency:          string(inv.Total.Currency()),
	}
	m.FromDomainBaseEntity(inv.BaseEntity)
	return m
}

// UsageComponentModel is the GORM model for usage components
type UsageComponentModel struct {
	BaseModel
	InvoiceID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind       string    `gorm:"type:varchar(20);not null;index:idx_components_kind_resource"`
	ResourceID string    `gorm:"type:varchar(64);not null;index:idx_components_kind_resource"`
	Name       string    `gorm:"type:varchar(255)"`

	FlavorID     string `gorm:"type:varchar(64)"`
	VolumeTypeID string `gorm:"type:varchar(64)"`
	IPAddress    string `gorm:"type:varchar(45)"`
	SizeGB       int64  `gorm:"not null;default:0"`

	StartDate time.Time `gorm:"not null"`
	EndDate   *time.Time

	HourlyRate   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	PriceCharged decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency     string          `gorm:"type:varchar(3);not null;default:'USD'"`
}

// TableName returns the table name for GORM
func (UsageComponentModel) TableName() string {
	return "usage_components"
}

// ToDomain converts the persistence model to a domain UsageComponent.
func (m *UsageComponentModel) ToDomain() *billing.UsageComponent {
	return &billing.UsageComponent{
		BaseEntity:   m.BaseModel.ToDomain(),
		InvoiceID:    m.InvoiceID,
		Kind:         billing.ResourceKind(m.Kind),
		ResourceID:   m.ResourceID,
		Name:         m.Name,
		FlavorID:     m.FlavorID,
		VolumeTypeID: m.VolumeTypeID,
		IPAddress:    m.IPAddress,
		SizeGB:       m.SizeGB,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		HourlyRate:   restoreMoney(m.HourlyRate, m.Currency),
		PriceCharged: restoreMoney(m.PriceCharged, m.Currency),
	}
}

// UsageComponentModelFromDomain creates a persistence model from a domain UsageComponent
func UsageComponentModelFromDomain(c *billing.UsageComponent) *UsageComponentModel {
	m := &UsageComponentModel{
		InvoiceID:    c.InvoiceID,
		Kind:         string(c.Kind),
		ResourceID:   c.ResourceID,
		Name:         c.Name,
		FlavorID:     c.FlavorID,
		VolumeTypeID: c.VolumeTypeID,
		IPAddress:    c.IPAddress,
		SizeGB:       c.SizeGB,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		HourlyRate:   c.HourlyRate.Amount(),
		PriceCharged: c.PriceCharged.Amount(),
		Currency:     string(c.HourlyRate.Currency()),
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// PriceEntryModel is the GORM model for price list rows
type PriceEntryModel struct {
	BaseModel
	Kind     string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_prices_kind_key"`
	Key      string          `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_prices_kind_key"`
	Rate     decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	Currency string          `gorm:"type:varchar(3);not null;default:'USD'"`
}

// TableName returns the table name for GORM
func (PriceEntryModel) TableName() string {
	return "price_entries"
}

// ToDomain converts the persistence model to a domain PriceEntry.
func (m *PriceEntryModel) ToDomain() *billing.PriceEntry {
	return &billing.PriceEntry{
		BaseEntity: m.BaseModel.ToDomain(),
		Kind:       billing.ResourceKind(m.Kind),
		Key:        m.Key,
		Rate:       restoreMoney(m.Rate, m.Currency),
	}
}

// PriceEntryModelFromDomain creates a persistence model from a domain PriceEntry
func PriceEntryModelFromDomain(e *billing.PriceEntry) *PriceEntryModel {
	m := &PriceEntryModel{
		Kind:     string(e.Kind),
		Key:      e.Key,
		Rate:     e.Rate.Amount(),
		Currency: string(e.Rate.Currency()),
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// BalanceModel is the GORM model for project balances
type BalanceModel struct {
	BaseModel
	ProjectID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency  string          `gorm:"type:varchar(3);not null;default:'USD'"`
}

// TableName returns the table name for GORM
func (BalanceModel) TableName() string {
	return "balances"
}

// ToDomain converts the persistence model to a domain Balance.
func (m *BalanceModel) ToDomain() *billing.Balance {
	return &billing.Balance{
		BaseEntity: m.BaseModel.ToDomain(),
		ProjectID:  m.ProjectID,
		Amount:     restoreMoney(m.Amount, m.Currency),
	}
}

// BalanceModelFromDomain creates a persistence model from a domain Balance
func BalanceModelFromDomain(b *billing.Balance) *BalanceModel {
	m := &BalanceModel{
		ProjectID: b.ProjectID,
		Amount:    b.Amount.Amount(),
		Currency:  string(b.Amount.Currency()),
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// BalanceTransactionModel is the GORM model for balance movements
type BalanceTransactionModel struct {
	BaseModel
	BalanceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type        string          `gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'USD'"`
	Description string          `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (BalanceTransactionModel) TableName() string {
	return "balance_transactions"
}

// ToDomain converts the persistence model to a domain BalanceTransaction.
func (m *BalanceTransactionModel) ToDomain() *billing.BalanceTransaction {
	return &billing.BalanceTransaction{
		BaseEntity:  m.BaseModel.ToDomain(),
		BalanceID:   m.BalanceID,
		Type:        billing.TransactionType(m.Type),
		Amount:      restoreMoney(m.Amount, m.Currency),
		Description: m.Description,
	}
}

// BalanceTransactionModelFromDomain creates a persistence model from a domain BalanceTransaction
func BalanceTransactionModelFromDomain(t *billing.BalanceTransaction) *BalanceTransactionModel {
	m := &BalanceTransactionModel{
		BalanceID:   t.BalanceID,
		Type:        string(t.Type),
		Amount:      t.Amount.Amount(),
		Currency:    string(t.Amount.Currency()),
		Description: t.Description,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// NotificationModel is the GORM model for persisted notifications
type NotificationModel struct {
	BaseModel
	ProjectID        *uuid.UUID `gorm:"type:uuid;index"`
	Recipient        string     `gorm:"type:varchar(255)"`
	Title            string     `gorm:"type:varchar(255);not null"`
	ShortDescription string     `gorm:"type:varchar(255)"`
	Content          string     `gorm:"type:text"`
	IsRead           bool       `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification.
func (m *NotificationModel) ToDomain() *billing.Notification {
	return &billing.Notification{
		BaseEntity:       m.BaseModel.ToDomain(),
		ProjectID:        m.ProjectID,
		Recipient:        m.Recipient,
		Title:            m.Title,
		ShortDescription: m.ShortDescription,
		Content:          m.Content,
		IsRead:           m.IsRead,
	}
}

// NotificationModelFromDomain creates a persistence model from a domain Notification
func NotificationModelFromDomain(n *billing.Notification) *NotificationModel {
	m := &NotificationModel{
		ProjectID:        n.ProjectID,
		Recipient:        n.Recipient,
		Title:            n.Title,
		ShortDescription: n.ShortDescription,
		Content:          n.Content,
		IsRead:           n.IsRead,
	}
	m.FromDomainBaseEntity(n.BaseEntity)
	return m
}

// SettingModel is the GORM model for dynamic settings rows
type SettingModel struct {
	Key       string    `gorm:"type:varchar(64);primary_key"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SettingModel) TableName() string {
	return "settings"
}
