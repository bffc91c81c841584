package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/cloudbill/backend/internal/domain/billing"
)

// ProjectResponse represents a billing project in responses
type ProjectResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromProject maps a billing project to its response shape
func FromProject(p *billing.BillingProject) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		TenantID:  p.TenantID,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// FromProjects maps a project list
func FromProjects(projects []*billing.BillingProject) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, FromProject(p))
	}
	return out
}

// UpdateEmailRequest changes a tenant's notification address
type UpdateEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// InvoiceResponse represents an invoice in responses
type InvoiceResponse struct {
	ID                uuid.UUID  `json:"id"`
	ProjectID         uuid.UUID  `json:"project_id"`
	PreviousInvoiceID *uuid.UUID `json:"previous_invoice_id,omitempty"`
	State             string     `json:"state"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	Subtotal          string     `json:"subtotal"`
	TaxAmount         string     `json:"tax_amount"`
	Total             string     `json:"total"`
	Currency          string     `json:"currency"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// FromInvoice maps an invoice to its response shape
func FromInvoice(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                inv.ID,
		ProjectID:         inv.ProjectID,
		PreviousInvoiceID: inv.PreviousInvoiceID,
		State:             string(inv.State),
		StartDate:         inv.StartDate,
		EndDate:           inv.EndDate,
		FinishedAt:        inv.FinishedAt,
		Subtotal:          inv.Subtotal.Amount().StringFixed(4),
		TaxAmount:         inv.TaxAmount.Amount().StringFixed(4),
		Total:             inv.Total.Amount().StringFixed(4),
		Currency:          string(inv.Total.Currency()),
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}

// FromInvoices maps an invoice list
func FromInvoices(invoices []*billing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, FromInvoice(inv))
	}
	return out
}

// InvoiceDetailResponse is an invoice with its usage components
type InvoiceDetailResponse struct {
	InvoiceResponse
	Components []ComponentResponse `json:"components"`
}

// FromInvoiceDetail maps an invoice and its components
func FromInvoiceDetail(inv *billing.Invoice, comps []*billing.UsageComponent) InvoiceDetailResponse {
	out := InvoiceDetailResponse{
		InvoiceResponse: FromInvoice(inv),
		Components:      make([]ComponentResponse, 0, len(comps)),
	}
	for _, c := range comps {
		out.Components = append(out.Components, FromComponent(c))
	}
	return out
}

// SettleRequest tunes invoice settlement and reversal
type SettleRequest struct {
	SkipBalance bool `json:"skip_balance"`
}

// ComponentResponse represents a usage component in responses
type ComponentResponse struct {
	ID           uuid.UUID  `json:"id"`
	InvoiceID    uuid.UUID  `json:"invoice_id"`
	Kind         string     `json:"kind"`
	ResourceID   string     `json:"resource_id"`
	Name         string     `json:"name,omitempty"`
	FlavorID     string     `json:"flavor_id,omitempty"`
	VolumeTypeID string     `json:"volume_type_id,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	SizeGB       int64      `json:"size_gb,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	HourlyRate   string     `json:"hourly_rate"`
	PriceCharged string     `json:"price_charged"`
	Currency     string     `json:"currency"`
	Active       bool       `json:"active"`
}

// FromComponent maps a usage component to its response shape
func FromComponent(c *billing.UsageComponent) ComponentResponse {
	return ComponentResponse{
		ID:           c.ID,
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
		HourlyRate:   c.HourlyRate.Amount().StringFixed(6),
		PriceCharged: c.PriceCharged.Amount().StringFixed(4),
		Currency:     string(c.HourlyRate.Currency()),
		Active:       c.IsActive(),
	}
}

// BalanceResponse represents a project balance in responses
type BalanceResponse struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromBalance maps a balance to its response shape
func FromBalance(b *billing.Balance) BalanceResponse {
	return BalanceResponse{
		ID:        b.ID,
		ProjectID: b.ProjectID,
		Amount:    b.Amount.Amount().StringFixed(4),
		Currency:  string(b.Amount.Currency()),
		UpdatedAt: b.UpdatedAt,
	}
}

// FromBalances maps a balance list
func FromBalances(balances []*billing.Balance) []BalanceResponse {
	out := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, FromBalance(b))
	}
	return out
}

// TransactionResponse represents one balance movement
type TransactionResponse struct {
	ID          uuid.UUID `json:"id"`
	BalanceID   uuid.UUID `json:"balance_id"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromTransactions maps a balance movement list
func FromTransactions(txs []*billing.BalanceTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			ID:          tx.ID,
			BalanceID:   tx.BalanceID,
			Type:        string(tx.Type),
			Amount:      tx.Amount.Amount().StringFixed(4),
			Currency:    string(tx.Amount.Currency()),
			Description: tx.Description,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return out
}

// BalanceMovementRequest funds or debits a project balance
type BalanceMovementRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"omitempty,len=3"`
	Description string `json:"description" binding:"max=500"`
}

// PriceResponse represents a price list entry
type PriceResponse struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Key       string    `json:"key"`
	Rate      string    `json:"rate"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromPrice maps a price entry to its response shape
func FromPrice(p *billing.PriceEntry) PriceResponse {
	return PriceResponse{
		ID:        p.ID,
		Kind:      string(p.Kind),
		Key:       p.Key,
		Rate:      p.Rate.Amount().StringFixed(6),
		Currency:  string(p.Rate.Currency()),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// FromPrices maps a price list
func FromPrices(prices []*billing.PriceEntry) []PriceResponse {
	out := make([]PriceResponse, 0, len(prices))
	for _, p := range prices {
		out = append(out, FromPrice(p))
	}
	return out
}

// SetPriceRequest creates or replaces a price list entry
type SetPriceRequest struct {
	Kind     string `json:"kind" binding:"required"`
	Key      string `json:"key" binding:"required"`
	Rate     string `json:"rate" binding:"required"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
}

// NotificationResponse represents a stored notification
type NotificationResponse struct {
	ID               uuid.UUID  `json:"id"`
	ProjectID        *uuid.UUID `json:"project_id,omitempty"`
	Recipient        string     `json:"recipient,omitempty"`
	Title            string     `json:"title"`
	ShortDescription string     `json:"short_description"`
	Content          string     `json:"content"`
	IsRead           bool       `json:"is_read"`
	CreatedAt        time.Time  `json:"created_at"`
}

// FromNotification maps a notification to its response shape
func FromNotification(n *billing.Notification) NotificationResponse {
	return NotificationResponse{
		ID:               n.ID,
		ProjectID:        n.ProjectID,
		Recipient:        n.Recipient,
		Title:            n.Title,
		ShortDescription: n.ShortDescription,
		Content:          n.Content,
		IsRead:           n.IsRead,
		CreatedAt:        n.CreatedAt,
	}
}

// FromNotifications maps a notification list
func FromNotifications(ns []*billing.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, FromNotification(n))
	}
	return out
}

// SettingRequest sets one dynamic setting
type SettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// ResourceInitRequest describes one resource to start metering
type ResourceInitRequest struct {
	Kind         string    `json:"kind" binding:"required"`
	ResourceID   string    `json:"resource_id" binding:"required"`
	Name         string    `json:"name"`
	FlavorID     string    `json:"flavor_id"`
	VolumeTypeID string    `json:"volume_type_id"`
	IPAddress    string    `json:"ip_address"`
	SizeGB       int64     `json:"size_gb" binding:"min=0"`
	StartDate    time.Time `json:"start_date"`
}

// TenantInitRequest carries one tenant's resources at enable time
type TenantInitRequest struct {
	TenantID  string                `json:"tenant_id" binding:"required"`
	Email     string                `json:"email" binding:"omitempty,email"`
	Resources []ResourceInitRequest `json:"resources" binding:"dive"`
}

// EnableBillingRequest turns billing on with the current cloud state
type EnableBillingRequest struct {
	Tenants []TenantInitRequest `json:"tenants" binding:"dive"`
}

// BatchResultResponse summarizes a sweep over many invoices
type BatchResultResponse struct {
	Closed  int               `json:"closed"`
	Skipped int               `json:"skipped"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// EventRequest is one usage event from the cloud control plane
type EventRequest struct {
	EventType string         `json:"event_type" binding:"required"`
	Payload   map[string]any `json:"payload" binding:"required"`
}
