package billing

import (
	"github.com/cloudbill/backend/internal/domain/shared"
)

// BillingProject ties a cloud tenant to its billing state.
// TenantID is the identifier of the project in the cloud control plane.
type BillingProject struct {
	shared.BaseEntity
	TenantID string
	Email    string
}

// NewBillingProject creates a billing project for a cloud tenant
func NewBillingProject(tenantID string) (*BillingProject, error) {
	if tenantID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "tenant id cannot be empty")
	}
	return &BillingProject{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
	}, nil
}

// UpdateEmail sets the contact address notifications are sent to
func (p *BillingProject) UpdateEmail(email string) {
	p.Email = email
}
