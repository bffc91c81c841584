package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity holds the identity and timestamps every billing entity
// embeds.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates an entity stamped with the current time
func NewBaseEntity() BaseEntity {
	return NewBaseEntityAt(time.Now())
}

// NewBaseEntityAt creates an entity stamped at a given time. Billing
// period boundaries use this so entity timestamps line up with the
// period instead of wall-clock insert time.
func NewBaseEntityAt(ts time.Time) BaseEntity {
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}
