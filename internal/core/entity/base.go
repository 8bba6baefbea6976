// Package entity holds the fields every stored record of the order core shares.
package entity

import (
	"context"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains identity and timestamps.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity creates a new BaseEntity with generated ID and timestamps.
func NewBaseEntity(now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{
		ID:        id.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch moves UpdatedAt forward.
func (b *BaseEntity) Touch(now time.Time) {
	b.UpdatedAt = now.UTC()
}

// Audited records which staff member created and last changed a record.
type Audited struct {
	CreatedBy string `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string `db:"updated_by" json:"updatedBy,omitempty"`
}

// SetCreatedBy sets both audit fields on creation.
func (a *Audited) SetCreatedBy(userID string) {
	a.CreatedBy = userID
	a.UpdatedBy = userID
}

// SetUpdatedBy sets the last modifier.
func (a *Audited) SetUpdatedBy(userID string) {
	a.UpdatedBy = userID
}
