package numerator

import (
	"context"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
)

// Allocation is the result of locking a shop's sequence counter.
type Allocation struct {
	ShopID   id.ID
	ShopCode string
	ShopName string
	IsActive bool
	// Sequence is the value the next order of the shop will carry.
	Sequence int64
}

// Allocator hands out per-shop order sequence numbers.
//
// Allocate and Advance must run inside the same transaction. Allocate takes an
// exclusive row lock on the shop and returns the current counter without
// changing it; Advance increments the counter by exactly one. The lock is held
// until the transaction ends, so no other transaction can be handed the same
// value, and an aborted transaction leaves the counter untouched.
type Allocator interface {
	Allocate(ctx context.Context, shopID id.ID) (Allocation, error)
	Advance(ctx context.Context, shopID id.ID) error
}
