package customer

import (
	"context"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
)

// Repository defines customer persistence.
type Repository interface {
	GetByID(ctx context.Context, customerID id.ID) (*Customer, error)
	GetByPhone(ctx context.Context, phone string) (*Customer, error)

	// CreateIfAbsent inserts c unless a customer with the same phone exists.
	// Reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, c *Customer) (bool, error)
}
