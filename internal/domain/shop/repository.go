package shop

import (
	"context"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
)

// Repository defines shop persistence.
type Repository interface {
	Create(ctx context.Context, s *Shop) error
	GetByID(ctx context.Context, shopID id.ID) (*Shop, error)
	GetByCode(ctx context.Context, code string) (*Shop, error)
	List(ctx context.Context, activeOnly bool) ([]*Shop, error)
}
