package order

import (
	"context"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/ledger"
)

// ListFilter narrows order listings.
type ListFilter struct {
	domain.ListFilter

	ShopID     *id.ID
	CustomerID *id.ID
	Status     *Status
	// DateFrom and DateTo bound created_at, inclusive and exclusive.
	DateFrom *time.Time
	DateTo   *time.Time
}

// DefaultListFilter returns the default order listing.
func DefaultListFilter() ListFilter {
	return ListFilter{ListFilter: domain.DefaultListFilter()}
}

// Repository defines order persistence.
//
// All methods use the transaction carried by ctx when one is present.
// SumPayments and SaveBalance make the repository a ledger.Store.
type Repository interface {
	ledger.Store

	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)

	// GetForUpdate reads the order and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	// Update writes the header fields; order_number is never rewritten.
	Update(ctx context.Context, o *Order) error

	GetItems(ctx context.Context, orderID id.ID) ([]Item, error)
	// SaveItems replaces the whole item set of the order.
	SaveItems(ctx context.Context, orderID id.ID, items []Item) error

	AddPayment(ctx context.Context, p *Payment) error
	GetPayments(ctx context.Context, orderID id.ID) ([]Payment, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)
}
