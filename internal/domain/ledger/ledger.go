// Package ledger derives amount paid and amount due from an order's payments.
//
// The payments table is the source of truth. advance_paid and due_amount on the
// order row are a cache that Reconcile rewrites in the same transaction as any
// change that could invalidate them.
package ledger

import (
	"context"
	"fmt"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
)

// Balance is the derived paid/due pair of an order.
type Balance struct {
	Paid types.Money
	Due  types.Money
}

// Due returns max(0, total - paid).
func Due(total, paid types.Money) types.Money {
	return types.FloorZero(total.Sub(paid))
}

// Store is the persistence the ledger needs.
type Store interface {
	// SumPayments returns Σ amount over all payments of the order.
	SumPayments(ctx context.Context, orderID id.ID) (types.Money, error)
	// SaveBalance writes advance_paid and due_amount of the order.
	SaveBalance(ctx context.Context, orderID id.ID, b Balance) error
}

// Reconcilable is an order whose cached balance the ledger maintains.
type Reconcilable interface {
	GetID() id.ID
	GetTotal() types.Money
	SetBalance(b Balance)
}

// Ledger reconciles orders against their payment rows.
type Ledger struct {
	store Store
}

// New creates a ledger over store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// TotalPaid returns the sum of the order's payment rows.
func (l *Ledger) TotalPaid(ctx context.Context, orderID id.ID) (types.Money, error) {
	paid, err := l.store.SumPayments(ctx, orderID)
	if err != nil {
		return types.Zero(), fmt.Errorf("sum payments: %w", err)
	}
	return paid, nil
}

// Reconcile recomputes paid and due from storage, updates the order in
// memory and persists both fields. Must run in the transaction that changed
// the payments or the total.
func (l *Ledger) Reconcile(ctx context.Context, order Reconcilable) (Balance, error) {
	paid, err := l.TotalPaid(ctx, order.GetID())
	if err != nil {
		return Balance{}, err
	}

	b := Balance{Paid: paid, Due: Due(order.GetTotal(), paid)}
	if err := l.store.SaveBalance(ctx, order.GetID(), b); err != nil {
		return Balance{}, fmt.Errorf("save balance: %w", err)
	}
	order.SetBalance(b)
	return b, nil
}
