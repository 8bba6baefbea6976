// Package numerator provides the PostgreSQL implementation of the shop
// order-sequence allocator (core/numerator.Allocator).
//
// The counter lives on the shop row. Allocate locks that row with
// SELECT ... FOR UPDATE; the lock is the only thing serializing order
// creation within a shop, so both calls must run inside the caller's
// transaction.
package numerator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	corenumerator "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/numerator"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
)

const (
	lockShopSQL = `SELECT id, code, name, is_active, next_order_sequence FROM shops WHERE id = $1 FOR UPDATE`
	advanceSQL  = `UPDATE shops SET next_order_sequence = next_order_sequence + 1, updated_at = NOW() WHERE id = $1`
)

// Querier is the subset of pgx.Tx the allocator uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ErrNoTransaction is returned when Allocate or Advance runs outside a transaction.
var ErrNoTransaction = errors.New("sequence allocation requires a transaction")

// Service allocates shop order sequences.
type Service struct {
	txQuerier func(ctx context.Context) Querier
}

// Ensure compile-time interface compliance.
var _ corenumerator.Allocator = (*Service)(nil)

// New creates an allocator working in the transaction TxManager put in ctx.
func New(txManager *postgres.TxManager) *Service {
	return NewWithQuerier(func(ctx context.Context) Querier {
		if tx := txManager.GetTx(ctx); tx != nil {
			return tx.Tx
		}
		return nil
	})
}

// NewWithQuerier creates an allocator over a custom transaction lookup.
// txQuerier returns nil when ctx carries no transaction.
func NewWithQuerier(txQuerier func(ctx context.Context) Querier) *Service {
	return &Service{txQuerier: txQuerier}
}

func (s *Service) querier(ctx context.Context) (Querier, error) {
	q := s.txQuerier(ctx)
	if q == nil {
		return nil, ErrNoTransaction
	}
	return q, nil
}

// Allocate locks the shop row and returns its current counter.
// The counter is not changed; Advance does that once the order row exists.
func (s *Service) Allocate(ctx context.Context, shopID id.ID) (corenumerator.Allocation, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return corenumerator.Allocation{}, err
	}

	var a corenumerator.Allocation
	err = q.QueryRow(ctx, lockShopSQL, shopID).Scan(&a.ShopID, &a.ShopCode, &a.ShopName, &a.IsActive, &a.Sequence)
	if errors.Is(err, pgx.ErrNoRows) {
		return corenumerator.Allocation{}, apperror.NewNotFound("shop", shopID.String())
	}
	if err != nil {
		return corenumerator.Allocation{}, postgres.MapError(fmt.Errorf("lock shop sequence: %w", err), "shop")
	}
	if a.Sequence < 1 {
		return corenumerator.Allocation{}, fmt.Errorf("shop %s has invalid next_order_sequence %d", a.ShopCode, a.Sequence)
	}
	return a, nil
}

// Advance increments the shop counter by one.
func (s *Service) Advance(ctx context.Context, shopID id.ID) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, advanceSQL, shopID)
	if err != nil {
		return postgres.MapError(fmt.Errorf("advance shop sequence: %w", err), "shop")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("shop", shopID.String())
	}
	return nil
}
