package order_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
)

const shopsTable = "shops"

// ShopRepo implements shop.Repository.
// next_order_sequence is only written on insert; the numerator owns it after that.
type ShopRepo struct {
	baseRepo
}

// NewShopRepo creates a shop repository.
func NewShopRepo(txManager *postgres.TxManager) *ShopRepo {
	return &ShopRepo{baseRepo: newBaseRepo(txManager, shopsTable, "shop", postgres.ExtractDBColumns[shop.Shop]())}
}

var _ shop.Repository = (*ShopRepo)(nil)

// Create inserts a shop.
func (r *ShopRepo) Create(ctx context.Context, s *shop.Shop) error {
	return r.insertEntity(ctx, s)
}

// GetByID returns a shop by id.
func (r *ShopRepo) GetByID(ctx context.Context, shopID id.ID) (*shop.Shop, error) {
	var s shop.Shop
	if err := r.get(ctx, &s, r.selectAll().Where(squirrel.Eq{"id": shopID}), shopID.String()); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByCode returns a shop by code.
func (r *ShopRepo) GetByCode(ctx context.Context, code string) (*shop.Shop, error) {
	var s shop.Shop
	if err := r.get(ctx, &s, r.selectAll().Where(squirrel.Eq{"code": code}), code); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns shops ordered by code.
func (r *ShopRepo) List(ctx context.Context, activeOnly bool) ([]*shop.Shop, error) {
	var out []*shop.Shop
	if err := r.list(ctx, &out, r.listQuery(activeOnly)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ShopRepo) listQuery(activeOnly bool) squirrel.SelectBuilder {
	q := r.selectAll().OrderBy("code")
	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	return q
}
