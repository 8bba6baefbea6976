// Package app wires the storage layer and domain services shared by the
// server, worker and seed binaries.
package app

import (
	"context"
	"fmt"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/config"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/customer"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/order"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/numerator"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres/order_repo"
)

// App holds the process-wide dependencies.
type App struct {
	Pool      *postgres.Pool
	TxManager *postgres.TxManager

	Orders    *order.Service
	OrderRepo *order_repo.OrderRepo
	Shops     *shop.Service
	Customers *customer.Service
}

// New connects to the database and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	a, err := build(pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func build(pool *postgres.Pool, cfg *config.Config) (*App, error) {
	txManager := postgres.NewTxManager(pool).WithStatementTimeout(cfg.Database.StatementTimeout)

	policy, err := order.NewCELPolicy(cfg.Order.PolicyRules)
	if err != nil {
		return nil, fmt.Errorf("order policy: %w", err)
	}
	codec, err := postgres.NewAuditCodec(cfg.Order.AuditCompressThreshold)
	if err != nil {
		return nil, fmt.Errorf("audit codec: %w", err)
	}

	orderRepo := order_repo.NewOrderRepo(txManager)
	shops := shop.NewService(order_repo.NewShopRepo(txManager))
	customers := customer.NewService(order_repo.NewCustomerRepo(txManager)).WithRegion(cfg.Order.PhoneRegion)

	orders := order.NewService(order.Deps{
		Repo:      orderRepo,
		Customers: customers,
		Shops:     shops,
		Allocator: numerator.New(txManager),
		TxManager: txManager,
		Events:    postgres.NewOrderEventPublisher(txManager),
		Audit:     postgres.NewOrderAuditTrail(txManager, codec),
		Policy:    policy,
	})

	return &App{
		Pool:      pool,
		TxManager: txManager,
		Orders:    orders,
		OrderRepo: orderRepo,
		Shops:     shops,
		Customers: customers,
	}, nil
}

// Close releases the pool.
func (a *App) Close() {
	a.Pool.Close()
}
