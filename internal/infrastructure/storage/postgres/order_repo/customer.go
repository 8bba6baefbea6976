package order_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/customer"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
)

const customersTable = "customers"

// CustomerRepo implements customer.Repository.
type CustomerRepo struct {
	baseRepo
}

// NewCustomerRepo creates a customer repository.
func NewCustomerRepo(txManager *postgres.TxManager) *CustomerRepo {
	return &CustomerRepo{baseRepo: newBaseRepo(txManager, customersTable, "customer", postgres.ExtractDBColumns[customer.Customer]())}
}

var _ customer.Repository = (*CustomerRepo)(nil)

// GetByID returns a customer by id.
func (r *CustomerRepo) GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	var c customer.Customer
	if err := r.get(ctx, &c, r.selectAll().Where(squirrel.Eq{"id": customerID}), customerID.String()); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByPhone returns the customer owning a normalized phone number.
func (r *CustomerRepo) GetByPhone(ctx context.Context, phone string) (*customer.Customer, error) {
	var c customer.Customer
	if err := r.get(ctx, &c, r.selectAll().Where(squirrel.Eq{"phone": phone}), phone); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateIfAbsent implements customer.Repository. A concurrent insert of the
// same phone makes this a no-op rather than a unique violation.
func (r *CustomerRepo) CreateIfAbsent(ctx context.Context, c *customer.Customer) (bool, error) {
	n, err := r.exec(ctx, r.insertIfAbsent(c), "insert")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CustomerRepo) insertIfAbsent(c *customer.Customer) squirrel.InsertBuilder {
	return builder.Insert(r.table).
		Columns("id", "phone", "name", "address", "created_at", "updated_at").
		Values(c.ID, c.Phone, c.Name, c.Address, c.CreatedAt, c.UpdatedAt).
		Suffix("ON CONFLICT (phone) DO NOTHING")
}
