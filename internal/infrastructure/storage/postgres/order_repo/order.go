package order_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/ledger"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/order"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
)

const (
	ordersTable   = "orders"
	itemsTable    = "order_items"
	paymentsTable = "order_payments"
)

// Columns that Update never rewrites.
var immutableOrderCols = []string{"id", "shop_id", "order_number", "created_at", "created_by"}

var itemCols = postgres.ExtractDBColumns[order.Item]()

var paymentCols = postgres.ExtractDBColumns[order.Payment]()

// OrderRepo implements order.Repository over orders, order_items and order_payments.
type OrderRepo struct {
	baseRepo
}

// NewOrderRepo creates an order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{baseRepo: newBaseRepo(txManager, ordersTable, "order", postgres.ExtractDBColumns[order.Order]())}
}

var _ order.Repository = (*OrderRepo)(nil)

// Create inserts the order header.
func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	return r.insertEntity(ctx, o)
}

// GetByID returns an order by id.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*order.Order, error) {
	return r.getOne(ctx, r.selectAll().Where(squirrel.Eq{"id": orderID}), orderID.String())
}

// GetByNumber returns an order by its number.
func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, r.selectAll().Where(squirrel.Eq{"order_number": number}), number)
}

// GetForUpdate reads the order and holds its row lock until the transaction ends.
func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*order.Order, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	return r.getOne(ctx, r.forUpdateQuery(orderID), orderID.String())
}

func (r *OrderRepo) forUpdateQuery(orderID id.ID) squirrel.SelectBuilder {
	return r.selectAll().Where(squirrel.Eq{"id": orderID}).Suffix("FOR UPDATE")
}

func (r *OrderRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*order.Order, error) {
	var o order.Order
	if err := r.get(ctx, &o, q, key); err != nil {
		return nil, err
	}
	return &o, nil
}

// Update writes every mutable header column.
func (r *OrderRepo) Update(ctx context.Context, o *order.Order) error {
	n, err := r.exec(ctx, r.updateQuery(o), "update")
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("order", o.ID.String())
	}
	return nil
}

func (r *OrderRepo) updateQuery(o *order.Order) squirrel.UpdateBuilder {
	data := postgres.PickColumns(postgres.StructToMap(o), r.cols, immutableOrderCols...)
	return builder.Update(r.table).
		SetMap(data).
		Where(squirrel.Eq{"id": o.ID})
}

// GetItems returns the items of an order by line number.
func (r *OrderRepo) GetItems(ctx context.Context, orderID id.ID) ([]order.Item, error) {
	q := builder.Select(itemCols...).
		From(itemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no")

	var items []order.Item
	if err := r.list(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveItems replaces the item set: delete all, then one multi-row insert.
func (r *OrderRepo) SaveItems(ctx context.Context, orderID id.ID, items []order.Item) error {
	del := builder.Delete(itemsTable).Where(squirrel.Eq{"order_id": orderID})
	if _, err := r.exec(ctx, del, "delete items from"); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	_, err := r.exec(ctx, insertItemsQuery(orderID, items), "insert items into")
	return err
}

func insertItemsQuery(orderID id.ID, items []order.Item) squirrel.InsertBuilder {
	q := builder.Insert(itemsTable).Columns(itemCols...)
	for _, it := range items {
		row := postgres.StructToMap(it)
		row["order_id"] = orderID
		values := make([]any, len(itemCols))
		for i, c := range itemCols {
			values[i] = row[c]
		}
		q = q.Values(values...)
	}
	return q
}

// AddPayment appends a payment row.
func (r *OrderRepo) AddPayment(ctx context.Context, p *order.Payment) error {
	data := postgres.PickColumns(postgres.StructToMap(p), paymentCols)
	_, err := r.exec(ctx, builder.Insert(paymentsTable).SetMap(data), "insert payment into")
	return err
}

// GetPayments returns payments in the order they were made.
func (r *OrderRepo) GetPayments(ctx context.Context, orderID id.ID) ([]order.Payment, error) {
	q := builder.Select(paymentCols...).
		From(paymentsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("paid_at", "created_at", "id")

	var payments []order.Payment
	if err := r.list(ctx, &payments, q); err != nil {
		return nil, err
	}
	return payments, nil
}

// SumPayments implements ledger.Store.
func (r *OrderRepo) SumPayments(ctx context.Context, orderID id.ID) (types.Money, error) {
	sql, args, err := sumPaymentsQuery(orderID).ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build query: %w", err)
	}
	var sum types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return types.Zero(), postgres.MapError(fmt.Errorf("sum payments: %w", err), "payment")
	}
	return sum, nil
}

func sumPaymentsQuery(orderID id.ID) squirrel.SelectBuilder {
	return builder.Select("COALESCE(SUM(amount), 0)").
		From(paymentsTable).
		Where(squirrel.Eq{"order_id": orderID})
}

// SaveBalance implements ledger.Store.
func (r *OrderRepo) SaveBalance(ctx context.Context, orderID id.ID, b ledger.Balance) error {
	q := builder.Update(r.table).
		Set("advance_paid", b.Paid).
		Set("due_amount", b.Due).
		Where(squirrel.Eq{"id": orderID})
	n, err := r.exec(ctx, q, "save balance on")
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("order", orderID.String())
	}
	return nil
}

var orderSortable = []string{
	"created_at", "updated_at", "order_number", "delivery_date", "total_amount", "due_amount", "status",
}

// List returns one page of orders and the total match count.
func (r *OrderRepo) List(ctx context.Context, filter order.ListFilter) (domain.ListResult[*order.Order], error) {
	result := domain.ListResult[*order.Order]{Limit: filter.Limit, Offset: filter.Offset, Items: []*order.Order{}}

	page, count, err := r.listQueries(filter)
	if err != nil {
		return result, err
	}

	sql, args, err := count.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError(fmt.Errorf("count orders: %w", err), "order")
	}

	if err := r.list(ctx, &result.Items, page); err != nil {
		return result, err
	}
	return result, nil
}

// listQueries builds the page query and its COUNT(*) companion.
func (r *OrderRepo) listQueries(filter order.ListFilter) (squirrel.SelectBuilder, squirrel.SelectBuilder, error) {
	q := r.selectAll()

	if filter.ShopID != nil {
		q = q.Where(squirrel.Eq{"shop_id": *filter.ShopID})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": filter.Status.String()})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.DateTo})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"order_number": "%" + filter.Search + "%"})
	}

	count := builder.Select("COUNT(*)").FromSelect(q, "sub")

	orderBy, err := parseOrderBy(filter.OrderBy, "-created_at", orderSortable)
	if err != nil {
		return q, count, err
	}
	q = q.OrderBy(orderBy, "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q, count, nil
}
