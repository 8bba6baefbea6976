package order_repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/entity"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/customer"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/order"
)

func TestOrderColumns(t *testing.T) {
	r := NewOrderRepo(nil)

	for _, col := range []string{
		"id", "created_at", "updated_at", "created_by", "updated_by",
		"shop_id", "customer_id", "order_number", "items_subtotal", "discount_type",
		"discount_value", "discount_amount", "total_amount", "advance_paid", "due_amount", "status",
	} {
		assert.Contains(t, r.cols, col)
	}
	assert.Contains(t, itemCols, "line_total")
	assert.Contains(t, paymentCols, "mfs_number")
}

func TestForUpdateQuery(t *testing.T) {
	r := NewOrderRepo(nil)
	orderID := id.New()

	sql, args, err := r.forUpdateQuery(orderID).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(sql, "FROM orders WHERE id = $1 FOR UPDATE"), sql)
	require.Len(t, args, 1)
	assert.Equal(t, orderID.String(), fmt.Sprint(args[0]))
}

func TestUpdateQuery_SkipsImmutableColumns(t *testing.T) {
	r := NewOrderRepo(nil)
	o := &order.Order{
		BaseEntity:  entity.NewBaseEntity(time.Now()),
		OrderNumber: "ORD-DHK-000005",
		Status:      order.StatusDelivered,
		TotalAmount: types.NewMoneyFromInt(5500),
	}

	sql, _, err := r.updateQuery(o).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "UPDATE orders SET "), sql)
	assert.Contains(t, sql, "WHERE id = $")
	set := sql[:strings.Index(sql, " WHERE ")]
	assert.Contains(t, set, "status = $")
	assert.Contains(t, set, "total_amount = $")
	assert.Contains(t, set, "updated_at = $")
	for _, col := range immutableOrderCols {
		assert.NotContains(t, set, " "+col+" = $", col)
	}
}

func TestInsertItemsQuery(t *testing.T) {
	orderID := id.New()
	items, err := order.BuildItems(orderID, []order.ItemInput{
		{ProductTypeID: id.New(), Quantity: 2, Price: types.NewMoneyFromInt(1500)},
		{ProductTypeID: id.New(), Quantity: 1, Price: types.NewMoneyFromInt(2500)},
	})
	require.NoError(t, err)

	sql, args, err := insertItemsQuery(orderID, items).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO order_items ("+strings.Join(itemCols, ",")+") VALUES "), sql)
	assert.Len(t, args, 2*len(itemCols))
	assert.Equal(t, 1, strings.Count(sql, "),("))
}

func TestSumPaymentsQuery(t *testing.T) {
	orderID := id.New()
	sql, args, err := sumPaymentsQuery(orderID).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COALESCE(SUM(amount), 0) FROM order_payments WHERE order_id = $1", sql)
	require.Len(t, args, 1)
	assert.Equal(t, orderID.String(), fmt.Sprint(args[0]))
}

func TestListQueries(t *testing.T) {
	r := NewOrderRepo(nil)
	shopID := id.New()
	status := order.StatusPending
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	f := order.DefaultListFilter()
	f.ShopID = &shopID
	f.Status = &status
	f.DateFrom = &from
	f.Search = "DHK"
	f.Offset = 100

	page, count, err := r.listQueries(f)
	require.NoError(t, err)

	sql, args, err := page.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE shop_id = $1 AND status = $2 AND created_at >= $3 AND order_number ILIKE $4")
	assert.Contains(t, sql, "ORDER BY created_at DESC, id LIMIT 50 OFFSET 100")
	require.Len(t, args, 4)
	assert.Equal(t, shopID.String(), fmt.Sprint(args[0]))
	assert.Equal(t, []any{"pending", from, "%DHK%"}, args[1:])

	csql, cargs, err := count.ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(csql, "SELECT COUNT(*) FROM (SELECT "), csql)
	assert.NotContains(t, csql, "LIMIT")
	assert.Equal(t, args, cargs)
}

func TestListQueries_RejectsUnknownSort(t *testing.T) {
	f := order.DefaultListFilter()
	f.OrderBy = "password; DROP TABLE orders"

	_, _, err := NewOrderRepo(nil).listQueries(f)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestParseOrderBy(t *testing.T) {
	allowed := []string{"created_at", "order_number"}

	got, err := parseOrderBy("", "-created_at", allowed)
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC", got)

	got, err = parseOrderBy("+order_number", "-created_at", allowed)
	require.NoError(t, err)
	assert.Equal(t, "order_number ASC", got)

	_, err = parseOrderBy("-", "-created_at", allowed)
	assert.Error(t, err)
}

func TestShopListQuery(t *testing.T) {
	sql, args, err := NewShopRepo(nil).listQuery(true).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM shops WHERE is_active = $1 ORDER BY code")
	assert.Equal(t, []any{true}, args)
}

func TestCustomerInsertIfAbsent(t *testing.T) {
	c := customer.NewCustomer("017-1234 5678", "Rahim", nil, time.Now())

	sql, args, err := NewCustomerRepo(nil).insertIfAbsent(c).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO customers (id,phone,name,address,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (phone) DO NOTHING",
		sql)
	assert.Equal(t, "01712345678", args[1])
}
