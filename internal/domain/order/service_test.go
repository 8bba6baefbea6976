package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	appctx "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/context"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/entity"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/numerator"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/pricing"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *memRepo
	alloc     *numerator.MockAllocator
	customers *memCustomers
	events    *memEvents
	audit     *memAudit
	tx        *passThroughTx
	shopID    id.ID
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()

	f := &fixture{
		repo:      newMemRepo(),
		alloc:     &numerator.MockAllocator{},
		customers: newMemCustomers(),
		events:    &memEvents{},
		audit:     &memAudit{},
		shopID:    id.New(),
	}
	f.alloc.AddShop(f.shopID, "DHK", 5)
	f.tx = &passThroughTx{alloc: f.alloc}

	shops := memShops{f.shopID: {
		BaseEntity:        entity.NewBaseEntity(fixedNow),
		Code:              "DHK",
		Name:              "Dhaka",
		NextOrderSequence: 5,
		IsActive:          true,
	}}

	f.svc = NewService(Deps{
		Repo:      f.repo,
		Customers: f.customers,
		Shops:     shops,
		Allocator: f.alloc,
		TxManager: f.tx,
		Events:    f.events,
		Audit:     f.audit,
		Policy:    policy,
		Now:       func() time.Time { return fixedNow },
	})
	return f
}

func money(s string) types.Money { return types.MustMoney(s) }

func strPtr(s string) *string { return &s }

func assertMoney(t *testing.T, want string, got types.Money, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// assertInvariants checks every derived field of the aggregate against its
// items and payments.
func assertInvariants(t *testing.T, agg *Aggregate) {
	t.Helper()
	o := agg.Order

	subtotal := types.Zero()
	for _, it := range agg.Items {
		assertMoney(t, it.Price.Mul(types.NewMoneyFromInt(it.Quantity)).String(), it.LineTotal)
		subtotal = subtotal.Add(it.LineTotal)
	}
	assertMoney(t, subtotal.String(), o.ItemsSubtotal, "items_subtotal")
	assertMoney(t, pricing.Discount(subtotal, o.DiscountValue, o.DiscountType).String(), o.DiscountAmount, "discount_amount")
	assertMoney(t, subtotal.Sub(o.DiscountAmount).String(), o.TotalAmount, "total_amount")

	paid := types.Zero()
	for _, p := range agg.Payments {
		paid = paid.Add(p.Amount)
	}
	assertMoney(t, paid.String(), o.AdvancePaid, "advance_paid")
	assertMoney(t, types.FloorZero(o.TotalAmount.Sub(paid)).String(), o.DueAmount, "due_amount")
}

func baseRequest(shopID id.ID) CreateRequest {
	return CreateRequest{
		ShopID:   shopID,
		Customer: CustomerInput{Phone: "01711112222", Name: strPtr("Rahim")},
		Items: []ItemInput{
			{ProductTypeID: id.New(), Quantity: 2, Price: money("1500")},
			{ProductTypeID: id.New(), Quantity: 1, Price: money("2500")},
		},
	}
}

func singleItemRequest(shopID id.ID, qty int64, price string) CreateRequest {
	req := baseRequest(shopID)
	req.Items = []ItemInput{{ProductTypeID: id.New(), Quantity: qty, Price: money(price)}}
	return req
}

func TestCreate_AllocatesShopScopedNumber(t *testing.T) {
	f := newFixture(t, nil)

	agg, err := f.svc.Create(context.Background(), baseRequest(f.shopID))
	require.NoError(t, err)

	assert.Equal(t, "ORD-DHK-000005", agg.Order.OrderNumber)
	assert.Equal(t, int64(6), f.alloc.Next(f.shopID))
	assert.Equal(t, StatusPending, agg.Order.Status)

	require.NotNil(t, agg.Shop)
	assert.Equal(t, "DHK", agg.Shop.Code)
	require.NotNil(t, agg.Customer)
	assert.Equal(t, "Rahim", agg.Customer.Name)
	assert.Equal(t, agg.Customer.ID, agg.Order.CustomerID)

	require.Len(t, agg.Items, 2)
	assert.Equal(t, 1, agg.Items[0].LineNo)
	assertMoney(t, "3000", agg.Items[0].LineTotal)
	assert.Empty(t, agg.Payments)
	assertMoney(t, "0", agg.Order.AdvancePaid)
	assertMoney(t, "5500", agg.Order.DueAmount)
	assertInvariants(t, agg)

	assert.Equal(t, []EventType{EventCreated}, f.events.types())
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "create", f.audit.entries[0].Action)
}

func TestCreate_Pricing(t *testing.T) {
	tests := []struct {
		name     string
		discount pricing.DiscountSpec
		subtotal string
		amount   string
		total    string
	}{
		{name: "no discount", discount: pricing.NoDiscount(), subtotal: "5500", amount: "0", total: "5500"},
		{
			name:     "percentage",
			discount: pricing.DiscountSpec{Type: pricing.DiscountPercentage, Value: money("10")},
			subtotal: "5500", amount: "550", total: "4950",
		},
		{
			name:     "fixed",
			discount: pricing.DiscountSpec{Type: pricing.DiscountFixed, Value: money("500")},
			subtotal: "5500", amount: "500", total: "5000",
		},
		{
			name:     "fixed above subtotal is kept",
			discount: pricing.DiscountSpec{Value: money("6000")},
			subtotal: "5500", amount: "6000", total: "-500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			req := baseRequest(f.shopID)
			req.Discount = tt.discount

			agg, err := f.svc.Create(context.Background(), req)
			require.NoError(t, err)

			assertMoney(t, tt.subtotal, agg.Order.ItemsSubtotal)
			assertMoney(t, tt.amount, agg.Order.DiscountAmount)
			assertMoney(t, tt.total, agg.Order.TotalAmount)
			assertInvariants(t, agg)
		})
	}
}

func TestCreate_InitialPaymentSettlesOrder(t *testing.T) {
	f := newFixture(t, nil)
	req := singleItemRequest(f.shopID, 1, "3000")
	req.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("3000")}

	agg, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, agg.Payments, 1)
	assert.Equal(t, MethodCash, agg.Payments[0].Method)
	assertMoney(t, "3000", agg.Order.AdvancePaid)
	assertMoney(t, "0", agg.Order.DueAmount)
	assertInvariants(t, agg)
	assert.Equal(t, []EventType{EventCreated, EventPaymentAdded}, f.events.types())
}

func TestCreate_UnknownShop(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), baseRequest(id.New()))
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Empty(t, f.repo.orders)
}

func TestCreate_InactiveShop(t *testing.T) {
	f := newFixture(t, nil)
	f.alloc.AllocateFunc = func(_ context.Context, shopID id.ID) (numerator.Allocation, error) {
		return numerator.Allocation{ShopID: shopID, ShopCode: "DHK", IsActive: false, Sequence: 5}, nil
	}

	_, err := f.svc.Create(context.Background(), baseRequest(f.shopID))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeShopInactive, appErr.Code)
	assert.Equal(t, int64(5), f.alloc.Next(f.shopID))
}

func TestCreate_RejectsBadInputBeforeLocking(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"no items", func(r *CreateRequest) { r.Items = nil }},
		{"zero quantity", func(r *CreateRequest) { r.Items[0].Quantity = 0 }},
		{"negative price", func(r *CreateRequest) { r.Items[0].Price = money("-1") }},
		{"negative discount", func(r *CreateRequest) { r.Discount = pricing.DiscountSpec{Value: money("-5")} }},
		{"unknown discount type", func(r *CreateRequest) { r.Discount = pricing.DiscountSpec{Type: "bogus"} }},
		{"zero payment", func(r *CreateRequest) {
			r.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("0")}
		}},
		{"positive refund", func(r *CreateRequest) {
			r.InitialPayment = &PaymentInput{Method: MethodRefund, Amount: money("10")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			locked := false
			f.alloc.AllocateFunc = func(context.Context, id.ID) (numerator.Allocation, error) {
				locked = true
				return numerator.Allocation{}, nil
			}
			req := baseRequest(f.shopID)
			tt.mutate(&req)

			_, err := f.svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), err.Error())
			assert.False(t, locked)
		})
	}
}

func TestCreate_FailureLeavesNoTrace(t *testing.T) {
	policy, err := NewCELPolicy([]string{"items <= 1"})
	require.NoError(t, err)
	f := newFixture(t, policy)

	req := baseRequest(f.shopID)
	req.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("100")}

	_, err = f.svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeOrderPolicy, appErr.Code)

	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.repo.items)
	assert.Empty(t, f.repo.payments)
	assert.Equal(t, int64(5), f.alloc.Next(f.shopID))
	assert.Empty(t, f.events.events)
}

func TestCreate_AdvanceFailureAborts(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("deadlock detected")
	f.alloc.AdvanceFunc = func(context.Context, id.ID) error {
		return apperror.NewTransactionFailure(boom)
	}

	_, err := f.svc.Create(context.Background(), baseRequest(f.shopID))
	require.Error(t, err)
	assert.True(t, apperror.IsTransactionFailure(err))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.repo.orders)
}

func TestCreate_DuplicateNumberIsConflict(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.orders[id.New()] = Order{OrderNumber: "ORD-DHK-000005"}

	_, err := f.svc.Create(context.Background(), baseRequest(f.shopID))
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, int64(5), f.alloc.Next(f.shopID))
}

func TestCreate_ConcurrentSameShopGetsDistinctNumbers(t *testing.T) {
	f := newFixture(t, nil)
	const n = 20

	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := baseRequest(f.shopID)
			req.Customer.Phone = fmt.Sprintf("0171000%04d", i)
			agg, err := f.svc.Create(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			numbers <- agg.Order.OrderNumber
		}(i)
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("create failed: %v", err)
	}

	seen := map[string]bool{}
	for num := range numbers {
		assert.False(t, seen[num], "duplicate %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	for seq := 5; seq < 5+n; seq++ {
		assert.True(t, seen[fmt.Sprintf("ORD-DHK-%06d", seq)], "missing sequence %d", seq)
	}
	assert.Equal(t, int64(5+n), f.alloc.Next(f.shopID))
}

func TestCreate_ConcurrentFailuresLeaveNoGaps(t *testing.T) {
	policy, err := NewCELPolicy([]string{"items <= 1"})
	require.NoError(t, err)
	f := newFixture(t, policy)
	const n = 20

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	numbers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := singleItemRequest(f.shopID, 1, "500")
			if i%2 == 1 {
				req = baseRequest(f.shopID)
			}
			req.Customer.Phone = fmt.Sprintf("0172000%04d", i)
			agg, err := f.svc.Create(context.Background(), req)
			if err != nil {
				failed.Add(1)
				return
			}
			numbers <- agg.Order.OrderNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	assert.Equal(t, int64(n/2), failed.Load())
	seen := map[string]bool{}
	for num := range numbers {
		seen[num] = true
	}
	assert.Len(t, seen, n/2)
	for seq := 5; seq < 5+n/2; seq++ {
		assert.True(t, seen[fmt.Sprintf("ORD-DHK-%06d", seq)], "missing sequence %d", seq)
	}
	assert.Equal(t, int64(5+n/2), f.alloc.Next(f.shopID))
	assert.Len(t, f.repo.orders, n/2)
}

func TestCreate_SetsCreatedByFromUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "staff-7"})
	req := baseRequest(f.shopID)
	req.InitialPayment = &PaymentInput{Method: MethodMFS, Amount: money("200"), MFSProvider: strPtr("bkash")}

	agg, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "staff-7", agg.Order.CreatedBy)
	assert.Equal(t, "staff-7", agg.Order.UpdatedBy)
	assert.Equal(t, "staff-7", agg.Payments[0].CreatedBy)
}

func TestCreate_ForbiddenShop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u", ShopIDs: []string{id.New().String()}})

	_, err := f.svc.Create(ctx, baseRequest(f.shopID))
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))
}

func TestAddPayment_PaysOffOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, singleItemRequest(f.shopID, 1, "3000"))
	require.NoError(t, err)

	agg, err := f.svc.AddPayment(ctx, created.Order.ID, PaymentInput{Method: MethodCash, Amount: money("3000")})
	require.NoError(t, err)

	assertMoney(t, "3000", agg.Order.AdvancePaid)
	assertMoney(t, "0", agg.Order.DueAmount)
	assertInvariants(t, agg)
}

func TestAddPayment_OverpaymentFloorsDue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, singleItemRequest(f.shopID, 1, "1000"))
	require.NoError(t, err)

	agg, err := f.svc.AddPayment(ctx, created.Order.ID, PaymentInput{Method: MethodBank, Amount: money("1500"), BankName: strPtr("City Bank")})
	require.NoError(t, err)

	assertMoney(t, "1500", agg.Order.AdvancePaid)
	assertMoney(t, "0", agg.Order.DueAmount)
	assertInvariants(t, agg)
}

func TestAddPayment_InvalidStoresNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, singleItemRequest(f.shopID, 1, "1000"))
	require.NoError(t, err)

	_, err = f.svc.AddPayment(ctx, created.Order.ID, PaymentInput{Method: MethodCash, Amount: money("-10")})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Empty(t, f.repo.payments[created.Order.ID])
}

func TestAddPayment_UnknownOrder(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.AddPayment(context.Background(), id.New(), PaymentInput{Method: MethodCash, Amount: money("1")})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCancel_RefundsEverythingPaid(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := singleItemRequest(f.shopID, 1, "3000")
	req.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("3000")}
	created, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	agg, err := f.svc.Cancel(ctx, created.Order.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, agg.Order.Status)
	require.Len(t, agg.Payments, 2)
	refund := agg.Payments[1]
	assert.Equal(t, MethodRefund, refund.Method)
	assertMoney(t, "-3000", refund.Amount)
	assert.Equal(t, fixedNow, refund.PaidAt)
	assertMoney(t, "0", agg.Order.AdvancePaid)
	assertMoney(t, "3000", agg.Order.DueAmount)
	assertInvariants(t, agg)
	assert.Contains(t, f.events.types(), EventCancelled)

	again, err := f.svc.Cancel(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Len(t, again.Payments, 2)
	assertMoney(t, "0", again.Order.AdvancePaid)
}

func TestCancel_PartialPayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := singleItemRequest(f.shopID, 2, "1500")
	req.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("1000")}
	created, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.AddPayment(ctx, created.Order.ID, PaymentInput{Method: MethodMFS, Amount: money("200")})
	require.NoError(t, err)

	agg, err := f.svc.Cancel(ctx, created.Order.ID)
	require.NoError(t, err)

	require.Len(t, agg.Payments, 3)
	assertMoney(t, "-1200", agg.Payments[2].Amount)
	assertMoney(t, "0", agg.Order.AdvancePaid)
	assertMoney(t, "3000", agg.Order.DueAmount)
	assertInvariants(t, agg)
}

func TestCancel_NothingPaidNoRefund(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)

	agg, err := f.svc.Cancel(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, agg.Order.Status)
	assert.Empty(t, agg.Payments)
}

func TestExecute_PaymentThenCancelInOneCall(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, singleItemRequest(f.shopID, 1, "800"))
	require.NoError(t, err)

	agg, err := f.svc.Execute(ctx, created.Order.ID,
		AddPayment{Payment: PaymentInput{Method: MethodCash, Amount: money("300")}},
		CancelOrder{},
	)
	require.NoError(t, err)
	require.Len(t, agg.Payments, 2)
	assertMoney(t, "-300", agg.Payments[1].Amount)
	assertInvariants(t, agg)
}

func TestExecute_FailingCommandRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, singleItemRequest(f.shopID, 1, "800"))
	require.NoError(t, err)

	_, err = f.svc.Execute(ctx, created.Order.ID,
		AddPayment{Payment: PaymentInput{Method: MethodCash, Amount: money("300")}},
		ReplaceItems{Items: nil},
	)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	assert.Empty(t, f.repo.payments[created.Order.ID])
	stored := f.repo.orders[created.Order.ID]
	assertMoney(t, "0", stored.AdvancePaid)
}

func TestReplaceItems_RepricesAgainstUnchangedPaid(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := singleItemRequest(f.shopID, 1, "1000")
	req.Discount = pricing.DiscountSpec{Type: pricing.DiscountFixed, Value: money("100")}
	req.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("500")}
	created, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	assertMoney(t, "900", created.Order.TotalAmount)
	assertMoney(t, "400", created.Order.DueAmount)

	agg, err := f.svc.Execute(ctx, created.Order.ID, ReplaceItems{
		Items: []ItemInput{{ProductTypeID: id.New(), Quantity: 3, Price: money("1000")}},
	})
	require.NoError(t, err)

	require.Len(t, agg.Items, 1)
	assert.Equal(t, int64(3), agg.Items[0].Quantity)
	assertMoney(t, "3000", agg.Order.ItemsSubtotal)
	assertMoney(t, "100", agg.Order.DiscountAmount)
	assertMoney(t, "2900", agg.Order.TotalAmount)
	assertMoney(t, "500", agg.Order.AdvancePaid)
	assertMoney(t, "2400", agg.Order.DueAmount)
	assertInvariants(t, agg)
}

func TestReplaceItems_WithNewDiscount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, singleItemRequest(f.shopID, 1, "1000"))
	require.NoError(t, err)

	agg, err := f.svc.Execute(ctx, created.Order.ID, ReplaceItems{
		Items:    []ItemInput{{ProductTypeID: id.New(), Quantity: 2, Price: money("1000")}},
		Discount: &pricing.DiscountSpec{Type: pricing.DiscountPercentage, Value: money("25")},
	})
	require.NoError(t, err)
	assertMoney(t, "500", agg.Order.DiscountAmount)
	assertMoney(t, "1500", agg.Order.TotalAmount)
	assert.Equal(t, pricing.DiscountPercentage, agg.Order.DiscountType)
}

func TestUpdate_PatchDecomposition(t *testing.T) {
	items := []ItemInput{{ProductTypeID: id.New(), Quantity: 1, Price: money("10")}}
	cancelled := StatusCancelled
	delivered := StatusDelivered

	names := func(cmds []Command) []string {
		out := make([]string, len(cmds))
		for i, c := range cmds {
			out[i] = c.Name()
		}
		return out
	}

	full := Patch{
		Status:   &cancelled,
		Customer: &CustomerPatch{Phone: "01800000000"},
		Items:    &items,
		Discount: &pricing.DiscountSpec{Value: money("1")},
		Notes:    strPtr("rush"),
	}
	assert.Equal(t, []string{"cancel_order", "rebind_customer", "replace_items", "update_details"}, names(full.Commands()))

	discountOnly := Patch{Discount: &pricing.DiscountSpec{Value: money("1")}, Status: &delivered}
	cmds := discountOnly.Commands()
	require.Len(t, cmds, 1)
	details, ok := cmds[0].(UpdateDetails)
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, *details.Status)
	assert.NotNil(t, details.Discount)

	assert.Empty(t, Patch{}.Commands())
}

func TestUpdate_AppliesPatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)
	oldCustomer := created.Order.CustomerID

	delivery := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	delivered := StatusDelivered
	agg, err := f.svc.Update(ctx, created.Order.ID, Patch{
		Status:          &delivered,
		Customer:        &CustomerPatch{Phone: "01899999999", Name: strPtr("Karim")},
		Discount:        &pricing.DiscountSpec{Type: pricing.DiscountPercentage, Value: money("10")},
		DeliveryDate:    &delivery,
		DeliveryAddress: strPtr("Mirpur 10"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, agg.Order.Status)
	assert.NotEqual(t, oldCustomer, agg.Order.CustomerID)
	assert.Equal(t, "Karim", agg.Customer.Name)
	assertMoney(t, "4950", agg.Order.TotalAmount)
	require.NotNil(t, agg.Order.DeliveryDate)
	assert.True(t, delivery.Equal(*agg.Order.DeliveryDate))
	assert.Equal(t, "Mirpur 10", *agg.Order.DeliveryAddress)
	assert.Equal(t, "ORD-DHK-000005", agg.Order.OrderNumber)
	assertInvariants(t, agg)
	assert.Contains(t, f.events.types(), EventUpdated)

	history, err := f.svc.History(ctx, created.Order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "rebind_customer,update_details", history[1].Action)
	assert.Contains(t, history[1].Changes, "status")
}

func TestRebindCustomer_SamePhoneIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)

	agg, err := f.svc.Execute(ctx, created.Order.ID, RebindCustomer{Phone: "017-1111-2222", CustomerName: strPtr("Ignored")})
	require.NoError(t, err)
	assert.Equal(t, created.Order.CustomerID, agg.Order.CustomerID)
	assert.Equal(t, "Rahim", agg.Customer.Name)
	assert.Len(t, f.audit.entries, 1)
}

func TestRebindCustomer_NewPhoneCreatesNamedCustomer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)

	agg, err := f.svc.Execute(ctx, created.Order.ID,
		RebindCustomer{Phone: "01855555555", CustomerName: strPtr("Karim"), Address: strPtr("Uttara")})
	require.NoError(t, err)
	assert.NotEqual(t, created.Order.CustomerID, agg.Order.CustomerID)
	assert.Equal(t, "01855555555", agg.Customer.Phone)
	assert.Equal(t, "Karim", agg.Customer.Name)
	require.NotNil(t, agg.Customer.Address)
	assert.Equal(t, "Uttara", *agg.Customer.Address)
}

func TestUpdateDetails_CannotCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)

	cancelled := StatusCancelled
	_, err = f.svc.Execute(ctx, created.Order.ID, UpdateDetails{Status: &cancelled})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, StatusPending, f.repo.orders[created.Order.ID].Status)
}

func TestUpdateDetails_RevivesCancelledOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := baseRequest(f.shopID)
	req.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("1000")}
	created, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, created.Order.ID)
	require.NoError(t, err)

	pending := StatusPending
	agg, err := f.svc.Execute(ctx, created.Order.ID, UpdateDetails{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, agg.Order.Status)
	assert.Len(t, agg.Payments, 2)
	assertMoney(t, "5500", agg.Order.DueAmount)
	assertInvariants(t, agg)
}

func TestRecalculateTotals_RepairsAndIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := baseRequest(f.shopID)
	req.Discount = pricing.DiscountSpec{Type: pricing.DiscountPercentage, Value: money("10")}
	req.InitialPayment = &PaymentInput{Method: MethodCash, Amount: money("950")}
	created, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	// Stored derived fields drifted, e.g. written by an older import.
	stored := f.repo.orders[created.Order.ID]
	stored.TotalAmount = money("1")
	stored.DiscountAmount = money("0")
	stored.AdvancePaid = money("0")
	stored.DueAmount = money("1")
	f.repo.orders[created.Order.ID] = stored

	first, err := f.svc.RecalculateTotals(ctx, created.Order.ID)
	require.NoError(t, err)
	assertMoney(t, "4950", first.Order.TotalAmount)
	assertMoney(t, "950", first.Order.AdvancePaid)
	assertMoney(t, "4000", first.Order.DueAmount)
	assertInvariants(t, first)
	eventsAfterFirst := len(f.events.events)
	auditAfterFirst := len(f.audit.entries)

	second, err := f.svc.RecalculateTotals(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Order.Snapshot(), second.Order.Snapshot())
	assert.Equal(t, first.Order.UpdatedAt, second.Order.UpdatedAt)
	assert.Len(t, second.Payments, len(first.Payments))
	assert.Len(t, f.events.events, eventsAfterFirst)
	assert.Len(t, f.audit.entries, auditAfterFirst)
}

func TestGetByNumber(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)

	agg, err := f.svc.GetByNumber(ctx, "ORD-DHK-000005")
	require.NoError(t, err)
	assert.Equal(t, created.Order.ID, agg.Order.ID)

	_, err = f.svc.GetByNumber(ctx, "nonsense")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.GetByNumber(ctx, "ORD-DHK-000099")
	assert.True(t, apperror.IsNotFound(err))
}

func TestReads_RunInReadOnlyTransaction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)
	_, writes := f.tx.counts()

	_, err = f.svc.Get(ctx, created.Order.ID)
	require.NoError(t, err)
	_, err = f.svc.GetByNumber(ctx, created.Order.OrderNumber)
	require.NoError(t, err)
	_, err = f.svc.History(ctx, created.Order.ID)
	require.NoError(t, err)
	_, err = f.svc.List(ctx, DefaultListFilter())
	require.NoError(t, err)

	readOnly, readWrite := f.tx.counts()
	assert.Equal(t, 4, readOnly)
	assert.Equal(t, writes, readWrite)
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, baseRequest(f.shopID))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, first.Order.ID)
	require.NoError(t, err)

	filter := DefaultListFilter()
	st := StatusCancelled
	filter.Status = &st
	res, err := f.svc.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "ORD-DHK-000005", res.Items[0].OrderNumber)
}

func TestNewShopStartsAtOne(t *testing.T) {
	s := shop.NewShop("ctg", "Chattogram", fixedNow)
	assert.Equal(t, int64(1), s.NextOrderSequence)
}
