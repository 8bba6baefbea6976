package order

import (
	"context"
	"sort"
	"sync"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/numerator"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/customer"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/ledger"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
)

// memRepo is an in-memory Repository. It stores values, so callers never
// share memory with it.
type memRepo struct {
	mu       sync.Mutex
	orders   map[id.ID]Order
	items    map[id.ID][]Item
	payments map[id.ID][]Payment
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:   map[id.ID]Order{},
		items:    map[id.ID][]Item{},
		payments: map[id.ID][]Payment{},
	}
}

func (r *memRepo) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.OrderNumber == o.OrderNumber {
			return apperror.NewDuplicate("order", "order_number", o.OrderNumber)
		}
	}
	r.orders[o.ID] = *o
	orderID := o.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.orders, orderID)
		delete(r.items, orderID)
		delete(r.payments, orderID)
	})
	return nil
}

// restoreOrder registers a rollback that puts prev back.
func (r *memRepo) restoreOrder(ctx context.Context, prev Order) {
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.orders[prev.ID]; ok {
			r.orders[prev.ID] = prev
		}
	})
}

func (r *memRepo) GetByID(_ context.Context, orderID id.ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	return &o, nil
}

func (r *memRepo) GetByNumber(_ context.Context, number string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == number {
			return &o, nil
		}
	}
	return nil, apperror.NewNotFound("order", number)
}

func (r *memRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *memRepo) Update(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return apperror.NewNotFound("order", o.ID.String())
	}
	r.restoreOrder(ctx, stored)
	updated := *o
	updated.OrderNumber = stored.OrderNumber
	r.orders[o.ID] = updated
	return nil
}

func (r *memRepo) GetItems(_ context.Context, orderID id.ID) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Item(nil), r.items[orderID]...), nil
}

func (r *memRepo) SaveItems(ctx context.Context, orderID id.ID, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.items[orderID]
	r.items[orderID] = append([]Item(nil), items...)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if had {
			r.items[orderID] = prev
		} else {
			delete(r.items, orderID)
		}
	})
	return nil
}

func (r *memRepo) AddPayment(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.OrderID] = append(r.payments[p.OrderID], *p)
	orderID, paymentID := p.OrderID, p.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		kept := r.payments[orderID][:0]
		for _, q := range r.payments[orderID] {
			if q.ID != paymentID {
				kept = append(kept, q)
			}
		}
		if len(kept) == 0 {
			delete(r.payments, orderID)
			return
		}
		r.payments[orderID] = kept
	})
	return nil
}

func (r *memRepo) GetPayments(_ context.Context, orderID id.ID) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payment(nil), r.payments[orderID]...), nil
}

func (r *memRepo) SumPayments(_ context.Context, orderID id.ID) (types.Money, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := types.Zero()
	for _, p := range r.payments[orderID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (r *memRepo) SaveBalance(ctx context.Context, orderID id.ID, b ledger.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return apperror.NewNotFound("order", orderID.String())
	}
	r.restoreOrder(ctx, o)
	o.AdvancePaid, o.DueAmount = b.Paid, b.Due
	r.orders[orderID] = o
	return nil
}

func (r *memRepo) List(_ context.Context, f ListFilter) (domain.ListResult[*Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if f.ShopID != nil && o.ShopID != *f.ShopID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return domain.ListResult[*Order]{Items: out, TotalCount: int64(len(out)), Limit: f.Limit}, nil
}

type undoKey struct{}

// undoLog collects the compensations of one unit of work.
type undoLog struct {
	mu  sync.Mutex
	fns []func()
}

// onRollback registers fn to run if the unit of work in ctx fails.
// Outside a unit of work it does nothing.
func onRollback(ctx context.Context, fn func()) {
	if l, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		l.mu.Lock()
		l.fns = append(l.fns, fn)
		l.mu.Unlock()
	}
}

// passThroughTx runs units of work concurrently. A failed unit is undone in
// reverse order and releases its shop locks; serialization comes only from
// the allocator.
type passThroughTx struct {
	alloc *numerator.MockAllocator

	mu        sync.Mutex
	readOnly  int
	readWrite int
}

func (t *passThroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(undoKey{}).(*undoLog); nested {
		return fn(ctx)
	}
	t.mu.Lock()
	t.readWrite++
	t.mu.Unlock()

	log := &undoLog{}
	ctx = context.WithValue(ctx, undoKey{}, log)
	ctx, finish := t.alloc.Begin(ctx)

	err := fn(ctx)
	if err != nil {
		log.mu.Lock()
		for i := len(log.fns) - 1; i >= 0; i-- {
			log.fns[i]()
		}
		log.mu.Unlock()
	}
	finish(err == nil)
	return err
}

func (t *passThroughTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.readOnly++
	t.mu.Unlock()
	return fn(ctx)
}

func (t *passThroughTx) counts() (readOnly, readWrite int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readOnly, t.readWrite
}

type memCustomers struct {
	mu      sync.Mutex
	byPhone map[string]*customer.Customer
}

func newMemCustomers() *memCustomers {
	return &memCustomers{byPhone: map[string]*customer.Customer{}}
}

func (m *memCustomers) ResolveOrCreate(_ context.Context, phone string, name, address *string) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phone = customer.NormalizePhone(phone)
	if phone == "" {
		return nil, apperror.NewValidation("phone is required")
	}
	if c, ok := m.byPhone[phone]; ok {
		return c, nil
	}
	n := ""
	if name != nil {
		n = *name
	}
	c := customer.NewCustomer(phone, n, address, fixedNow)
	m.byPhone[phone] = c
	return c, nil
}

func (m *memCustomers) Get(_ context.Context, customerID id.ID) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byPhone {
		if c.ID == customerID {
			return c, nil
		}
	}
	return nil, apperror.NewNotFound("customer", customerID.String())
}

type memShops map[id.ID]*shop.Shop

func (m memShops) Get(_ context.Context, shopID id.ID) (*shop.Shop, error) {
	if s, ok := m[shopID]; ok {
		return s, nil
	}
	return nil, apperror.NewNotFound("shop", shopID.String())
}

type memEvents struct {
	mu     sync.Mutex
	events []Event
}

func (m *memEvents) Publish(_ context.Context, events ...Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memEvents) types() []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

type memAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *memAudit) Record(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) History(_ context.Context, orderID id.ID) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEntry
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}
