package numerator

import (
	"context"
	"sync"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
)

// MockAllocator is an in-memory Allocator for unit tests.
// Shops are registered with AddShop; the func fields override default behavior.
//
// Inside a unit of work opened with Begin, Allocate holds a per-shop lock
// until the unit finishes, and an aborted unit reverts its Advance calls.
// Outside Begin nothing is locked.
type MockAllocator struct {
	AllocateFunc func(ctx context.Context, shopID id.ID) (Allocation, error)
	AdvanceFunc  func(ctx context.Context, shopID id.ID) error

	mu    sync.Mutex
	shops map[id.ID]*mockShop
}

type mockShop struct {
	alloc Allocation
	lock  chan struct{}
}

type holdKey struct{}

// hold tracks the shop locks and advances of one unit of work.
type hold struct {
	mu       sync.Mutex
	locked   map[id.ID]bool
	advanced map[id.ID]int64
}

// AddShop registers a shop with its current counter value.
func (m *MockAllocator) AddShop(shopID id.ID, code string, next int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shops == nil {
		m.shops = make(map[id.ID]*mockShop)
	}
	m.shops[shopID] = &mockShop{
		alloc: Allocation{ShopID: shopID, ShopCode: code, ShopName: code, IsActive: true, Sequence: next},
		lock:  make(chan struct{}, 1),
	}
}

// Next returns the counter value currently stored for the shop.
func (m *MockAllocator) Next(shopID id.ID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shops[shopID]; ok {
		return s.alloc.Sequence
	}
	return 0
}

// Begin opens a unit of work. The returned finish releases every shop lock
// taken through ctx; with commit false it first undoes the unit's advances.
// Nested calls join the outer unit and get a no-op finish.
func (m *MockAllocator) Begin(ctx context.Context) (context.Context, func(commit bool)) {
	if _, ok := ctx.Value(holdKey{}).(*hold); ok {
		return ctx, func(bool) {}
	}
	h := &hold{locked: map[id.ID]bool{}, advanced: map[id.ID]int64{}}
	return context.WithValue(ctx, holdKey{}, h), func(commit bool) {
		m.finish(h, commit)
	}
}

func (m *MockAllocator) finish(h *hold, commit bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m.mu.Lock()
	if !commit {
		for shopID, n := range h.advanced {
			if s, ok := m.shops[shopID]; ok {
				s.alloc.Sequence -= n
			}
		}
	}
	var release []chan struct{}
	for shopID := range h.locked {
		if s, ok := m.shops[shopID]; ok {
			release = append(release, s.lock)
		}
	}
	m.mu.Unlock()

	for _, l := range release {
		<-l
	}
	h.locked, h.advanced = map[id.ID]bool{}, map[id.ID]int64{}
}

func (m *MockAllocator) shop(shopID id.ID) (*mockShop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[shopID]
	if !ok {
		return nil, apperror.NewNotFound("shop", shopID.String())
	}
	return s, nil
}

// Allocate implements Allocator.
func (m *MockAllocator) Allocate(ctx context.Context, shopID id.ID) (Allocation, error) {
	if m.AllocateFunc != nil {
		return m.AllocateFunc(ctx, shopID)
	}
	s, err := m.shop(shopID)
	if err != nil {
		return Allocation{}, err
	}

	if h, ok := ctx.Value(holdKey{}).(*hold); ok {
		h.mu.Lock()
		owned := h.locked[shopID]
		h.mu.Unlock()
		if !owned {
			select {
			case s.lock <- struct{}{}:
			case <-ctx.Done():
				return Allocation{}, apperror.NewTransactionFailure(ctx.Err())
			}
			h.mu.Lock()
			h.locked[shopID] = true
			h.mu.Unlock()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return s.alloc, nil
}

// Advance implements Allocator.
func (m *MockAllocator) Advance(ctx context.Context, shopID id.ID) error {
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, shopID)
	}
	s, err := m.shop(shopID)
	if err != nil {
		return err
	}
	if h, ok := ctx.Value(holdKey{}).(*hold); ok {
		h.mu.Lock()
		h.advanced[shopID]++
		h.mu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.alloc.Sequence++
	return nil
}

// Ensure compile-time interface compliance.
var _ Allocator = (*MockAllocator)(nil)
