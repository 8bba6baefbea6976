package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
)

func TestMockAllocator_SecondUnitWaitsForFirst(t *testing.T) {
	m := &MockAllocator{}
	shopID := id.New()
	m.AddShop(shopID, "DHK", 5)

	ctx1, finish1 := m.Begin(context.Background())
	a1, err := m.Allocate(ctx1, shopID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), a1.Sequence)

	got := make(chan int64, 1)
	go func() {
		ctx2, finish2 := m.Begin(context.Background())
		defer finish2(true)
		a2, err := m.Allocate(ctx2, shopID)
		if err != nil {
			got <- -1
			return
		}
		got <- a2.Sequence
	}()

	select {
	case seq := <-got:
		t.Fatalf("second allocation returned %d while the shop was locked", seq)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.Advance(ctx1, shopID))
	finish1(true)

	select {
	case seq := <-got:
		assert.Equal(t, int64(6), seq)
	case <-time.After(time.Second):
		t.Fatal("second allocation never acquired the shop lock")
	}
}

func TestMockAllocator_RollbackRevertsAdvance(t *testing.T) {
	m := &MockAllocator{}
	shopID := id.New()
	m.AddShop(shopID, "DHK", 5)

	ctx, finish := m.Begin(context.Background())
	_, err := m.Allocate(ctx, shopID)
	require.NoError(t, err)
	require.NoError(t, m.Advance(ctx, shopID))
	assert.Equal(t, int64(6), m.Next(shopID))
	finish(false)

	assert.Equal(t, int64(5), m.Next(shopID))

	// The lock is released: a new unit allocates immediately.
	ctx, finish = m.Begin(context.Background())
	defer finish(true)
	a, err := m.Allocate(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.Sequence)
}

func TestMockAllocator_ReentrantWithinUnit(t *testing.T) {
	m := &MockAllocator{}
	shopID := id.New()
	m.AddShop(shopID, "DHK", 1)

	ctx, finish := m.Begin(context.Background())
	defer finish(true)

	inner, innerFinish := m.Begin(ctx)
	_, err := m.Allocate(inner, shopID)
	require.NoError(t, err)
	innerFinish(true)

	_, err = m.Allocate(ctx, shopID)
	require.NoError(t, err)
}

func TestMockAllocator_WaitHonorsContext(t *testing.T) {
	m := &MockAllocator{}
	shopID := id.New()
	m.AddShop(shopID, "DHK", 1)

	ctx1, finish1 := m.Begin(context.Background())
	defer finish1(true)
	_, err := m.Allocate(ctx1, shopID)
	require.NoError(t, err)

	ctx2, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ctx2, finish2 := m.Begin(ctx2)
	defer finish2(false)

	_, err = m.Allocate(ctx2, shopID)
	require.Error(t, err)
	assert.True(t, apperror.IsTransactionFailure(err))
}
