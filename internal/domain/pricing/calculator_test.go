package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
)

func money(s string) types.Money { return types.MustMoney(s) }

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.Truef(t, money(want).Equal(got), "expected %s, got %s", want, got)
}

func TestCompute_NoDiscount(t *testing.T) {
	lines := []Line{
		{Quantity: 2, Price: money("1500")},
		{Quantity: 1, Price: money("2500")},
	}

	b := Compute(lines, NoDiscount())

	assertMoney(t, "5500", b.Subtotal)
	assertMoney(t, "0", b.Discount)
	assertMoney(t, "5500", b.Total)
}

func TestCompute_PercentageDiscount(t *testing.T) {
	lines := []Line{
		{Quantity: 2, Price: money("1500")},
		{Quantity: 1, Price: money("2500")},
	}

	b := Compute(lines, DiscountSpec{Type: DiscountPercentage, Value: money("10")})

	assertMoney(t, "5500", b.Subtotal)
	assertMoney(t, "550", b.Discount)
	assertMoney(t, "4950", b.Total)
}

func TestCompute_FixedDiscountIsNotClamped(t *testing.T) {
	lines := []Line{{Quantity: 1, Price: money("1000")}}

	b := Compute(lines, DiscountSpec{Type: DiscountFixed, Value: money("1200")})

	assertMoney(t, "1200", b.Discount)
	assertMoney(t, "-200", b.Total)
}

func TestDiscount_UnknownTypePricesAsFixed(t *testing.T) {
	assertMoney(t, "10", Discount(money("5500"), money("10"), DiscountType("")))
	assertMoney(t, "10", Discount(money("5500"), money("10"), DiscountType("bogus")))
}

func TestDiscount_PercentageRoundsToCents(t *testing.T) {
	// 333.33 * 15 / 100 = 49.9995
	assertMoney(t, "50.00", Discount(money("333.33"), money("15"), DiscountPercentage))
}

func TestItemsSubtotal_Empty(t *testing.T) {
	assertMoney(t, "0", ItemsSubtotal(nil))
}

func TestCompute_Deterministic(t *testing.T) {
	lines := []Line{{Quantity: 3, Price: money("999.99")}}
	spec := DiscountSpec{Type: DiscountPercentage, Value: money("12.5")}

	first := Compute(lines, spec)
	second := Compute(lines, spec)

	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, first.Discount.Equal(second.Discount))
}

func TestParseDiscountType(t *testing.T) {
	dt, err := ParseDiscountType("")
	assert.NoError(t, err)
	assert.Equal(t, DiscountFixed, dt)

	dt, err = ParseDiscountType("percentage")
	assert.NoError(t, err)
	assert.Equal(t, DiscountPercentage, dt)

	_, err = ParseDiscountType("PERCENT")
	assert.Error(t, err)
}

func TestDiscountType_JSON(t *testing.T) {
	var dt DiscountType
	assert.NoError(t, dt.UnmarshalJSON([]byte(`"percentage"`)))
	assert.Equal(t, DiscountPercentage, dt)
	assert.Error(t, dt.UnmarshalJSON([]byte(`"half-off"`)))

	b, err := DiscountType("").MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"fixed"`, string(b))
}
