// Package pricing computes order subtotals, discounts and totals.
// Everything here is pure: no storage, no clock.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// Line is the priced part of an order item.
type Line struct {
	Quantity int64
	Price    types.Money
}

// Total returns quantity × price.
func (l Line) Total() types.Money {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}

// DiscountSpec is the discount as entered: a raw value and how to read it.
type DiscountSpec struct {
	Type  DiscountType `json:"type"`
	Value types.Money  `json:"value"`
}

// NoDiscount is a fixed discount of zero.
func NoDiscount() DiscountSpec {
	return DiscountSpec{Type: DiscountFixed, Value: decimal.Zero}
}

// Breakdown is the result of pricing an item list.
type Breakdown struct {
	Subtotal types.Money
	Discount types.Money
	Total    types.Money
}

// ItemsSubtotal returns Σ quantity × price.
func ItemsSubtotal(lines []Line) types.Money {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	return subtotal
}

// Discount returns the discount amount for a subtotal.
//
// A percentage discount is subtotal × raw / 100 rounded to cents. Any other
// type is a fixed amount returned verbatim; it is not clamped to the subtotal.
func Discount(subtotal, raw types.Money, t DiscountType) types.Money {
	if t == DiscountPercentage {
		return types.Round(subtotal.Mul(raw).Div(hundred))
	}
	return raw
}

// Total returns subtotal - discount. The result may be negative.
func Total(subtotal, discount types.Money) types.Money {
	return subtotal.Sub(discount)
}

// Compute prices lines with the given discount.
func Compute(lines []Line, spec DiscountSpec) Breakdown {
	subtotal := ItemsSubtotal(lines)
	discount := Discount(subtotal, spec.Value, spec.Type)
	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Total:    Total(subtotal, discount),
	}
}
