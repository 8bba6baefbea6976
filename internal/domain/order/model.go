// Package order implements the order aggregate: creation with a shop-scoped
// number, command-based mutation, the pending/delivered/cancelled lifecycle
// and the cancellation refund.
package order

import (
	"context"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/entity"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/customer"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/ledger"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/pricing"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
)

// Order is the order header row.
//
// ItemsSubtotal, DiscountAmount and TotalAmount are derived from the items and
// the raw discount; AdvancePaid and DueAmount are derived from the payments.
// They are stored, and every write path rewrites them in the same transaction.
type Order struct {
	entity.BaseEntity
	entity.Audited

	ShopID      id.ID  `db:"shop_id" json:"shopId"`
	CustomerID  id.ID  `db:"customer_id" json:"customerId"`
	OrderNumber string `db:"order_number" json:"orderNumber"`

	DeliveryDate    *time.Time `db:"delivery_date" json:"deliveryDate,omitempty"`
	DeliveryAddress *string    `db:"delivery_address" json:"deliveryAddress,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`

	ItemsSubtotal  types.Money          `db:"items_subtotal" json:"itemsSubtotal"`
	DiscountType   pricing.DiscountType `db:"discount_type" json:"discountType"`
	DiscountValue  types.Money          `db:"discount_value" json:"discountValue"`
	DiscountAmount types.Money          `db:"discount_amount" json:"discountAmount"`
	TotalAmount    types.Money          `db:"total_amount" json:"totalAmount"`
	AdvancePaid    types.Money          `db:"advance_paid" json:"advancePaid"`
	DueAmount      types.Money          `db:"due_amount" json:"dueAmount"`

	Status Status `db:"status" json:"status"`
}

// GetID implements ledger.Reconcilable.
func (o *Order) GetID() id.ID { return o.ID }

// GetTotal implements ledger.Reconcilable.
func (o *Order) GetTotal() types.Money { return o.TotalAmount }

// SetBalance implements ledger.Reconcilable.
func (o *Order) SetBalance(b ledger.Balance) {
	o.AdvancePaid = b.Paid
	o.DueAmount = b.Due
}

// Discount returns the discount as stored on the order.
func (o *Order) Discount() pricing.DiscountSpec {
	return pricing.DiscountSpec{Type: o.DiscountType, Value: o.DiscountValue}
}

// ApplyPricing stores a discount and its priced breakdown.
// The due amount is re-derived against the current advance_paid.
func (o *Order) ApplyPricing(spec pricing.DiscountSpec, b pricing.Breakdown) {
	o.DiscountType = spec.Type
	o.DiscountValue = spec.Value
	o.ItemsSubtotal = b.Subtotal
	o.DiscountAmount = b.Discount
	o.TotalAmount = b.Total
	o.DueAmount = ledger.Due(o.TotalAmount, o.AdvancePaid)
}

// Validate implements entity.Validatable.
func (o *Order) Validate(_ context.Context) error {
	if id.IsNil(o.ShopID) {
		return apperror.NewValidation("shop is required").WithDetail("field", "shopId")
	}
	if id.IsNil(o.CustomerID) {
		return apperror.NewValidation("customer is required").WithDetail("field", "customer")
	}
	if _, err := ParseStatus(string(o.Status)); err != nil {
		return err
	}
	if o.DiscountValue.IsNegative() {
		return apperror.NewValidation("discount must not be negative").
			WithDetail("field", "discount.value")
	}
	return nil
}

// Snapshot returns the fields recorded in the audit trail.
func (o *Order) Snapshot() map[string]any {
	snap := map[string]any{
		"status":         o.Status.String(),
		"customerId":     o.CustomerID.String(),
		"itemsSubtotal":  o.ItemsSubtotal.String(),
		"discountType":   o.DiscountType.String(),
		"discountValue":  o.DiscountValue.String(),
		"discountAmount": o.DiscountAmount.String(),
		"totalAmount":    o.TotalAmount.String(),
		"advancePaid":    o.AdvancePaid.String(),
		"dueAmount":      o.DueAmount.String(),
	}
	if o.DeliveryDate != nil {
		snap["deliveryDate"] = o.DeliveryDate.Format(time.DateOnly)
	}
	if o.DeliveryAddress != nil {
		snap["deliveryAddress"] = *o.DeliveryAddress
	}
	if o.Notes != nil {
		snap["notes"] = *o.Notes
	}
	return snap
}

// Item is one order line. Items are inserted with the order or replaced as a
// whole set; they are never patched.
type Item struct {
	ID            id.ID       `db:"id" json:"id"`
	OrderID       id.ID       `db:"order_id" json:"orderId"`
	LineNo        int         `db:"line_no" json:"lineNo"`
	ProductTypeID id.ID       `db:"product_type_id" json:"productTypeId"`
	ProductSizeID *id.ID      `db:"product_size_id" json:"productSizeId,omitempty"`
	Quantity      int64       `db:"quantity" json:"quantity"`
	Price         types.Money `db:"price" json:"price"`
	LineTotal     types.Money `db:"line_total" json:"lineTotal"`
	Notes         *string     `db:"notes" json:"notes,omitempty"`
}

// ItemInput is a requested order line.
type ItemInput struct {
	ProductTypeID id.ID
	ProductSizeID *id.ID
	Quantity      int64
	Price         types.Money
	Notes         *string
}

// BuildItems validates inputs and numbers them from 1.
// An order always carries at least one item.
func BuildItems(orderID id.ID, inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		if id.IsNil(in.ProductTypeID) {
			return nil, apperror.NewValidation("product type is required").
				WithDetail("field", "items").WithDetail("line", i+1)
		}
		if in.Quantity < 1 {
			return nil, apperror.NewValidation("quantity must be at least 1").
				WithDetail("field", "items.quantity").WithDetail("line", i+1)
		}
		if in.Price.IsNegative() {
			return nil, apperror.NewValidation("price must not be negative").
				WithDetail("field", "items.price").WithDetail("line", i+1)
		}

		line := pricing.Line{Quantity: in.Quantity, Price: in.Price}
		items = append(items, Item{
			ID:            id.New(),
			OrderID:       orderID,
			LineNo:        i + 1,
			ProductTypeID: in.ProductTypeID,
			ProductSizeID: in.ProductSizeID,
			Quantity:      in.Quantity,
			Price:         in.Price,
			LineTotal:     line.Total(),
			Notes:         in.Notes,
		})
	}
	return items, nil
}

// Lines returns the priced view of items.
func Lines(items []Item) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{Quantity: it.Quantity, Price: it.Price}
	}
	return lines
}

// Payment is an append-only ledger row. Refunds carry negative amounts.
type Payment struct {
	ID      id.ID         `db:"id" json:"id"`
	OrderID id.ID         `db:"order_id" json:"orderId"`
	Method  PaymentMethod `db:"method" json:"method"`
	Amount  types.Money   `db:"amount" json:"amount"`

	TransactionID *string `db:"transaction_id" json:"transactionId,omitempty"`
	BankName      *string `db:"bank_name" json:"bankName,omitempty"`
	AccountNumber *string `db:"account_number" json:"accountNumber,omitempty"`
	MFSProvider   *string `db:"mfs_provider" json:"mfsProvider,omitempty"`
	MFSNumber     *string `db:"mfs_number" json:"mfsNumber,omitempty"`

	PaidAt    time.Time `db:"paid_at" json:"paidAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PaymentInput is a payment as entered by staff.
type PaymentInput struct {
	Method        PaymentMethod
	Amount        types.Money
	TransactionID *string
	BankName      *string
	AccountNumber *string
	MFSProvider   *string
	MFSNumber     *string
	// PaidAt defaults to the time of recording.
	PaidAt *time.Time
}

// NewPayment validates in and builds the row. Ordinary methods carry
// positive amounts; a manual refund must be negative.
func NewPayment(orderID id.ID, in PaymentInput, now time.Time) (*Payment, error) {
	if _, err := ParsePaymentMethod(string(in.Method)); err != nil {
		return nil, err
	}
	switch {
	case in.Method == MethodRefund && !in.Amount.IsNegative():
		return nil, apperror.NewValidation("refund amount must be negative").
			WithDetail("field", "payment.amount").WithDetail("value", in.Amount.String())
	case in.Method != MethodRefund && !in.Amount.IsPositive():
		return nil, apperror.NewValidation("payment amount must be positive").
			WithDetail("field", "payment.amount").WithDetail("value", in.Amount.String())
	}

	paidAt := now
	if in.PaidAt != nil {
		paidAt = *in.PaidAt
	}
	return &Payment{
		ID:            id.New(),
		OrderID:       orderID,
		Method:        in.Method,
		Amount:        in.Amount,
		TransactionID: in.TransactionID,
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		MFSProvider:   in.MFSProvider,
		MFSNumber:     in.MFSNumber,
		PaidAt:        paidAt.UTC(),
		CreatedAt:     now.UTC(),
	}, nil
}

// NewRefund builds the compensating payment for a cancelled order.
func NewRefund(orderID id.ID, paid types.Money, now time.Time) *Payment {
	return &Payment{
		ID:        id.New(),
		OrderID:   orderID,
		Method:    MethodRefund,
		Amount:    paid.Neg(),
		PaidAt:    now.UTC(),
		CreatedAt: now.UTC(),
	}
}

// Aggregate is an order loaded with everything it references.
type Aggregate struct {
	Order    *Order             `json:"order"`
	Shop     *shop.Shop         `json:"shop"`
	Customer *customer.Customer `json:"customer"`
	Items    []Item             `json:"items"`
	Payments []Payment          `json:"payments"`
}
