package order

import (
	"context"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	appctx "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/context"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/customer"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/pricing"
)

// Command is one typed change applied to a locked order by Service.Execute.
// The set is closed: CancelOrder, RebindCustomer, ReplaceItems,
// UpdateDetails and AddPayment.
type Command interface {
	Name() string
	apply(ctx context.Context, m *mutation) error
}

// mutation is the working state of one Execute call.
type mutation struct {
	svc   *Service
	now   time.Time
	order *Order

	items       []Item
	itemsLoaded bool

	// dirty marks changes outside the header snapshot (items, payments).
	dirty        bool
	updated      bool
	recalculated bool
	events       []Event
}

func (m *mutation) loadItems(ctx context.Context) ([]Item, error) {
	if m.itemsLoaded {
		return m.items, nil
	}
	items, err := m.svc.repo.GetItems(ctx, m.order.ID)
	if err != nil {
		return nil, err
	}
	m.items, m.itemsLoaded = items, true
	return items, nil
}

func (m *mutation) reprice(ctx context.Context, spec pricing.DiscountSpec) error {
	items, err := m.loadItems(ctx)
	if err != nil {
		return err
	}
	m.order.ApplyPricing(spec, pricing.Compute(Lines(items), spec))
	return nil
}

func (m *mutation) emit(t EventType, payload map[string]any) {
	m.events = append(m.events, Event{
		Type:        t,
		OrderID:     m.order.ID,
		OrderNumber: m.order.OrderNumber,
		ShopID:      m.order.ShopID,
		Payload:     payload,
		OccurredAt:  m.now,
	})
}

func (m *mutation) insertPayment(ctx context.Context, p *Payment) error {
	p.CreatedBy = appctx.GetUserID(ctx)
	if err := m.svc.repo.AddPayment(ctx, p); err != nil {
		return err
	}
	m.dirty = true
	return nil
}

// CancelOrder moves the order to cancelled. When money was received, exactly
// one refund of -paid is recorded. Cancelling a cancelled order changes nothing.
type CancelOrder struct{}

func (CancelOrder) Name() string { return "cancel_order" }

func (CancelOrder) apply(ctx context.Context, m *mutation) error {
	if m.order.Status.IsCancelled() {
		return nil
	}

	// Payments added earlier in this Execute call count too.
	paid, err := m.svc.ledger.TotalPaid(ctx, m.order.ID)
	if err != nil {
		return err
	}

	payload := map[string]any{"previousStatus": m.order.Status.String()}
	if paid.IsPositive() {
		refund := NewRefund(m.order.ID, paid, m.now)
		if err := m.insertPayment(ctx, refund); err != nil {
			return err
		}
		payload["refundId"] = refund.ID.String()
		payload["refundAmount"] = refund.Amount.String()
	}

	m.order.Status = StatusCancelled
	m.emit(EventCancelled, payload)
	return nil
}

// RebindCustomer points the order at the customer owning Phone, creating that
// customer when needed. CustomerName and Address are used only on creation.
// Same phone as the current customer is a no-op.
type RebindCustomer struct {
	Phone        string
	CustomerName *string
	Address      *string
}

func (RebindCustomer) Name() string { return "rebind_customer" }

func (c RebindCustomer) apply(ctx context.Context, m *mutation) error {
	current, err := m.svc.customers.Get(ctx, m.order.CustomerID)
	if err != nil {
		return err
	}
	if customer.NormalizePhone(c.Phone) == current.Phone {
		return nil
	}

	next, err := m.svc.customers.ResolveOrCreate(ctx, c.Phone, c.CustomerName, c.Address)
	if err != nil {
		return err
	}
	m.order.CustomerID = next.ID
	m.updated = true
	return nil
}

// ReplaceItems swaps the whole item set and reprices. Discount, when nil,
// keeps the order's current discount.
type ReplaceItems struct {
	Items    []ItemInput
	Discount *pricing.DiscountSpec
}

func (ReplaceItems) Name() string { return "replace_items" }

func (c ReplaceItems) apply(ctx context.Context, m *mutation) error {
	items, err := BuildItems(m.order.ID, c.Items)
	if err != nil {
		return err
	}

	spec := m.order.Discount()
	if c.Discount != nil {
		if spec, err = normalizeDiscount(*c.Discount); err != nil {
			return err
		}
	}

	if err := m.svc.repo.SaveItems(ctx, m.order.ID, items); err != nil {
		return err
	}
	m.items, m.itemsLoaded = items, true
	m.dirty, m.updated = true, true

	return m.reprice(ctx, spec)
}

// UpdateDetails sets the provided header fields. Status accepts pending and
// delivered; cancellation goes through CancelOrder so the refund is recorded.
// A Discount reprices the current items.
type UpdateDetails struct {
	DeliveryDate    *time.Time
	DeliveryAddress *string
	Notes           *string
	Status          *Status
	Discount        *pricing.DiscountSpec
}

func (UpdateDetails) Name() string { return "update_details" }

func (c UpdateDetails) apply(ctx context.Context, m *mutation) error {
	if c.Status != nil {
		switch *c.Status {
		case StatusPending, StatusDelivered:
			m.order.Status = *c.Status
		case StatusCancelled:
			return apperror.NewBusinessRule(apperror.CodeInvalidCommand,
				"use cancel_order to cancel an order").WithDetail("field", "status")
		default:
			if _, err := ParseStatus(string(*c.Status)); err != nil {
				return err
			}
		}
	}
	if c.DeliveryDate != nil {
		d := c.DeliveryDate.UTC()
		m.order.DeliveryDate = &d
	}
	if c.DeliveryAddress != nil {
		m.order.DeliveryAddress = c.DeliveryAddress
	}
	if c.Notes != nil {
		m.order.Notes = c.Notes
	}
	m.updated = true

	if c.Discount != nil {
		spec, err := normalizeDiscount(*c.Discount)
		if err != nil {
			return err
		}
		return m.reprice(ctx, spec)
	}
	return nil
}

// AddPayment appends one payment. Overpayment is accepted; due floors at zero.
type AddPayment struct {
	Payment PaymentInput
}

func (AddPayment) Name() string { return "add_payment" }

func (c AddPayment) apply(ctx context.Context, m *mutation) error {
	p, err := NewPayment(m.order.ID, c.Payment, m.now)
	if err != nil {
		return err
	}
	if err := m.insertPayment(ctx, p); err != nil {
		return err
	}
	m.emit(EventPaymentAdded, map[string]any{
		"paymentId": p.ID.String(),
		"method":    p.Method.String(),
		"amount":    p.Amount.String(),
	})
	return nil
}

// recalculate reprices from the stored items and discount.
type recalculate struct{}

func (recalculate) Name() string { return "recalculate" }

func (recalculate) apply(ctx context.Context, m *mutation) error {
	m.recalculated = true
	return m.reprice(ctx, m.order.Discount())
}

// CustomerPatch identifies the customer an order should belong to.
type CustomerPatch struct {
	Phone   string
	Name    *string
	Address *string
}

// Patch is the field-presence update shape. Nil fields are left alone.
type Patch struct {
	Status          *Status
	Customer        *CustomerPatch
	Items           *[]ItemInput
	Discount        *pricing.DiscountSpec
	DeliveryDate    *time.Time
	DeliveryAddress *string
	Notes           *string
}

// Commands decomposes the patch in a fixed order: cancel, rebind customer,
// replace items, details. A discount travels with the items when both are
// present, otherwise it is a details change.
func (p Patch) Commands() []Command {
	var cmds []Command

	var details UpdateDetails
	hasDetails := false

	if p.Status != nil {
		if *p.Status == StatusCancelled {
			cmds = append(cmds, CancelOrder{})
		} else {
			details.Status = p.Status
			hasDetails = true
		}
	}
	if p.Customer != nil {
		cmds = append(cmds, RebindCustomer{
			Phone:        p.Customer.Phone,
			CustomerName: p.Customer.Name,
			Address:      p.Customer.Address,
		})
	}
	if p.Items != nil {
		cmds = append(cmds, ReplaceItems{Items: *p.Items, Discount: p.Discount})
	} else if p.Discount != nil {
		details.Discount = p.Discount
		hasDetails = true
	}
	if p.DeliveryDate != nil || p.DeliveryAddress != nil || p.Notes != nil {
		details.DeliveryDate = p.DeliveryDate
		details.DeliveryAddress = p.DeliveryAddress
		details.Notes = p.Notes
		hasDetails = true
	}
	if hasDetails {
		cmds = append(cmds, details)
	}
	return cmds
}

func normalizeDiscount(spec pricing.DiscountSpec) (pricing.DiscountSpec, error) {
	t, err := pricing.ParseDiscountType(string(spec.Type))
	if err != nil {
		return pricing.DiscountSpec{}, err
	}
	if spec.Value.IsNegative() {
		return pricing.DiscountSpec{}, apperror.NewValidation("discount must not be negative").
			WithDetail("field", "discount.value").WithDetail("value", spec.Value.String())
	}
	return pricing.DiscountSpec{Type: t, Value: spec.Value}, nil
}
