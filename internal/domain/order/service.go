package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	appctx "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/context"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/entity"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/numerator"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/tx"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/audit"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/customer"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/ledger"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/pricing"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
	pkgnumerator "github.com/SagorIslamOfficial/crm-order-sub001/pkg/numerator"
)

var tracer = otel.Tracer("crm-order/order")

// ShopReader loads shops for the aggregate.
type ShopReader interface {
	Get(ctx context.Context, shopID id.ID) (*shop.Shop, error)
}

// Deps are the collaborators of the order service.
// Events, Audit and Policy are optional.
type Deps struct {
	Repo      Repository
	Customers customer.Resolver
	Shops     ShopReader
	Allocator numerator.Allocator
	TxManager tx.Manager

	Events EventPublisher
	Audit  AuditTrail
	Policy Policy

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service is the order aggregate service. Every mutation is one transaction:
// it commits completely or leaves no trace, and nothing is retried here.
type Service struct {
	repo      Repository
	customers customer.Resolver
	shops     ShopReader
	allocator numerator.Allocator
	ledger    *ledger.Ledger
	txManager tx.Manager
	events    EventPublisher
	audit     AuditTrail
	policy    Policy
	hooks     *domain.HookRegistry[*Order]
	now       func() time.Time
}

// NewService creates an order service.
// created_by/updated_by are filled from the request user by default hooks.
func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		customers: d.Customers,
		shops:     d.Shops,
		allocator: d.Allocator,
		ledger:    ledger.New(d.Repo),
		txManager: d.TxManager,
		events:    d.Events,
		audit:     d.Audit,
		policy:    d.Policy,
		hooks:     domain.NewHookRegistry[*Order](),
		now:       d.Now,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.audit == nil {
		s.audit = nopAudit{}
	}
	if s.policy == nil {
		s.policy = AllowAll{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.hooks.OnBeforeCreate(audit.EnrichCreatedBy[*Order])
	s.hooks.OnBeforeUpdate(audit.EnrichUpdatedBy[*Order])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

// CustomerInput identifies the ordering customer.
type CustomerInput struct {
	Phone   string
	Name    *string
	Address *string
}

// CreateRequest is everything needed to place an order.
type CreateRequest struct {
	ShopID          id.ID
	Customer        CustomerInput
	Items           []ItemInput
	Discount        pricing.DiscountSpec
	DeliveryDate    *time.Time
	DeliveryAddress *string
	Notes           *string
	InitialPayment  *PaymentInput
}

// Create places a new order.
//
// Inside one transaction: resolve the customer, lock the shop counter, price
// the items, insert order and items, record the initial payment and
// reconcile, then advance the counter. On any failure nothing is stored and
// the sequence value is not consumed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Aggregate, error) {
	ctx, span := tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.String("shop.id", req.ShopID.String())))
	defer span.End()

	if !appctx.HasShopAccess(ctx, req.ShopID.String()) {
		return nil, apperror.NewForbidden("no access to shop").WithDetail("shopId", req.ShopID.String())
	}

	now := s.now().UTC()
	o := &Order{
		BaseEntity:      entity.NewBaseEntity(now),
		ShopID:          req.ShopID,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		Status:          StatusPending,
	}
	if req.DeliveryDate != nil {
		d := req.DeliveryDate.UTC()
		o.DeliveryDate = &d
	}

	// Everything that can be checked without the database is checked before
	// the shop row is locked.
	items, err := BuildItems(o.ID, req.Items)
	if err != nil {
		return nil, err
	}
	spec, err := normalizeDiscount(req.Discount)
	if err != nil {
		return nil, err
	}
	o.ApplyPricing(spec, pricing.Compute(Lines(items), spec))

	var initial *Payment
	if req.InitialPayment != nil {
		if initial, err = NewPayment(o.ID, *req.InitialPayment, now); err != nil {
			return nil, err
		}
	}

	var agg *Aggregate
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.customers.ResolveOrCreate(ctx, req.Customer.Phone, req.Customer.Name, req.Customer.Address)
		if err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}
		o.CustomerID = c.ID

		alloc, err := s.allocator.Allocate(ctx, req.ShopID)
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}
		if !alloc.IsActive {
			return apperror.NewBusinessRule(apperror.CodeShopInactive, "shop is not accepting orders").
				WithDetail("shopId", req.ShopID.String())
		}
		o.OrderNumber = pkgnumerator.FormatOrderNumber(alloc.ShopCode, alloc.Sequence)

		if err := s.hooks.RunBeforeCreate(ctx, o); err != nil {
			return err
		}
		if err := o.Validate(ctx); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.SaveItems(ctx, o.ID, items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}

		events := []Event{{
			Type:        EventCreated,
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			ShopID:      o.ShopID,
			OccurredAt:  now,
		}}

		if initial != nil {
			initial.CreatedBy = appctx.GetUserID(ctx)
			if err := s.repo.AddPayment(ctx, initial); err != nil {
				return fmt.Errorf("add payment: %w", err)
			}
			if _, err := s.ledger.Reconcile(ctx, o); err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			events = append(events, Event{
				Type:        EventPaymentAdded,
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				ShopID:      o.ShopID,
				Payload: map[string]any{
					"paymentId": initial.ID.String(),
					"method":    initial.Method.String(),
					"amount":    initial.Amount.String(),
				},
				OccurredAt: now,
			})
		}

		if err := s.policy.Check(ctx, o, len(items)); err != nil {
			return err
		}

		if err := s.allocator.Advance(ctx, req.ShopID); err != nil {
			return fmt.Errorf("advance shop sequence: %w", err)
		}

		if err := s.audit.Record(ctx, AuditEntry{
			ID:        id.New(),
			OrderID:   o.ID,
			Action:    "create",
			UserID:    appctx.GetUserID(ctx),
			Changes:   Diff(nil, o.Snapshot()),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		if err := s.events.Publish(ctx, events...); err != nil {
			return fmt.Errorf("publish events: %w", err)
		}

		agg, err = s.load(ctx, o)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.hooks.RunAfterCreate(ctx, o); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "order created",
		"id", o.ID,
		"number", o.OrderNumber,
		"total", o.TotalAmount.String(),
		"paid", o.AdvancePaid.String())

	return agg, nil
}

// Execute locks the order and applies cmds in order, then reconciles paid
// and due and returns the refreshed aggregate. An empty command list only
// reconciles.
func (s *Service) Execute(ctx context.Context, orderID id.ID, cmds ...Command) (*Aggregate, error) {
	names := make([]string, len(cmds))
	for i, c := range cmds {
		if c == nil {
			return nil, apperror.NewValidation("nil command").WithDetail("index", i)
		}
		names[i] = c.Name()
	}
	action := strings.Join(names, ",")

	ctx, span := tracer.Start(ctx, "order.Execute",
		trace.WithAttributes(
			attribute.String("order.id", orderID.String()),
			attribute.String("order.commands", action)))
	defer span.End()

	var (
		agg     *Aggregate
		changes map[string]any
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !appctx.HasShopAccess(ctx, o.ShopID.String()) {
			return apperror.NewForbidden("no access to shop").WithDetail("shopId", o.ShopID.String())
		}

		before := o.Snapshot()
		m := &mutation{svc: s, now: s.now().UTC(), order: o}

		for _, c := range cmds {
			if err := c.apply(ctx, m); err != nil {
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
		}

		if m.dirty || len(Diff(before, o.Snapshot())) > 0 {
			if err := s.hooks.RunBeforeUpdate(ctx, o); err != nil {
				return err
			}
			if err := o.Validate(ctx); err != nil {
				return err
			}
			o.Touch(m.now)
			if err := s.repo.Update(ctx, o); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
		}

		if _, err := s.ledger.Reconcile(ctx, o); err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}

		items, err := m.loadItems(ctx)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		if err := s.policy.Check(ctx, o, len(items)); err != nil {
			return err
		}

		changes = Diff(before, o.Snapshot())
		if len(changes) > 0 || m.dirty {
			if m.updated {
				m.emit(EventUpdated, map[string]any{"changes": changes})
			}
			if m.recalculated && len(changes) > 0 {
				m.emit(EventRecalculated, map[string]any{"changes": changes})
			}
			if err := s.audit.Record(ctx, AuditEntry{
				ID:        id.New(),
				OrderID:   o.ID,
				Action:    action,
				UserID:    appctx.GetUserID(ctx),
				Changes:   changes,
				CreatedAt: m.now,
			}); err != nil {
				return fmt.Errorf("record audit: %w", err)
			}
		}
		if len(m.events) > 0 {
			if err := s.events.Publish(ctx, m.events...); err != nil {
				return fmt.Errorf("publish events: %w", err)
			}
		}

		agg, err = s.load(ctx, o)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.hooks.RunAfterUpdate(ctx, agg.Order); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	logger.Info(ctx, "order updated",
		"id", agg.Order.ID,
		"number", agg.Order.OrderNumber,
		"commands", action,
		"changed", len(changes),
		"status", agg.Order.Status.String(),
		"due", agg.Order.DueAmount.String())

	return agg, nil
}

// Update applies a field-presence patch by decomposing it into commands.
func (s *Service) Update(ctx context.Context, orderID id.ID, patch Patch) (*Aggregate, error) {
	return s.Execute(ctx, orderID, patch.Commands()...)
}

// Cancel cancels the order, refunding whatever was paid.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Aggregate, error) {
	return s.Execute(ctx, orderID, CancelOrder{})
}

// AddPayment records one payment and reconciles.
func (s *Service) AddPayment(ctx context.Context, orderID id.ID, in PaymentInput) (*Aggregate, error) {
	return s.Execute(ctx, orderID, AddPayment{Payment: in})
}

// RecalculateTotals re-derives subtotal, discount and total from the stored
// items and discount, then reconciles payments. Running it twice in a row
// gives the same result.
func (s *Service) RecalculateTotals(ctx context.Context, orderID id.ID) (*Aggregate, error) {
	return s.Execute(ctx, orderID, recalculate{})
}

// Get returns the full aggregate of an order.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Aggregate, error) {
	var agg *Aggregate
	err := tx.ReadOnly(ctx, s.txManager, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		agg, err = s.loadVisible(ctx, o)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// GetByNumber returns the aggregate of the order carrying number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Aggregate, error) {
	if _, _, err := pkgnumerator.ParseOrderNumber(number); err != nil {
		return nil, apperror.NewValidation("malformed order number").
			WithDetail("field", "number").WithDetail("value", number)
	}
	var agg *Aggregate
	err := tx.ReadOnly(ctx, s.txManager, func(ctx context.Context) error {
		o, err := s.repo.GetByNumber(ctx, number)
		if err != nil {
			return err
		}
		agg, err = s.loadVisible(ctx, o)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// List returns order headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	if filter.ShopID != nil && !appctx.HasShopAccess(ctx, filter.ShopID.String()) {
		return domain.ListResult[*Order]{}, apperror.NewForbidden("no access to shop")
	}
	var res domain.ListResult[*Order]
	err := tx.ReadOnly(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		res, err = s.repo.List(ctx, filter)
		return err
	})
	return res, err
}

// History returns the audit trail of an order, oldest first.
func (s *Service) History(ctx context.Context, orderID id.ID) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := tx.ReadOnly(ctx, s.txManager, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !appctx.HasShopAccess(ctx, o.ShopID.String()) {
			return apperror.NewForbidden("no access to shop")
		}
		entries, err = s.audit.History(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) loadVisible(ctx context.Context, o *Order) (*Aggregate, error) {
	if !appctx.HasShopAccess(ctx, o.ShopID.String()) {
		return nil, apperror.NewForbidden("no access to shop")
	}
	return s.load(ctx, o)
}

// load completes an order with shop, customer, items and payments.
func (s *Service) load(ctx context.Context, o *Order) (*Aggregate, error) {
	sh, err := s.shops.Get(ctx, o.ShopID)
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}
	c, err := s.customers.Get(ctx, o.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	items, err := s.repo.GetItems(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	payments, err := s.repo.GetPayments(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}
	return &Aggregate{Order: o, Shop: sh, Customer: c, Items: items, Payments: payments}, nil
}
