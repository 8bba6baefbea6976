package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/order"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/http/v1/dto"
)

// OrderService is implemented by order.Service.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Aggregate, error)
	Get(ctx context.Context, orderID id.ID) (*order.Aggregate, error)
	GetByNumber(ctx context.Context, number string) (*order.Aggregate, error)
	List(ctx context.Context, filter order.ListFilter) (domain.ListResult[*order.Order], error)
	Update(ctx context.Context, orderID id.ID, patch order.Patch) (*order.Aggregate, error)
	Execute(ctx context.Context, orderID id.ID, cmds ...order.Command) (*order.Aggregate, error)
	Cancel(ctx context.Context, orderID id.ID) (*order.Aggregate, error)
	AddPayment(ctx context.Context, orderID id.ID, in order.PaymentInput) (*order.Aggregate, error)
	RecalculateTotals(ctx context.Context, orderID id.ID) (*order.Aggregate, error)
	History(ctx context.Context, orderID id.ID) ([]order.AuditEntry, error)
}

var _ OrderService = (*order.Service)(nil)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	*BaseHandler
	service OrderService
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(base *BaseHandler, service OrderService) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service}
}

// Create places an order.
// POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	agg, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAggregate(agg))
}

// List returns order headers.
// GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	var q dto.ListOrdersQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromOrder))
}

// Get returns one order with items and payments.
// GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}
	agg, err := h.service.Get(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAggregate(agg))
}

// GetByNumber looks an order up by its number.
// GET /orders/by-number/:number
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	agg, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAggregate(agg))
}

// Update applies a partial update.
// PATCH /orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.UpdateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	patch, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	agg, err := h.service.Update(c.Request.Context(), orderID, patch)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAggregate(agg))
}

// Execute applies a list of typed commands in one transaction.
// POST /orders/:id/commands
func (h *OrderHandler) Execute(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.ExecuteCommandsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmds, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	agg, err := h.service.Execute(c.Request.Context(), orderID, cmds...)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAggregate(agg))
}

// Cancel cancels an order and refunds what was paid.
// POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.run(c, h.service.Cancel)
}

// Recalculate re-derives totals and balance.
// POST /orders/:id/recalculate
func (h *OrderHandler) Recalculate(c *gin.Context) {
	h.run(c, h.service.RecalculateTotals)
}

// AddPayment records a payment.
// POST /orders/:id/payments
func (h *OrderHandler) AddPayment(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	agg, err := h.service.AddPayment(c.Request.Context(), orderID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAggregate(agg))
}

// History returns the audit trail.
// GET /orders/:id/history
func (h *OrderHandler) History(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromAuditEntries(entries)})
}

func (h *OrderHandler) run(c *gin.Context, op func(context.Context, id.ID) (*order.Aggregate, error)) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}
	agg, err := op(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAggregate(agg))
}
