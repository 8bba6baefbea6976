package dto

import (
	"strings"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/types"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/order"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/pricing"
)

// --- Requests ---

// CustomerRequest identifies the ordering customer by phone.
type CustomerRequest struct {
	Phone   string  `json:"phone" binding:"required"`
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

// ItemRequest is one order line.
type ItemRequest struct {
	ProductTypeID string      `json:"productTypeId" binding:"required"`
	ProductSizeID *string     `json:"productSizeId"`
	Quantity      int64       `json:"quantity"`
	Price         types.Money `json:"price"`
	Notes         *string     `json:"notes"`
}

// DiscountRequest is a raw discount; type defaults to fixed.
type DiscountRequest struct {
	Type  string      `json:"type"`
	Value types.Money `json:"value"`
}

// PaymentRequest is a payment as entered by staff.
type PaymentRequest struct {
	Method        string      `json:"method" binding:"required"`
	Amount        types.Money `json:"amount"`
	TransactionID *string     `json:"transactionId"`
	BankName      *string     `json:"bankName"`
	AccountNumber *string     `json:"accountNumber"`
	MFSProvider   *string     `json:"mfsProvider"`
	MFSNumber     *string     `json:"mfsNumber"`
	PaidAt        *time.Time  `json:"paidAt"`
}

// CreateOrderRequest places a new order.
type CreateOrderRequest struct {
	ShopID          string           `json:"shopId" binding:"required"`
	Customer        CustomerRequest  `json:"customer"`
	Items           []ItemRequest    `json:"items"`
	Discount        *DiscountRequest `json:"discount"`
	DeliveryDate    *Date            `json:"deliveryDate"`
	DeliveryAddress *string          `json:"deliveryAddress"`
	Notes           *string          `json:"notes"`
	Payment         *PaymentRequest  `json:"payment"`
}

// UpdateOrderRequest is a field-presence patch: absent fields are untouched.
type UpdateOrderRequest struct {
	Status          *string          `json:"status"`
	Customer        *CustomerRequest `json:"customer"`
	Items           *[]ItemRequest   `json:"items"`
	Discount        *DiscountRequest `json:"discount"`
	DeliveryDate    *Date            `json:"deliveryDate"`
	DeliveryAddress *string          `json:"deliveryAddress"`
	Notes           *string          `json:"notes"`
}

// CommandRequest is one typed command. Only the fields of Type are read.
type CommandRequest struct {
	Type string `json:"type" binding:"required"`

	// rebind_customer
	Phone   *string `json:"phone"`
	Name    *string `json:"name"`
	Address *string `json:"address"`

	// replace_items, update_details
	Items    []ItemRequest    `json:"items"`
	Discount *DiscountRequest `json:"discount"`

	// update_details
	Status          *string `json:"status"`
	DeliveryDate    *Date   `json:"deliveryDate"`
	DeliveryAddress *string `json:"deliveryAddress"`
	Notes           *string `json:"notes"`

	// add_payment
	Payment *PaymentRequest `json:"payment"`
}

// ExecuteCommandsRequest applies commands in order, atomically.
type ExecuteCommandsRequest struct {
	Commands []CommandRequest `json:"commands"`
}

// ListOrdersQuery filters order listings.
type ListOrdersQuery struct {
	ListQuery
	ShopID     string `form:"shopId"`
	CustomerID string `form:"customerId"`
	Status     string `form:"status"`
	DateFrom   string `form:"dateFrom"`
	DateTo     string `form:"dateTo"`
}

// --- Conversions ---

// ToDomain converts the item.
func (r ItemRequest) ToDomain() (order.ItemInput, error) {
	pt, err := id.ParseField("items.productTypeId", r.ProductTypeID)
	if err != nil {
		return order.ItemInput{}, err
	}
	in := order.ItemInput{
		ProductTypeID: pt,
		Quantity:      r.Quantity,
		Price:         r.Price,
		Notes:         r.Notes,
	}
	if r.ProductSizeID != nil && *r.ProductSizeID != "" {
		ps, err := id.ParseField("items.productSizeId", *r.ProductSizeID)
		if err != nil {
			return order.ItemInput{}, err
		}
		in.ProductSizeID = &ps
	}
	return in, nil
}

func itemsToDomain(reqs []ItemRequest) ([]order.ItemInput, error) {
	items := make([]order.ItemInput, 0, len(reqs))
	for _, r := range reqs {
		in, err := r.ToDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, nil
}

// ToDomain converts the discount.
func (r DiscountRequest) ToDomain() (pricing.DiscountSpec, error) {
	t, err := pricing.ParseDiscountType(r.Type)
	if err != nil {
		return pricing.DiscountSpec{}, err
	}
	return pricing.DiscountSpec{Type: t, Value: r.Value}, nil
}

func discountPtr(r *DiscountRequest) (*pricing.DiscountSpec, error) {
	if r == nil {
		return nil, nil
	}
	spec, err := r.ToDomain()
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// ToDomain converts the payment.
func (r PaymentRequest) ToDomain() (order.PaymentInput, error) {
	m, err := order.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(r.Method)))
	if err != nil {
		return order.PaymentInput{}, err
	}
	return order.PaymentInput{
		Method:        m,
		Amount:        r.Amount,
		TransactionID: r.TransactionID,
		BankName:      r.BankName,
		AccountNumber: r.AccountNumber,
		MFSProvider:   r.MFSProvider,
		MFSNumber:     r.MFSNumber,
		PaidAt:        r.PaidAt,
	}, nil
}

func statusPtr(s *string) (*order.Status, error) {
	if s == nil {
		return nil, nil
	}
	st, err := order.ParseStatus(strings.ToLower(strings.TrimSpace(*s)))
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ToDomain converts the request.
func (r CreateOrderRequest) ToDomain() (order.CreateRequest, error) {
	shopID, err := id.ParseField("shopId", r.ShopID)
	if err != nil {
		return order.CreateRequest{}, err
	}
	items, err := itemsToDomain(r.Items)
	if err != nil {
		return order.CreateRequest{}, err
	}

	req := order.CreateRequest{
		ShopID: shopID,
		Customer: order.CustomerInput{
			Phone:   r.Customer.Phone,
			Name:    r.Customer.Name,
			Address: r.Customer.Address,
		},
		Items:           items,
		Discount:        pricing.NoDiscount(),
		DeliveryDate:    timePtr(r.DeliveryDate),
		DeliveryAddress: r.DeliveryAddress,
		Notes:           r.Notes,
	}
	if r.Discount != nil {
		if req.Discount, err = r.Discount.ToDomain(); err != nil {
			return order.CreateRequest{}, err
		}
	}
	if r.Payment != nil {
		p, err := r.Payment.ToDomain()
		if err != nil {
			return order.CreateRequest{}, err
		}
		req.InitialPayment = &p
	}
	return req, nil
}

// ToDomain converts the request into an order.Patch.
func (r UpdateOrderRequest) ToDomain() (order.Patch, error) {
	var (
		p   order.Patch
		err error
	)
	if p.Status, err = statusPtr(r.Status); err != nil {
		return order.Patch{}, err
	}
	if r.Customer != nil {
		p.Customer = &order.CustomerPatch{
			Phone:   r.Customer.Phone,
			Name:    r.Customer.Name,
			Address: r.Customer.Address,
		}
	}
	if r.Items != nil {
		items, err := itemsToDomain(*r.Items)
		if err != nil {
			return order.Patch{}, err
		}
		p.Items = &items
	}
	if p.Discount, err = discountPtr(r.Discount); err != nil {
		return order.Patch{}, err
	}
	p.DeliveryDate = timePtr(r.DeliveryDate)
	p.DeliveryAddress = r.DeliveryAddress
	p.Notes = r.Notes
	return p, nil
}

// ToDomain converts one command.
func (r CommandRequest) ToDomain() (order.Command, error) {
	switch r.Type {
	case order.CancelOrder{}.Name():
		return order.CancelOrder{}, nil

	case order.RebindCustomer{}.Name():
		if r.Phone == nil || strings.TrimSpace(*r.Phone) == "" {
			return nil, apperror.NewValidation("phone is required").WithDetail("field", "phone")
		}
		return order.RebindCustomer{Phone: *r.Phone, CustomerName: r.Name, Address: r.Address}, nil

	case order.ReplaceItems{}.Name():
		items, err := itemsToDomain(r.Items)
		if err != nil {
			return nil, err
		}
		discount, err := discountPtr(r.Discount)
		if err != nil {
			return nil, err
		}
		return order.ReplaceItems{Items: items, Discount: discount}, nil

	case order.UpdateDetails{}.Name():
		status, err := statusPtr(r.Status)
		if err != nil {
			return nil, err
		}
		discount, err := discountPtr(r.Discount)
		if err != nil {
			return nil, err
		}
		return order.UpdateDetails{
			DeliveryDate:    timePtr(r.DeliveryDate),
			DeliveryAddress: r.DeliveryAddress,
			Notes:           r.Notes,
			Status:          status,
			Discount:        discount,
		}, nil

	case order.AddPayment{}.Name():
		if r.Payment == nil {
			return nil, apperror.NewValidation("payment is required").WithDetail("field", "payment")
		}
		p, err := r.Payment.ToDomain()
		if err != nil {
			return nil, err
		}
		return order.AddPayment{Payment: p}, nil
	}

	return nil, apperror.NewBusinessRule(apperror.CodeInvalidCommand, "unknown command").
		WithDetail("type", r.Type)
}

// ToDomain converts every command, reporting the index of the first bad one.
func (r ExecuteCommandsRequest) ToDomain() ([]order.Command, error) {
	cmds := make([]order.Command, 0, len(r.Commands))
	for i, c := range r.Commands {
		cmd, err := c.ToDomain()
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("command", i)
			}
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// ToFilter converts the query.
func (q ListOrdersQuery) ToFilter() (order.ListFilter, error) {
	base, err := q.ListQuery.ToFilter()
	if err != nil {
		return order.ListFilter{}, err
	}
	f := order.ListFilter{ListFilter: base}

	if q.ShopID != "" {
		v, err := id.ParseField("shopId", q.ShopID)
		if err != nil {
			return order.ListFilter{}, err
		}
		f.ShopID = &v
	}
	if q.CustomerID != "" {
		v, err := id.ParseField("customerId", q.CustomerID)
		if err != nil {
			return order.ListFilter{}, err
		}
		f.CustomerID = &v
	}
	if q.Status != "" {
		st, err := order.ParseStatus(q.Status)
		if err != nil {
			return order.ListFilter{}, err
		}
		f.Status = &st
	}
	if q.DateFrom != "" {
		t, err := ParseDate(q.DateFrom)
		if err != nil {
			return order.ListFilter{}, err
		}
		f.DateFrom = &t
	}
	if q.DateTo != "" {
		t, err := ParseDate(q.DateTo)
		if err != nil {
			return order.ListFilter{}, err
		}
		f.DateTo = &t
	}
	return f, nil
}

// --- Responses ---

// ItemResponse is one order line.
type ItemResponse struct {
	ID            string      `json:"id"`
	LineNo        int         `json:"lineNo"`
	ProductTypeID string      `json:"productTypeId"`
	ProductSizeID *string     `json:"productSizeId,omitempty"`
	Quantity      int64       `json:"quantity"`
	Price         types.Money `json:"price"`
	LineTotal     types.Money `json:"lineTotal"`
	Notes         *string     `json:"notes,omitempty"`
}

// PaymentResponse is one ledger row.
type PaymentResponse struct {
	ID            string      `json:"id"`
	Method        string      `json:"method"`
	Amount        types.Money `json:"amount"`
	TransactionID *string     `json:"transactionId,omitempty"`
	BankName      *string     `json:"bankName,omitempty"`
	AccountNumber *string     `json:"accountNumber,omitempty"`
	MFSProvider   *string     `json:"mfsProvider,omitempty"`
	MFSNumber     *string     `json:"mfsNumber,omitempty"`
	PaidAt        time.Time   `json:"paidAt"`
	CreatedBy     string      `json:"createdBy,omitempty"`
}

// CustomerResponse is the ordering customer.
type CustomerResponse struct {
	ID      string  `json:"id"`
	Phone   string  `json:"phone"`
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
}

// OrderSummaryResponse is an order header as listed.
type OrderSummaryResponse struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	ShopID          string      `json:"shopId"`
	CustomerID      string      `json:"customerId"`
	Status          string      `json:"status"`
	DeliveryDate    *Date       `json:"deliveryDate,omitempty"`
	DeliveryAddress *string     `json:"deliveryAddress,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
	ItemsSubtotal   types.Money `json:"itemsSubtotal"`
	DiscountType    string      `json:"discountType"`
	DiscountValue   types.Money `json:"discountValue"`
	DiscountAmount  types.Money `json:"discountAmount"`
	TotalAmount     types.Money `json:"totalAmount"`
	AdvancePaid     types.Money `json:"advancePaid"`
	DueAmount       types.Money `json:"dueAmount"`
	CreatedBy       string      `json:"createdBy,omitempty"`
	UpdatedBy       string      `json:"updatedBy,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// OrderResponse is the full aggregate.
type OrderResponse struct {
	OrderSummaryResponse
	Shop     ShopResponse      `json:"shop"`
	Customer CustomerResponse  `json:"customer"`
	Items    []ItemResponse    `json:"items"`
	Payments []PaymentResponse `json:"payments"`
}

// FromOrder maps an order header.
func FromOrder(o *order.Order) OrderSummaryResponse {
	return OrderSummaryResponse{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		ShopID:          o.ShopID.String(),
		CustomerID:      o.CustomerID.String(),
		Status:          o.Status.String(),
		DeliveryDate:    datePtr(o.DeliveryDate),
		DeliveryAddress: o.DeliveryAddress,
		Notes:           o.Notes,
		ItemsSubtotal:   o.ItemsSubtotal,
		DiscountType:    o.DiscountType.String(),
		DiscountValue:   o.DiscountValue,
		DiscountAmount:  o.DiscountAmount,
		TotalAmount:     o.TotalAmount,
		AdvancePaid:     o.AdvancePaid,
		DueAmount:       o.DueAmount,
		CreatedBy:       o.CreatedBy,
		UpdatedBy:       o.UpdatedBy,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// FromAggregate maps a loaded order.
func FromAggregate(a *order.Aggregate) OrderResponse {
	resp := OrderResponse{
		OrderSummaryResponse: FromOrder(a.Order),
		Items:                make([]ItemResponse, len(a.Items)),
		Payments:             make([]PaymentResponse, len(a.Payments)),
	}
	if a.Shop != nil {
		resp.Shop = FromShop(a.Shop)
	}
	if a.Customer != nil {
		resp.Customer = CustomerResponse{
			ID:      a.Customer.ID.String(),
			Phone:   a.Customer.Phone,
			Name:    a.Customer.Name,
			Address: a.Customer.Address,
		}
	}
	for i, it := range a.Items {
		item := ItemResponse{
			ID:            it.ID.String(),
			LineNo:        it.LineNo,
			ProductTypeID: it.ProductTypeID.String(),
			Quantity:      it.Quantity,
			Price:         it.Price,
			LineTotal:     it.LineTotal,
			Notes:         it.Notes,
		}
		if it.ProductSizeID != nil {
			s := it.ProductSizeID.String()
			item.ProductSizeID = &s
		}
		resp.Items[i] = item
	}
	for i, p := range a.Payments {
		resp.Payments[i] = PaymentResponse{
			ID:            p.ID.String(),
			Method:        p.Method.String(),
			Amount:        p.Amount,
			TransactionID: p.TransactionID,
			BankName:      p.BankName,
			AccountNumber: p.AccountNumber,
			MFSProvider:   p.MFSProvider,
			MFSNumber:     p.MFSNumber,
			PaidAt:        p.PaidAt,
			CreatedBy:     p.CreatedBy,
		}
	}
	return resp
}

// AuditEntryResponse is one history row.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	Changes   map[string]any `json:"changes"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FromAuditEntries maps an order history.
func FromAuditEntries(entries []order.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:        e.ID.String(),
			Action:    e.Action,
			UserID:    e.UserID,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
