package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/http/v1/dto"
)

// ShopService is implemented by shop.Service.
type ShopService interface {
	Get(ctx context.Context, shopID id.ID) (*shop.Shop, error)
	List(ctx context.Context, activeOnly bool) ([]*shop.Shop, error)
	Register(ctx context.Context, code, name string) (*shop.Shop, error)
}

var _ ShopService = (*shop.Service)(nil)

// ShopHandler handles HTTP requests for shops.
type ShopHandler struct {
	*BaseHandler
	service ShopService
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(base *BaseHandler, service ShopService) *ShopHandler {
	return &ShopHandler{BaseHandler: base, service: service}
}

// List returns shops ordered by code. ?all=true includes inactive ones.
// GET /shops
func (h *ShopHandler) List(c *gin.Context) {
	shops, err := h.service.List(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]dto.ShopResponse, len(shops))
	for i, s := range shops {
		items[i] = dto.FromShop(s)
	}
	h.OK(c, gin.H{"items": items})
}

// Get returns one shop.
// GET /shops/:id
func (h *ShopHandler) Get(c *gin.Context) {
	shopID, ok := h.PathID(c)
	if !ok {
		return
	}
	s, err := h.service.Get(c.Request.Context(), shopID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromShop(s))
}

// Create registers a shop.
// POST /shops
func (h *ShopHandler) Create(c *gin.Context) {
	var req dto.CreateShopRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.service.Register(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromShop(s))
}
