package dto

import (
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/shop"
)

// CreateShopRequest registers a shop.
type CreateShopRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// ShopResponse is a shop. The counter is shown for operators; it is never
// writable through the API.
type ShopResponse struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	IsActive          bool      `json:"isActive"`
	NextOrderSequence int64     `json:"nextOrderSequence"`
	CreatedAt         time.Time `json:"createdAt"`
}

// FromShop maps a shop.
func FromShop(s *shop.Shop) ShopResponse {
	return ShopResponse{
		ID:                s.ID.String(),
		Code:              s.Code,
		Name:              s.Name,
		IsActive:          s.IsActive,
		NextOrderSequence: s.NextOrderSequence,
		CreatedAt:         s.CreatedAt,
	}
}
