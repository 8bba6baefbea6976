// Package shop provides the shop directory.
package shop

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/entity"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

// Shop is a branch of the chain. NextOrderSequence is owned by the order
// numerator and is never written by this package after registration.
type Shop struct {
	entity.BaseEntity

	Code              string `db:"code" json:"code"`
	Name              string `db:"name" json:"name"`
	NextOrderSequence int64  `db:"next_order_sequence" json:"nextOrderSequence"`
	IsActive          bool   `db:"is_active" json:"isActive"`
}

// NewShop creates an active shop whose first order gets sequence 1.
func NewShop(code, name string, now time.Time) *Shop {
	return &Shop{
		BaseEntity:        entity.NewBaseEntity(now),
		Code:              strings.ToUpper(strings.TrimSpace(code)),
		Name:              strings.TrimSpace(name),
		NextOrderSequence: 1,
		IsActive:          true,
	}
}

// Validate implements entity.Validatable.
func (s *Shop) Validate(_ context.Context) error {
	if !codePattern.MatchString(s.Code) {
		return apperror.NewValidation("shop code must be upper-case letters and digits").
			WithDetail("field", "code").
			WithDetail("value", s.Code)
	}
	if s.Name == "" {
		return apperror.NewValidation("shop name is required").
			WithDetail("field", "name")
	}
	if s.NextOrderSequence < 1 {
		return apperror.NewValidation("next order sequence must be at least 1").
			WithDetail("field", "nextOrderSequence")
	}
	return nil
}
