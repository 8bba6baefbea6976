// Package customer resolves order customers by phone number.
package customer

import (
	"context"
	"strings"
	"time"

	"github.com/ttacon/libphonenumber"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/entity"
)

// Customer is identified by phone; name and address are informational.
type Customer struct {
	entity.BaseEntity

	Phone   string  `db:"phone" json:"phone"`
	Name    string  `db:"name" json:"name"`
	Address *string `db:"address" json:"address,omitempty"`
}

// NewCustomer creates a customer for a phone seen for the first time.
func NewCustomer(phone, name string, address *string, now time.Time) *Customer {
	return &Customer{
		BaseEntity: entity.NewBaseEntity(now),
		Phone:      NormalizePhone(phone),
		Name:       strings.TrimSpace(name),
		Address:    address,
	}
}

// Validate implements entity.Validatable.
func (c *Customer) Validate(_ context.Context) error {
	if c.Phone == "" {
		return apperror.NewValidation("phone is required").
			WithDetail("field", "phone")
	}
	return nil
}

// NormalizePhone strips spaces and dashes so "017-1234 5678" and
// "01712345678" resolve to the same customer.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// ValidatePhone checks that phone is a dialable number for region
// (ISO 3166 code such as "BD"). An empty region accepts any phone.
func ValidatePhone(phone, region string) error {
	if region == "" {
		return nil
	}
	p, err := libphonenumber.Parse(phone, region)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return apperror.NewValidation("phone number is not valid").
			WithDetail("field", "customer.phone").
			WithDetail("region", region)
	}
	return nil
}
