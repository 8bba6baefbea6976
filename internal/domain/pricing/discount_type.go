package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
)

// DiscountType selects how the raw discount value is interpreted.
type DiscountType string

const (
	// DiscountFixed subtracts the raw value as an absolute amount.
	DiscountFixed DiscountType = "fixed"
	// DiscountPercentage subtracts raw percent of the items subtotal.
	DiscountPercentage DiscountType = "percentage"
)

// ParseDiscountType accepts the two known names; an empty string means fixed.
func ParseDiscountType(s string) (DiscountType, error) {
	switch DiscountType(s) {
	case "", DiscountFixed:
		return DiscountFixed, nil
	case DiscountPercentage:
		return DiscountPercentage, nil
	}
	return "", apperror.NewValidation("unknown discount type").
		WithDetail("field", "discountType").
		WithDetail("value", s)
}

// String implements fmt.Stringer.
func (t DiscountType) String() string {
	if t == "" {
		return string(DiscountFixed)
	}
	return string(t)
}

// MarshalJSON implements json.Marshaler.
func (t DiscountType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown names.
func (t *DiscountType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("discount type must be a string: %w", err)
	}
	parsed, err := ParseDiscountType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t DiscountType) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *DiscountType) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case nil:
		s = ""
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into DiscountType", value)
	}
	parsed, err := ParseDiscountType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
