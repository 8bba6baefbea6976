package order

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts only the three known states.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", apperror.NewValidation("unknown order status").
		WithDetail("field", "status").
		WithDetail("value", s)
}

func (s Status) String() string { return string(s) }

// IsCancelled reports whether the order was cancelled.
func (s Status) IsCancelled() bool { return s == StatusCancelled }

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown states.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if _, err := ParseStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(value any) error {
	raw, err := scanString(value, "Status")
	if err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PaymentMethod is how a payment was made. Refund is reserved for negative
// amounts produced by cancellation or entered by staff.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodMFS    PaymentMethod = "mfs"
	MethodBank   PaymentMethod = "bank"
	MethodRefund PaymentMethod = "refund"
)

// ParsePaymentMethod accepts only the known methods.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodCash, MethodMFS, MethodBank, MethodRefund:
		return m, nil
	}
	return "", apperror.NewValidation("unknown payment method").
		WithDetail("field", "method").
		WithDetail("value", s)
}

func (m PaymentMethod) String() string { return string(m) }

// MarshalJSON implements json.Marshaler.
func (m PaymentMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown methods.
func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("payment method must be a string: %w", err)
	}
	parsed, err := ParsePaymentMethod(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer.
func (m PaymentMethod) Value() (driver.Value, error) {
	if _, err := ParsePaymentMethod(string(m)); err != nil {
		return nil, err
	}
	return string(m), nil
}

// Scan implements sql.Scanner.
func (m *PaymentMethod) Scan(value any) error {
	raw, err := scanString(value, "PaymentMethod")
	if err != nil {
		return err
	}
	parsed, err := ParsePaymentMethod(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func scanString(value any, typeName string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", fmt.Errorf("cannot scan %T into %s", value, typeName)
}
