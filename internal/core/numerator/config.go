// Package numerator provides domain contracts for shop-scoped order numbering.
package numerator

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "ORD")
	Prefix string

	// PadWidth is the minimum sequence width
	PadWidth int
}

// OrderNumberConfig returns the order number layout: ORD-{shopCode}-{000001}.
// The layout is an external contract; printed receipts and staff searches depend on it.
func OrderNumberConfig() Config {
	return Config{
		Prefix:   "ORD",
		PadWidth: 6,
	}
}
