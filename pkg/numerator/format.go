// Package numerator formats and parses shop-scoped order numbers.
package numerator

import (
	"fmt"
	"strconv"
	"strings"

	corenumerator "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/numerator"
)

// Format creates the final number string: PREFIX-SCOPE-000042.
// Sequences wider than PadWidth are printed in full, never truncated.
func Format(cfg corenumerator.Config, scope string, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 6
	}
	return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, scope, padWidth, num)
}

// FormatOrderNumber formats with the order number layout.
func FormatOrderNumber(shopCode string, seq int64) string {
	return Format(corenumerator.OrderNumberConfig(), shopCode, seq)
}

// Parse extracts the scope (shop code) and sequence from a formatted number.
// Shop codes may themselves contain dashes; the sequence is always the last segment.
func Parse(cfg corenumerator.Config, formatted string) (string, int64, error) {
	rest, ok := strings.CutPrefix(formatted, cfg.Prefix+"-")
	if !ok {
		return "", 0, fmt.Errorf("number %q: missing prefix %q", formatted, cfg.Prefix)
	}

	sep := strings.LastIndex(rest, "-")
	if sep <= 0 || sep == len(rest)-1 {
		return "", 0, fmt.Errorf("number %q: missing scope or sequence", formatted)
	}

	seq, err := strconv.ParseInt(rest[sep+1:], 10, 64)
	if err != nil || seq < 0 {
		return "", 0, fmt.Errorf("number %q: bad sequence", formatted)
	}

	return rest[:sep], seq, nil
}

// ParseOrderNumber parses with the order number layout.
func ParseOrderNumber(formatted string) (string, int64, error) {
	return Parse(corenumerator.OrderNumberConfig(), formatted)
}
