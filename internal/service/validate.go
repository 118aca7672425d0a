package service

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayout is the calendar date format orders are stored with
const dateLayout = "2006-01-02"

// LineItemInput is a line item as submitted by a caller. TotalPrice is
// checked for presence and sign, then discarded in favour of the catalog price.
type LineItemInput struct {
	ProductID  int64 // 0 when absent
	Qty        float64
	TotalPrice *decimal.Decimal
}

// missingFields mirrors the required-field check done before any other
// validation: every named field was absent or empty.
func missingFields(fields ...string) *Error {
	return invalidInput("Missing required fields: %s", strings.Join(fields, ", "))
}

// requireFields returns a missing-fields error for the names whose present
// flag is false, or nil when everything is there.
func requireFields(names []string, present []bool) error {
	var missing []string
	for i, name := range names {
		if !present[i] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return missingFields(missing...)
	}
	return nil
}

// normalizeDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date
func normalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(dateLayout), nil
	}
	return "", invalidInput("Invalid date %q: expected YYYY-MM-DD", s)
}

// validateLineItems checks shape only; product existence is checked later
// inside the transaction.
func validateLineItems(items []LineItemInput) error {
	if len(items) == 0 {
		return invalidInput("Order must have at least one product")
	}
	for i, item := range items {
		if item.ProductID <= 0 {
			return invalidInput("Product at index %d: missing product_id", i)
		}
		if item.Qty < 1 {
			return invalidInput("Product at index %d: quantity must be at least 1", i)
		}
		if item.Qty != math.Trunc(item.Qty) {
			return invalidInput("Product at index %d: quantity must be a whole number", i)
		}
		if item.Qty > math.MaxInt32 {
			return invalidInput("Product at index %d: quantity is too large", i)
		}
		if item.TotalPrice == nil || item.TotalPrice.IsNegative() {
			return invalidInput("Product at index %d: invalid total_price", i)
		}
	}
	return nil
}
