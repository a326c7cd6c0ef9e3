// Package allocation computes how much of an ERP store's on-hand stock may be
// exposed at a mapped Shopify location.
package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// DefaultPercentage is what a new location mapping exposes unless told otherwise.
	DefaultPercentage = decimal.NewFromInt(100)
)

// ValidatePercentage accepts values in [0, 100] with at most two decimal places.
func ValidatePercentage(pct decimal.Decimal) error {
	if pct.IsNegative() {
		return fmt.Errorf("allocation percentage %s is negative", pct.String())
	}
	if pct.GreaterThan(hundred) {
		return fmt.Errorf("allocation percentage %s exceeds 100", pct.String())
	}
	if !pct.Equal(pct.Truncate(2)) {
		return fmt.Errorf("allocation percentage %s has more than two decimal places", pct.String())
	}
	return nil
}

// Allocate returns floor(quantity * pct / 100). Rounding always goes down so
// a location is never shown more than its share.
func Allocate(quantity int, pct decimal.Decimal) (int, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("erp quantity %d is negative", quantity)
	}
	if err := ValidatePercentage(pct); err != nil {
		return 0, err
	}
	if quantity == 0 || pct.IsZero() {
		return 0, nil
	}

	allocated := decimal.NewFromInt(int64(quantity)).Mul(pct).Div(hundred).Floor()
	return int(allocated.IntPart()), nil
}
