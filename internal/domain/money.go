package domain

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Regex pattern for validating decimal amounts with up to 2 decimal places
var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ParseAmount parses a decimal amount string. The amount must be positive
// with at most 2 decimal places.
func ParseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if !amountPattern.MatchString(value) {
		return decimal.Zero, fmt.Errorf("%w: must be a positive decimal with up to 2 decimal places", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ValidateAmount checks that an amount is positive with at most 2 decimal
// places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("%w: at most 2 decimal places", ErrInvalidAmount)
	}
	return nil
}

// FormatAmount renders an amount with exactly 2 decimal places, the
// precision balances are stored and displayed at.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
