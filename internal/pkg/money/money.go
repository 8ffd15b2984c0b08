package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits stored for every amount (NUMERIC(20,2)).
const Scale = 2

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("unsupported currency")
)

// Currency is a closed set of ISO codes accepted by the ledger.
type Currency string

const (
	KZT Currency = "KZT"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

func (c Currency) Valid() bool {
	switch c {
	case KZT, USD, EUR:
		return true
	}
	return false
}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(raw string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, raw)
	}
	return c, nil
}

// ParseAmount parses a positive decimal amount with at most two fractional
// digits. Exponent notation is rejected so amounts always arrive as plain
// decimal strings.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount checks that an already-typed amount is positive and fits the
// ledger scale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(Scale)) {
		return fmt.Errorf("%w: at most %d fractional digits", ErrInvalidAmount, Scale)
	}
	return nil
}

// Format renders an amount with the fixed ledger scale.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(Scale)
}
