// Package money provides fixed-point currency amounts for rule thresholds.
//
// Amounts are integer cents so that threshold comparisons are exact: a purchase
// of exactly R$100.00 always crosses a >= R$100.00 threshold. Binary floating
// point is never used for currency.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// Cents is a currency amount in integer hundredths of the unit.
type Cents int64

// FromUnits builds an amount from whole units and remaining cents.
func FromUnits(units int64, cents int64) Cents {
	return Cents(units*100 + cents)
}

// ParseDecimal parses a decimal string such as "100.00", "7,50" or "42" into
// cents. Both '.' and ',' are accepted as the decimal separator since merchant
// input arrives in either convention. At most two fraction digits are allowed.
func ParseDecimal(value string) (Cents, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is empty")
	}

	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	}

	trimmed = strings.ReplaceAll(trimmed, ",", ".")
	wholePart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		wholePart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
		if strings.ContainsRune(fracPart, '.') {
			return 0, fmt.Errorf("amount %q has multiple decimal separators", value)
		}
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("amount %q has more than two fraction digits", value)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", value)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", value)
	}

	total := Cents(whole*100 + frac)
	if negative {
		total = -total
	}
	return total, nil
}

// String renders the amount as a decimal with two fraction digits.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// IsNegative reports whether the amount is below zero.
func (c Cents) IsNegative() bool {
	return c < 0
}
