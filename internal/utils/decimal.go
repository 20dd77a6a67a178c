package utils

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// FormatDecimal renders v rounded to places decimals without trailing zeros,
// as exchanges expect for price and quantity parameters.
func FormatDecimal(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}

// ParseFloat parses an exchange numeric string. Empty strings are zero.
func ParseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
