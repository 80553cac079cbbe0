package model

import (
	"math"
	"strconv"
	"strings"
)

// ParseCents converts decimal string amounts (dollars) to cents.
// Used for page markup that carries major units (e.g., "20.00" = 2000).
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// ParseMinorUnits converts string amounts already in minor units to int64.
// Theme data attributes carry threshold values this way (e.g., "2000" = $20.00).
// Examples: "8900" → 8900, "2000.0" → 2000, "" → 0
func ParseMinorUnits(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// FormatCents renders minor units with a currency symbol and two decimals.
// Examples: ("$", 500) → "$5.00", ("€", 1999) → "€19.99", ("$", -250) → "-$2.50"
func FormatCents(symbol string, cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := cents % 100
	pad := ""
	if frac < 10 {
		pad = "0"
	}
	return sign + symbol + strconv.FormatInt(cents/100, 10) + "." + pad + strconv.FormatInt(frac, 10)
}
