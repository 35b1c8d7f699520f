package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencyDecimals = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "IDR": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "MGA": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0,
	"XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "JOD": 3, "KWD": 3, "OMR": 3, "TND": 3,
}

// Exponent returns the minor unit exponent of an ISO 4217 currency.
func Exponent(currency string) int32 {
	if exp, ok := currencyDecimals[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// ToMinor converts a major unit amount to the processor's integer minor units,
// rounding half away from zero.
func ToMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(Exponent(currency)).Round(0).IntPart()
}

func FromMinor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

// Normalize upper-cases and trims a currency code.
func Normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
