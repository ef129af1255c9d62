package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ISO 4217 currencies whose minor unit is not the usual two decimals.
var currencyExponents = map[string]int32{
	"CVE": 0,
	"DJF": 0,
	"GNF": 0,
	"IDR": 0,
	"JPY": 0,
	"KMF": 0,
	"KRW": 0,
	"PYG": 0,
	"RWF": 0,
	"UGX": 0,
	"VND": 0,
	"VUV": 0,
	"XAF": 0,
	"XOF": 0,
	"XPF": 0,
	"BHD": 3,
	"IQD": 3,
	"JOD": 3,
	"KWD": 3,
	"LYD": 3,
	"OMR": 3,
	"TND": 3,
}

// Exponent returns the number of minor-unit decimals for the currency code.
func Exponent(code string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return exp
	}
	return 2
}

// MinorUnits converts a major-unit amount into the currency's minor units,
// rounding half away from zero. 10.00 EUR becomes 1000, 10 JPY stays 10.
func MinorUnits(amount decimal.Decimal, code string) int64 {
	return amount.Shift(Exponent(code)).Round(0).IntPart()
}
