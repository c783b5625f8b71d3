package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are stored as hundredths of the shop currency. Payment gateways
// expect the currency's own minor unit, which is not always 1/100.
var (
	zeroDecimal = map[string]bool{
		"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
		"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
		"VUV": true, "XAF": true, "XOF": true, "XPF": true,
	}
	threeDecimal = map[string]bool{
		"BHD": true, "JOD": true, "KWD": true, "OMR": true, "TND": true,
	}
)

// CurrencyDecimals returns the number of minor-unit digits of currency.
func CurrencyDecimals(currency string) int {
	c := strings.ToUpper(currency)
	switch {
	case zeroDecimal[c]:
		return 0
	case threeDecimal[c]:
		return 3
	default:
		return 2
	}
}

// GatewayAmount converts hundredths to the gateway's minor-unit integer.
// Zero-decimal currencies round half up to whole units.
func GatewayAmount(hundredths int64, currency string) int64 {
	return decimal.New(hundredths, -2).
		Shift(int32(CurrencyDecimals(currency))).
		Round(0).
		IntPart()
}

// FormatAmount renders hundredths for display, e.g. "25.00 CAD" or "2,500 JPY".
func FormatAmount(hundredths int64, currency string) string {
	c := strings.ToUpper(currency)
	places := int32(2)
	if CurrencyDecimals(c) == 0 {
		places = 0
	}

	s := decimal.New(hundredths, -2).StringFixed(places)
	sign := ""
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		sign, s = "-", rest
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	out := sign + groupThousands(whole)
	if hasFrac {
		out += "." + frac
	}
	return out + " " + c
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	pre := len(digits) % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
	}
	for i := pre; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
