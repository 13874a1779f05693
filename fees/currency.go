package fees

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies whose provider amounts carry no minor unit.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// Exponent returns the number of minor-unit digits for a currency.
func Exponent(currency string) int32 {
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// FromMinor converts a provider amount (e.g. cents) to major units.
func FromMinor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

// ToMinor converts a major-unit amount to provider minor units, rounding half-up.
func ToMinor(amount decimal.Decimal, currency string) int64 {
	exp := Exponent(currency)
	return amount.Round(exp).Shift(exp).IntPart()
}
