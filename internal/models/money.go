package models

import "github.com/shopspring/decimal"

// CurrencySymbol prefixes every rendered amount.
const CurrencySymbol = "₹"

// MoneyPlaces is the number of decimal places amounts are stored with.
const MoneyPlaces = 2

// Cent is the smallest representable amount and the tolerance used by
// every sum check in the ledger.
var Cent = decimal.New(1, -MoneyPlaces)

// Hundred is 100 as a decimal, used for percentage math.
var Hundred = decimal.NewFromInt(100)

// RoundMoney rounds d to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FormatMoney renders d as "₹100.00".
func FormatMoney(d decimal.Decimal) string {
	return CurrencySymbol + d.StringFixed(MoneyPlaces)
}

// WithinCent reports whether a and b differ by at most one cent.
func WithinCent(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Cent)
}
