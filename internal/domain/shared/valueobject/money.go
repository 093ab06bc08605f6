package valueobject

import (
	"fmt"
	"strings"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/message"
)

// Currency is an ISO 4217 currency code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CNY Currency = "CNY"
	CAD Currency = "CAD"
)

// DefaultCurrency is the currency assumed when none is supplied
const DefaultCurrency = USD

// ParseCurrency validates an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	if code == "" {
		return DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown currency %q", code))
	}
	return Currency(unit.String()), nil
}

// Money is an amount in integer minor units (cents). int64 holds ±92 quadrillion
// cents, far beyond any purchase order or shipment total.
// Money is a plain value: the currency lives on the owning document.
type Money int64

// Zero is the zero amount
const Zero Money = 0

// Cents builds Money from a count of minor units
func Cents(c int64) Money {
	return Money(c)
}

// Dollars builds Money from whole major units, convenient in tests and fixtures
func Dollars(d int64) Money {
	return Money(d * 100)
}

// ParseMoney parses a decimal string such as "12.34" into Money.
// More than two fractional digits is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid amount %q", s))
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts an exact decimal to Money. It fails if the value
// carries sub-cent precision.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("amount %s has sub-cent precision", d.String()))
	}
	return Money(scaled.IntPart()), nil
}

// RoundToMoney rounds an exact decimal amount to cents, half away from zero.
// Used only where a sub-cent amount must become a ledger amount (PO subtotal).
func RoundToMoney(d decimal.Decimal) Money {
	return Money(d.Round(2).Shift(2).IntPart())
}

// Cents returns the amount in minor units
func (m Money) Cents() int64 {
	return int64(m)
}

// Decimal returns the amount in major units as an exact decimal
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) Add(other Money) Money {
	return m + other
}

func (m Money) Subtract(other Money) Money {
	return m - other
}

// MultiplyByQuantity returns m * qty exactly
func (m Money) MultiplyByQuantity(qty int64) Money {
	return Money(int64(m) * qty)
}

// DivideByQuantity splits m into a per-unit amount (truncated toward zero) and
// the remainder that could not be spread evenly. per*qty + remainder == m.
// A non-positive qty yields a zero per-unit amount and the whole of m as remainder.
func (m Money) DivideByQuantity(qty int64) (per Money, remainder Money) {
	if qty <= 0 {
		return 0, m
	}
	return Money(int64(m) / qty), Money(int64(m) % qty)
}

func (m Money) Negate() Money {
	return -m
}

func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

func (m Money) IsZero() bool {
	return m == 0
}

func (m Money) IsNegative() bool {
	return m < 0
}

func (m Money) IsPositive() bool {
	return m > 0
}

// String renders the amount with exactly two decimals, e.g. "-12.05"
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount for display with locale digit grouping,
// e.g. "USD 1,234.50" for English.
func (m Money) Format(p *message.Printer, cur Currency) string {
	if cur == "" {
		cur = DefaultCurrency
	}
	sign := ""
	abs := int64(m)
	if abs < 0 {
		sign = "-"
		abs = -abs
	}
	return p.Sprintf("%s %s%d.%02d", string(cur), sign, abs/100, abs%100)
}

// Sum adds up amounts
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}
