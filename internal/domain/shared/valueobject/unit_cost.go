package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UnitCostPrecision is the number of fractional major-unit digits a unit cost
// may carry (four sub-cent digits, e.g. 0.052500).
const UnitCostPrecision = 6

// UnitCost is a per-piece price that may carry sub-cent precision. Extended
// totals are exact; rounding to cents happens only at document totals.
type UnitCost struct {
	value decimal.Decimal
}

// NewUnitCost validates a unit cost (non-negative, at most UnitCostPrecision decimals)
func NewUnitCost(d decimal.Decimal) (UnitCost, error) {
	if d.IsNegative() {
		return UnitCost{}, shared.NewDomainError(shared.CodeInvalidInput, "unit cost cannot be negative")
	}
	if !d.Equal(d.Truncate(UnitCostPrecision)) {
		return UnitCost{}, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("unit cost %s exceeds %d decimal places", d.String(), UnitCostPrecision))
	}
	return UnitCost{value: d}, nil
}

// ParseUnitCost parses a decimal string such as "0.0525"
func ParseUnitCost(s string) (UnitCost, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return UnitCost{}, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid unit cost %q", s))
	}
	return NewUnitCost(d)
}

// MustParseUnitCost is ParseUnitCost for constants and tests
func MustParseUnitCost(s string) UnitCost {
	u, err := ParseUnitCost(s)
	if err != nil {
		panic(err)
	}
	return u
}

// UnitCostFromMoney lifts a whole-cent amount into a unit cost
func UnitCostFromMoney(m Money) UnitCost {
	return UnitCost{value: m.Decimal()}
}

// Decimal returns the exact value in major units
func (u UnitCost) Decimal() decimal.Decimal {
	return u.value
}

// ExtendedTotal returns u * qty with no rounding
func (u UnitCost) ExtendedTotal(qty int64) decimal.Decimal {
	return u.value.Mul(decimal.NewFromInt(qty))
}

// Plus adds a whole-cent amount, keeping sub-cent precision
func (u UnitCost) Plus(m Money) UnitCost {
	return UnitCost{value: u.value.Add(m.Decimal())}
}

func (u UnitCost) IsZero() bool {
	return u.value.IsZero()
}

func (u UnitCost) Equal(other UnitCost) bool {
	return u.value.Equal(other.value)
}

// String renders at least two decimals and up to UnitCostPrecision, e.g. "0.0525"
func (u UnitCost) String() string {
	if u.value.Equal(u.value.Truncate(2)) {
		return u.value.StringFixed(2)
	}
	return u.value.String()
}

// MarshalJSON encodes as a decimal string to avoid float round-trips
func (u UnitCost) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number
func (u *UnitCost) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := ParseUnitCost(raw)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Value implements driver.Valuer, storing as NUMERIC text
func (u UnitCost) Value() (driver.Value, error) {
	return u.value.String(), nil
}

// Scan implements sql.Scanner
func (u *UnitCost) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("scan unit cost: %w", err)
	}
	u.value = d
	return nil
}
