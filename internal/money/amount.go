// Package money provides an exact, two-fractional-digit decimal amount type
// for auction prices. Binary floats are never used for comparisons or
// arithmetic on bid amounts — every value round-trips through
// shopspring/decimal, which backs its arithmetic with arbitrary-precision
// integers rather than IEEE-754 floats.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is an exact monetary value, always rounded to 2 decimal places.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{d: decimal.Zero}

// NewFromCents builds an Amount from an integer number of minor units
// (cents). This is the preferred constructor for code that already has an
// integer-cents value (e.g. a wire payload transmitted as cents).
func NewFromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -2)}
}

// ParseAmount parses a decimal string such as "100.00" or "99.5" into an
// Amount, rejecting anything that isn't finite and non-negative-capable.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return Amount{d: d.Round(2)}, nil
}

// MustParseAmount parses s and panics on error. Intended for constants and
// test fixtures, never for request-path input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Add returns a + b, exact to 2 decimal places.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d).Round(2)} }

// Sub returns a - b, exact to 2 decimal places.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d).Round(2)} }

// Cmp returns -1, 0, or 1 if a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// GreaterThanOrEqual reports whether a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }

// String formats the amount with exactly 2 fractional digits.
func (a Amount) String() string { return a.d.StringFixed(2) }

// Cents returns the amount as an integer number of minor units.
func (a Amount) Cents() int64 {
	return a.d.Mul(decimal.New(100, 0)).Round(0).IntPart()
}

// MarshalJSON renders the amount as a JSON string ("100.00"), never as a
// bare JSON number, so no JSON decoder can round-trip it through float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses a JSON string amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer so Amount can be written to a
// shopspring/decimal-compatible Postgres numeric column.
func (a Amount) Value() (driver.Value, error) { return a.d.Value() }

// Scan implements sql.Scanner so Amount can be read back from a Postgres
// numeric column.
func (a *Amount) Scan(src interface{}) error {
	return a.d.Scan(src)
}
