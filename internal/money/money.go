// Package money implements the integer currency amount used by every ledger
// in the store. Amounts are whole pesos; there is no fractional unit, so all
// arithmetic is exact int64 arithmetic.
package money

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is a signed amount in whole currency units.
type Money int64

// Zero is the additive identity.
const Zero Money = 0

var printer = message.NewPrinter(language.Spanish)

// New wraps a raw integer amount.
func New(v int64) Money { return Money(v) }

// FromDecimal converts d into Money, rejecting values with a fractional part.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("money: %s has a fractional part", d.String())
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("money: %s out of range", d.String())
	}
	return Money(d.IntPart()), nil
}

var thousandsGrouped = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

// Parse reads amounts as typed by cashiers: "12500", "12500.00", "$12.500"
// or "12.500,00".
func Parse(s string) (Money, error) {
	clean := strings.TrimSpace(s)
	clean = strings.Replace(clean, "$", "", 1)
	switch {
	case strings.Contains(clean, ","):
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	case thousandsGrouped.MatchString(clean):
		clean = strings.ReplaceAll(clean, ".", "")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d)
}

func (m Money) Int64() int64 { return int64(m) }
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(m)) }
func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money { return -m }
func (m Money) Mul(qty int) Money { return m * Money(qty) }
func (m Money) IsZero() bool { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) GreaterThan(o Money) bool { return m > o }
func (m Money) LessThan(o Money) bool { return m < o }
func (m Money) LessOrEqual(o Money) bool { return m <= o }

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// String renders the raw integer, e.g. "-2500".
func (m Money) String() string { return fmt.Sprintf("%d", int64(m)) }

// Format renders the amount for documents and tickets, e.g. "$12.500" or "-$2.000".
func (m Money) Format() string {
	if m < 0 {
		return printer.Sprintf("-$%d", int64(-m))
	}
	return printer.Sprintf("$%d", int64(m))
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}

// UnmarshalJSON accepts numbers and numeric strings. Fractional values are rejected.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
