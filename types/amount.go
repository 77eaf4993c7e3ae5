// Package types provides common types used across Presale.
package types

import (
	"fmt"
	"math/big"
)

// WadScale is the fixed-point denominator for token rates and release
// fractions: 1e18 represents 100%.
var WadScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Amount represents a quantity of a single asset in its smallest unit.
// All arithmetic is integer-only; no floating point. Values routinely
// exceed int64 (an 18-decimal token supply of one million units is 1e24),
// so Amount wraps big.Int. The zero value is a valid zero amount.
//
// Amount is immutable: every operation returns a new value and never
// mutates its operands.
type Amount struct {
	i *big.Int
}

// NewAmount creates an Amount from an int64 value.
func NewAmount(v int64) Amount {
	return Amount{i: big.NewInt(v)}
}

// AmountFromBig creates an Amount by copying the given big.Int.
func AmountFromBig(b *big.Int) Amount {
	if b == nil {
		return Amount{}
	}
	return Amount{i: new(big.Int).Set(b)}
}

// ParseAmount parses a base-10 integer string into an Amount.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: parse amount %q: not a base-10 integer", s)
	}
	return Amount{i: b}, nil
}

// MustAmount is like ParseAmount but panics on error. Use for constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Wad returns the Amount representing 100% in wad fixed point (1e18).
func Wad() Amount {
	return Amount{i: new(big.Int).Set(WadScale)}
}

// ref returns the underlying big.Int, treating the zero value as 0.
// Callers must not mutate the result.
func (a Amount) ref() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return a.i
}

// BigInt returns a copy of the underlying integer.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).Set(a.ref())
}

// Int64 returns the amount as an int64. It panics if the value does not
// fit; use only where the caller controls the magnitude (tests, fees in
// minor units).
func (a Amount) Int64() int64 {
	if !a.ref().IsInt64() {
		panic(fmt.Sprintf("types: amount %s overflows int64", a))
	}
	return a.ref().Int64()
}

// Arithmetic operations

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{i: new(big.Int).Add(a.ref(), b.ref())}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{i: new(big.Int).Sub(a.ref(), b.ref())}
}

// MulWad returns a * w / 1e18, rounding toward zero. This is the
// entitlement multiplication: w is a wad fraction (rate or release
// fraction) where 1e18 means 100%.
func (a Amount) MulWad(w Amount) Amount {
	p := new(big.Int).Mul(a.ref(), w.ref())
	return Amount{i: p.Quo(p, WadScale)}
}

// Comparison methods

// Sign returns -1, 0, or +1 for negative, zero, and positive amounts.
func (a Amount) Sign() int { return a.ref().Sign() }

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.Sign() == 0 }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.Sign() > 0 }

// IsNegative returns true if the amount is less than zero.
func (a Amount) IsNegative() bool { return a.Sign() < 0 }

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.ref().Cmp(b.ref()) }

// Equal returns true if both amounts are numerically equal.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// LessThan returns true if a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// GreaterThan returns true if a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// String returns the base-10 representation.
func (a Amount) String() string { return a.ref().String() }

// MarshalText implements encoding.TextMarshaler (base-10 string).
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a JSON string to avoid precision
// loss in consumers that decode numbers as float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting both string and
// bare-number encodings.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum calculates the sum of multiple amounts.
func Sum(values ...Amount) Amount {
	total := Amount{}
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
