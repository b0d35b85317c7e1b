// Package fixedpoint implements a scaled big-integer decimal type for
// reward/incentive computations that weigh validator slots; no other
// package of this module imports it (grounded
// on original_source/fixed-unsigned; incidental to the consensus core
// but carried as ambient infrastructure per spec.md §9).
//
// Per spec.md §9's resolution of the original's mul/div inconsistency:
// multiplication descales after multiplying ((a*b) / 10^Scale), division
// scales up before dividing ((a * 10^Scale) / b), both rounding half-up.
package fixedpoint

import (
	"fmt"
	"math/big"
)

// Scale is the fixed number of decimal digits every Unsigned value is
// scaled by. 15 digits safely fits a float64-range integer, matching the
// original implementation's choice.
const Scale = 15

var scaleFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(Scale), nil)

// Unsigned is a non-negative fixed-point decimal: int value / 10^Scale.
type Unsigned struct {
	v *big.Int
}

// Zero is the additive identity.
var Zero = Unsigned{v: big.NewInt(0)}

// FromInt builds an Unsigned representing the whole number n.
func FromInt(n uint64) Unsigned {
	v := new(big.Int).SetUint64(n)
	return Unsigned{v: v.Mul(v, scaleFactor)}
}

// FromScaledBigInt wraps a pre-scaled big.Int (i.e. already multiplied by
// 10^Scale) without further scaling, for deserializing stored values.
func FromScaledBigInt(scaled *big.Int) (Unsigned, error) {
	if scaled.Sign() < 0 {
		return Unsigned{}, fmt.Errorf("fixedpoint: negative value %s", scaled)
	}
	return Unsigned{v: new(big.Int).Set(scaled)}, nil
}

// ScaledBigInt returns the underlying scaled integer (for wire encoding).
func (u Unsigned) ScaledBigInt() *big.Int {
	return new(big.Int).Set(u.v)
}

// Add returns u + other.
func (u Unsigned) Add(other Unsigned) Unsigned {
	return Unsigned{v: new(big.Int).Add(u.v, other.v)}
}

// Sub returns u - other. It panics on underflow since reward accounting
// must never go negative; callers check ordering first.
func (u Unsigned) Sub(other Unsigned) Unsigned {
	r := new(big.Int).Sub(u.v, other.v)
	if r.Sign() < 0 {
		panic("fixedpoint: subtraction underflow")
	}
	return Unsigned{v: r}
}

// Mul returns u * other, computed as (u.v * other.v) / 10^Scale,
// rounding half-up.
func (u Unsigned) Mul(other Unsigned) Unsigned {
	product := new(big.Int).Mul(u.v, other.v)
	return Unsigned{v: divRoundHalfUp(product, scaleFactor)}
}

// Div returns u / other, computed as (u.v * 10^Scale) / other.v, rounding
// half-up. It panics on division by zero.
func (u Unsigned) Div(other Unsigned) Unsigned {
	if other.v.Sign() == 0 {
		panic("fixedpoint: division by zero")
	}
	scaled := new(big.Int).Mul(u.v, scaleFactor)
	return Unsigned{v: divRoundHalfUp(scaled, other.v)}
}

// Cmp compares u and other: -1, 0, 1.
func (u Unsigned) Cmp(other Unsigned) int {
	return u.v.Cmp(other.v)
}

// String renders the value in decimal notation.
func (u Unsigned) String() string {
	scaled := new(big.Int).Set(u.v)
	intPart := new(big.Int).Div(scaled, scaleFactor)
	frac := new(big.Int).Mod(scaled, scaleFactor)
	return fmt.Sprintf("%s.%0*s", intPart.String(), Scale, frac.String())
}

// divRoundHalfUp computes num/den rounded half-up (num, den non-negative).
func divRoundHalfUp(num, den *big.Int) *big.Int {
	quotient, remainder := new(big.Int), new(big.Int)
	quotient.DivMod(num, den, remainder)
	doubled := new(big.Int).Lsh(remainder, 1)
	if doubled.Cmp(den) >= 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}
