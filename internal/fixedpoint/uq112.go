/*

UQ112.112 checked fixed-point arithmetic. A Ratio is a 224-bit unsigned
fraction (numerator << 112 / denominator) carried in a uint256 word; both
fraction inputs must fit in 112 bits. Every operation that could exceed the
112-bit or 224-bit boundary checks before computing and fails instead of
wrapping.

*/

package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// Resolution is the number of fractional bits in a Ratio.
const Resolution = 112

var (
	ErrOverflow     = errors.New("fixedpoint: value exceeds 112-bit bound")
	ErrDivideByZero = errors.New("fixedpoint: division by zero")
)

var (
	// q112 is 2^112, the fixed-point scaling factor.
	q112 = new(uint256.Int).Lsh(uint256.NewInt(1), Resolution)

	// maxUint112 is 2^112 - 1, the largest encodable integer.
	maxUint112 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), Resolution), 1)

	// maxUint224 bounds the 224-bit intermediate of a Ratio multiplication.
	maxUint224 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 224), 1)
)

// Ratio is an unsigned 112.112 fixed-point fraction.
type Ratio struct {
	raw uint256.Int
}

// FitsUint112 reports whether x can serve as a fraction operand.
func FitsUint112(x *uint256.Int) bool {
	return x != nil && !x.Gt(maxUint112)
}

// MaxUint112 returns a copy of the 112-bit bound.
func MaxUint112() *uint256.Int {
	return new(uint256.Int).Set(maxUint112)
}

// Fraction builds the ratio num/den. Both operands must fit in 112 bits and
// den must be nonzero.
func Fraction(num, den *uint256.Int) (Ratio, error) {
	if den == nil || den.IsZero() {
		return Ratio{}, ErrDivideByZero
	}
	if !FitsUint112(num) || !FitsUint112(den) {
		return Ratio{}, ErrOverflow
	}
	shifted := new(uint256.Int).Lsh(num, Resolution)
	var r Ratio
	r.raw.Div(shifted, den)
	return r, nil
}

// Encode lifts a plain integer into ratio space (x * 2^112).
func Encode(x *uint256.Int) (Ratio, error) {
	if !FitsUint112(x) {
		return Ratio{}, ErrOverflow
	}
	var r Ratio
	r.raw.Lsh(x, Resolution)
	return r, nil
}

// Decode truncates the ratio back to a plain integer (rounds toward zero).
func (r Ratio) Decode() *uint256.Int {
	return new(uint256.Int).Rsh(&r.raw, Resolution)
}

// Raw returns the underlying 224-bit fixed-point word. Callers comparing two
// ratios from the same pass may compare raw words directly.
func (r Ratio) Raw() *uint256.Int {
	return new(uint256.Int).Set(&r.raw)
}

// IsZero reports whether the ratio truncates to zero at full precision.
func (r Ratio) IsZero() bool {
	return r.raw.IsZero()
}

// MulInt multiplies the ratio by a plain integer and decodes the 224-bit
// intermediate by right-shifting 112 bits. Truncation here is the single
// sanctioned rounding step: results always round down.
func (r Ratio) MulInt(x *uint256.Int) (*uint256.Int, error) {
	if x == nil {
		return nil, ErrOverflow
	}
	p, overflow := new(uint256.Int).MulOverflow(&r.raw, x)
	if overflow || p.Gt(maxUint224) {
		return nil, ErrOverflow
	}
	return p.Rsh(p, Resolution), nil
}

// DivInt divides the ratio by a plain nonzero integer, preserving precision.
func (r Ratio) DivInt(x *uint256.Int) (Ratio, error) {
	if x == nil || x.IsZero() {
		return Ratio{}, ErrDivideByZero
	}
	var out Ratio
	out.raw.Div(&r.raw, x)
	return out, nil
}

// Sqrt returns the integer square root of x (Babylonian method via the
// uint256 library's native implementation).
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// SlippageFloor computes amount - amount/den, the minimum acceptable output
// for a venue operation given a tolerance denominator (200 -> 0.5%).
func SlippageFloor(amount *uint256.Int, den uint64) (*uint256.Int, error) {
	if den == 0 {
		return nil, ErrDivideByZero
	}
	if amount == nil {
		return nil, ErrOverflow
	}
	cut := new(uint256.Int).Div(amount, uint256.NewInt(den))
	return new(uint256.Int).Sub(amount, cut), nil
}
