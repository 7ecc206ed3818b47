package gate

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/holiman/uint256"
)

// Fault messages are part of the contract interface and must not change.
const (
	errFractionZeroDen = "Denominator must be a positive number, but was 0"
	errFractionTooBig  = "The fraction must be less or equal to 1"
)

// Fraction is an exact rational number in the [0, 1] range. It is used for
// royalty percentages, where floating point would lose units on 128-bit
// amounts. A Fraction obtained from NewFraction or decoded from JSON always
// has a positive denominator and Num <= Den.
type Fraction struct {
	Num uint32 `json:"num"`
	Den uint32 `json:"den"`
}

// NewFraction creates a Fraction and aborts the invocation if the invariants
// do not hold. It is meant to be called from contract code, where the shard
// turns the panic into a failed receipt.
func NewFraction(num, den uint32) Fraction {
	f := Fraction{Num: num, Den: den}
	if err := f.Validate(); err != nil {
		panic(err.Error())
	}
	return f
}

// Validate checks the Fraction invariants and is used on decoding paths
// where malformed input must surface as an error.
func (f Fraction) Validate() error {
	if f.Den == 0 {
		return errors.New(errFractionZeroDen)
	}
	if f.Num > f.Den {
		return errors.New(errFractionTooBig)
	}
	return nil
}

// Mult returns value scaled by f, rounding down. The intermediate product
// does not fit into 128 bits, so it is computed in 256-bit space; the
// quotient fits back into a U128 because Num <= Den.
func (f Fraction) Mult(value U128) U128 {
	var r uint256.Int
	r.Mul(&value.val, uint256.NewInt(uint64(f.Num)))
	r.Div(&r, uint256.NewInt(uint64(f.Den)))
	return U128{val: r}
}

// Cmp compares two fractions as rational numbers:
//   - -1 implies f < g.
//   - 0 implies f = g.
//   - 1 implies f > g.
func (f Fraction) Cmp(g Fraction) int {
	l := uint64(f.Num) * uint64(g.Den)
	r := uint64(g.Num) * uint64(f.Den)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two fractions represent the same rational number,
// so that 1/2 equals 5/10.
func (f Fraction) Equal(g Fraction) bool {
	return f.Cmp(g) == 0
}

// String implements the Stringer interface.
func (f Fraction) String() string {
	return strconv.FormatUint(uint64(f.Num), 10) + "/" + strconv.FormatUint(uint64(f.Den), 10)
}

// UnmarshalJSON implements the json.Unmarshaler interface. Decoded fractions
// are validated, so stored and wire values satisfy the same invariants as
// constructed ones.
func (f *Fraction) UnmarshalJSON(data []byte) error {
	type alias Fraction
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := Fraction(aux).Validate(); err != nil {
		return err
	}
	*f = Fraction(aux)
	return nil
}
