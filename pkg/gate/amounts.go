package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// U64 is an unsigned 64-bit integer that is encoded as a decimal string in
// JSON, since values beyond 2^53 are not representable as JSON numbers.
type U64 uint64

// String implements the Stringer interface.
func (u U64) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// MarshalJSON implements the json.Marshaler interface.
func (u U64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. Only
// string-encoded decimal values are accepted.
func (u *U64) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 value: %w", err)
	}
	*u = U64(v)
	return nil
}

// TokenID identifies a token within a single NFT contract.
type TokenID = U64

// U128 is an unsigned 128-bit integer used for native token amounts and
// prices. Like U64 it is encoded as a decimal string in JSON. The zero
// value is a valid zero amount.
type U128 struct {
	val uint256.Int
}

// NewU128 converts a uint64 into a U128.
func NewU128(v uint64) U128 {
	var r uint256.Int
	r.SetUint64(v)
	return U128{val: r}
}

// MaxU128 returns the largest amount a U128 can hold, 2^128 - 1.
func MaxU128() U128 {
	var r uint256.Int
	r.SetAllOne()
	r.Rsh(&r, 128)
	return U128{val: r}
}

// ParseU128 parses a decimal string, rejecting values that do not fit into
// 128 bits.
func ParseU128(s string) (U128, error) {
	var r uint256.Int
	if err := r.SetFromDecimal(s); err != nil {
		return U128{}, fmt.Errorf("invalid u128 value: %w", err)
	}
	if r.BitLen() > 128 {
		return U128{}, errors.New("u128 value overflows 128 bits")
	}
	return U128{val: r}, nil
}

// String implements the Stringer interface.
func (u U128) String() string {
	return u.val.Dec()
}

// IsZero reports whether u is 0.
func (u U128) IsZero() bool {
	return u.val.IsZero()
}

// Cmp compares u and v and returns -1, 0 or 1.
func (u U128) Cmp(v U128) int {
	return u.val.Cmp(&v.val)
}

// Add returns u+v and an overflow flag.
func (u U128) Add(v U128) (U128, bool) {
	var r uint256.Int
	r.Add(&u.val, &v.val)
	if r.BitLen() > 128 {
		return U128{}, true
	}
	return U128{val: r}, false
}

// Sub returns u-v and an underflow flag.
func (u U128) Sub(v U128) (U128, bool) {
	if u.val.Cmp(&v.val) < 0 {
		return U128{}, true
	}
	var r uint256.Int
	r.Sub(&u.val, &v.val)
	return U128{val: r}, false
}

// Bytes returns the big-endian 16-byte form used in storage records.
func (u U128) Bytes() []byte {
	b32 := u.val.Bytes32()
	return b32[16:]
}

// U128FromBytes decodes a big-endian amount of at most 16 bytes.
func U128FromBytes(data []byte) (U128, error) {
	if len(data) > 16 {
		return U128{}, errors.New("u128 value overflows 128 bits")
	}
	var r uint256.Int
	r.SetBytes(data)
	return U128{val: r}, nil
}

// MarshalJSON implements the json.Marshaler interface.
func (u U128) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. Only
// string-encoded decimal values are accepted.
func (u *U128) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	v, err := ParseU128(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

func unquote(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", errors.New("expected a string with a decimal number")
	}
	return s, nil
}
