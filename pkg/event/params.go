package event

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Uint256 is an unsigned 256-bit event parameter. It accepts decimal strings,
// 0x-prefixed hex strings and JSON numbers.
type Uint256 struct {
	v *big.Int
}

// NewUint256 wraps v. It is mainly used by tests.
func NewUint256(v int64) Uint256 {
	return Uint256{v: big.NewInt(v)}
}

// Big returns a copy of the value as a big.Int. The zero value returns 0.
func (u Uint256) Big() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(u.v)
}

// Uint64 returns the value truncated to 64 bits.
func (u Uint256) Uint64() uint64 {
	if u.v == nil {
		return 0
	}
	return u.v.Uint64()
}

// Int64 returns the value as an int64, saturating at the maximum.
func (u Uint256) Int64() int64 {
	if u.v == nil {
		return 0
	}
	if !u.v.IsInt64() {
		return 1<<63 - 1
	}
	return u.v.Int64()
}

func (u Uint256) String() string {
	return u.Big().String()
}

func (u Uint256) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *Uint256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid uint256 %s", string(data))
		}
		s = n.String()
	}
	v, err := ParseUint256(s)
	if err != nil {
		return err
	}
	u.v = v
	return nil
}

// ParseUint256 parses a decimal or 0x-prefixed hex string and rejects values
// outside the uint256 range.
func ParseUint256(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = uint256.FromHex(normalizeHex(s))
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid uint256 %q: %w", s, err)
	}
	return v.ToBig(), nil
}

// uint256.FromHex rejects leading zero digits.
func normalizeHex(s string) string {
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		digits = "0"
	}
	return "0x" + digits
}

// Uint256s is an array parameter of Uint256 values.
type Uint256s []Uint256

// Bigs returns the values as big.Ints.
func (us Uint256s) Bigs() []*big.Int {
	out := make([]*big.Int, len(us))
	for i, u := range us {
		out[i] = u.Big()
	}
	return out
}

// Sum returns the total of all values.
func (us Uint256s) Sum() *big.Int {
	total := new(big.Int)
	for _, u := range us {
		total.Add(total, u.Big())
	}
	return total
}

// Bool accepts JSON booleans and the strings "true"/"false".
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = Bool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid bool %s", string(data))
	}
	switch strings.ToLower(s) {
	case "true", "1":
		*b = true
	case "false", "0", "":
		*b = false
	default:
		return fmt.Errorf("invalid bool %q", s)
	}
	return nil
}
