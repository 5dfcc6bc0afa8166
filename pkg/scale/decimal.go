// Package scale converts between exact on-chain integer amounts and
// human-readable decimal amounts.
package scale

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Decimal is an immutable exact decimal number. The zero value is 0.
//
// Decimals produced by ToDecimals and the arithmetic below always have a
// terminating decimal expansion, so String never rounds.
type Decimal struct {
	r *big.Rat
}

// Zero is the decimal 0.
var Zero = Decimal{}

// NewDecimal returns the decimal value of an integer.
func NewDecimal(v int64) Decimal {
	return Decimal{r: new(big.Rat).SetInt64(v)}
}

// ParseDecimal parses a plain decimal string such as "12.5" or "-0.001".
func ParseDecimal(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("empty decimal")
	}
	if strings.ContainsAny(s, "/eE") {
		return Zero, fmt.Errorf("invalid decimal %q", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Zero, fmt.Errorf("invalid decimal %q", s)
	}
	return Decimal{r: r}, nil
}

// MustParseDecimal is ParseDecimal for constants in tests and defaults.
func MustParseDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) rat() *big.Rat {
	if d.r == nil {
		return new(big.Rat)
	}
	return d.r
}

func (d Decimal) Add(o Decimal) Decimal {
	return Decimal{r: new(big.Rat).Add(d.rat(), o.rat())}
}

func (d Decimal) Sub(o Decimal) Decimal {
	return Decimal{r: new(big.Rat).Sub(d.rat(), o.rat())}
}

func (d Decimal) Mul(o Decimal) Decimal {
	return Decimal{r: new(big.Rat).Mul(d.rat(), o.rat())}
}

func (d Decimal) Neg() Decimal {
	return Decimal{r: new(big.Rat).Neg(d.rat())}
}

// Cmp compares d and o and returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	return d.rat().Cmp(o.rat())
}

func (d Decimal) Sign() int {
	return d.rat().Sign()
}

func (d Decimal) IsZero() bool {
	return d.Sign() == 0
}

// Float64 returns the nearest float64 value.
func (d Decimal) Float64() float64 {
	f, _ := d.rat().Float64()
	return f
}

// String renders the exact decimal expansion without trailing zeros.
func (d Decimal) String() string {
	r := d.rat()
	if r.IsInt() {
		return r.Num().String()
	}
	digits := fractionDigits(r.Denom())
	if digits < 0 {
		// Non-terminating expansions only come from division, render with 18 digits.
		return strings.TrimRight(strings.TrimRight(r.FloatString(18), "0"), ".")
	}
	s := r.FloatString(digits)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// fractionDigits returns the number of fraction digits needed to represent
// 1/denom exactly, or -1 if the expansion does not terminate.
func fractionDigits(denom *big.Int) int {
	n := new(big.Int).Set(denom)
	two, five := big.NewInt(2), big.NewInt(5)
	twos, fives := 0, 0
	mod := new(big.Int)
	for {
		q, m := new(big.Int).QuoRem(n, two, mod)
		if m.Sign() != 0 {
			break
		}
		n = q
		twos++
	}
	for {
		q, m := new(big.Int).QuoRem(n, five, mod)
		if m.Sign() != 0 {
			break
		}
		n = q
		fives++
	}
	if n.Cmp(big.NewInt(1)) != 0 {
		return -1
	}
	if twos > fives {
		return twos
	}
	return fives
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Accept bare JSON numbers as well.
		s = string(data)
	}
	parsed, err := ParseDecimal(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
