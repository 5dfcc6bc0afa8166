package scale

import (
	"fmt"
	"math/big"
)

// DefaultDecimals is used when a contract cannot report its own precision.
const DefaultDecimals uint8 = 18

// ten pow cache for the decimals range an ERC20 can report.
var powers [256]*big.Int

func init() {
	ten := big.NewInt(10)
	powers[0] = big.NewInt(1)
	for i := 1; i < len(powers); i++ {
		powers[i] = new(big.Int).Mul(powers[i-1], ten)
	}
}

// Pow10 returns 10^decimals. The result must not be modified.
func Pow10(decimals uint8) *big.Int {
	return powers[decimals]
}

// ToDecimals returns exact / 10^decimals. A nil amount is treated as 0.
func ToDecimals(exact *big.Int, decimals uint8) Decimal {
	if exact == nil {
		return Zero
	}
	return Decimal{r: new(big.Rat).SetFrac(exact, Pow10(decimals))}
}

// FromDecimals returns value * 10^decimals. It fails when the value carries
// more precision than the scale can represent.
func FromDecimals(value Decimal, decimals uint8) (*big.Int, error) {
	scaled := new(big.Rat).Mul(value.rat(), new(big.Rat).SetInt(Pow10(decimals)))
	if !scaled.IsInt() {
		return nil, fmt.Errorf("value %s has more than %d fraction digits", value, decimals)
	}
	return new(big.Int).Set(scaled.Num()), nil
}

// Percent returns part/whole*100 as a float. It returns 0 when whole is 0.
func Percent(part, whole *big.Int) float64 {
	if whole == nil || whole.Sign() == 0 || part == nil {
		return 0
	}
	r := new(big.Rat).SetFrac(new(big.Int).Mul(part, big.NewInt(100)), whole)
	f, _ := r.Float64()
	return f
}
