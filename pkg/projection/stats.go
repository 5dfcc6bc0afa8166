package projection

import (
	"math/big"

	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// topHolders is the number of largest balances counted by Concentration.
const topHolders = 5

// Concentration returns the share of supply held by the five largest
// balances, in percent. It returns 0 when supply is 0.
func Concentration(balances []*big.Int, totalSupply *big.Int) float64 {
	if totalSupply == nil || totalSupply.Sign() == 0 {
		return 0
	}
	values := make([]*big.Int, len(balances))
	copy(values, balances)

	top := new(big.Int)
	for n := 0; n < topHolders; n++ {
		best := -1
		for i, v := range values {
			if v == nil || v.Sign() <= 0 {
				continue
			}
			if best < 0 || v.Cmp(values[best]) > 0 {
				best = i
			}
		}
		if best < 0 {
			break
		}
		top.Add(top, values[best])
		values[best] = nil
	}
	return scale.Percent(top, totalSupply)
}

// CollateralRatio returns supply/collateral in percent, or 100 when no
// collateral is posted.
func CollateralRatio(collateral, totalSupply *big.Int) float64 {
	if collateral == nil || collateral.Sign() == 0 {
		return 100
	}
	return scale.Percent(totalSupply, collateral)
}

// FreeCollateral is collateral minus supply. It is negative when the asset
// is under-collateralized.
func FreeCollateral(collateral, totalSupply *big.Int) *big.Int {
	c := collateral
	if c == nil {
		c = new(big.Int)
	}
	s := totalSupply
	if s == nil {
		s = new(big.Int)
	}
	return new(big.Int).Sub(c, s)
}
