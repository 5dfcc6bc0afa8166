package projection

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
)

func ints(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestConcentration(t *testing.T) {
	tests := []struct {
		name     string
		balances []*big.Int
		supply   int64
		want     float64
	}{
		{"zero supply", ints(10), 0, 0},
		{"single holder", ints(10), 10, 100},
		{"top five of seven", ints(1, 30, 2, 20, 25, 10, 12), 100, 97},
		{"fewer than five", ints(5, 15), 40, 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Concentration(tc.balances, big.NewInt(tc.supply)), 1e-9)
		})
	}

	// The input order is preserved.
	in := ints(3, 1, 2)
	Concentration(in, big.NewInt(6))
	assert.Equal(t, ints(3, 1, 2), in)
}

func TestCollateralMetrics(t *testing.T) {
	assert.Equal(t, 100.0, CollateralRatio(big.NewInt(0), big.NewInt(50)))
	assert.Equal(t, 100.0, CollateralRatio(nil, nil))
	assert.InDelta(t, 50.0, CollateralRatio(big.NewInt(200), big.NewInt(100)), 1e-9)
	assert.Equal(t, "-20", FreeCollateral(big.NewInt(80), big.NewInt(100)).String())
	assert.Equal(t, "0", FreeCollateral(nil, nil).String())
}

func TestApplyActivityIsPure(t *testing.T) {
	prev := *entity.NewAssetActivity(tokenAddr, entity.AssetBond)
	next := ApplyActivity(prev, ActivityMint, big.NewInt(7))
	next = ApplyActivity(next, ActivityTransfer, big.NewInt(3))
	next = ApplyActivity(next, ActivityRole, nil)

	assert.Equal(t, int64(0), prev.MintEventCount)
	assert.Equal(t, "0", prev.TotalMintedExact.String())
	assert.Equal(t, int64(1), next.MintEventCount)
	assert.Equal(t, int64(1), next.TransferEventCount)
	assert.Equal(t, int64(1), next.RoleEventCount)
	assert.Equal(t, "7", next.TotalMintedExact.String())
	assert.Equal(t, "3", next.TotalTransferredExact.String())

	assert.True(t, ActivityBurn.hasVolume())
	assert.False(t, ActivityPause.hasVolume())
}

func TestApplySupply(t *testing.T) {
	assert.Equal(t, "15", ApplySupply(big.NewInt(10), SupplyVolumes{Minted: big.NewInt(5)}).String())
	assert.Equal(t, "4", ApplySupply(big.NewInt(10), SupplyVolumes{Burned: big.NewInt(6)}).String())
	assert.Equal(t, "0", ApplySupply(nil, SupplyVolumes{}).String())
}
