package projection

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/metrics"
)

var airdropAddr = common.HexToAddress("0x000000000000000000000000000000000000a1d1")

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	doc, ok := m[uri]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(doc), nil
}

func deployAirdrop(t *testing.T, h *harness, name, cid string, extra map[string]interface{}) {
	t.Helper()
	params := map[string]interface{}{
		"airdrop":         airdropAddr.Hex(),
		"token":           tokenAddr.Hex(),
		"owner":           carol.Hex(),
		"merkleRoot":      common.HexToHash("0xabc").Hex(),
		"startTime":       "1700000000",
		"endTime":         "1800000000",
		"distributionCid": cid,
	}
	for k, v := range extra {
		params[k] = v
	}
	res := h.emit(airdropFactory, name, params)
	require.Equal(t, metrics.OutcomeApplied, res.Outcome)
}

func (h *harness) airdrop() *entity.Airdrop {
	h.t.Helper()
	a, ok := get[entity.Airdrop](h, entity.AddressID(airdropAddr))
	require.True(h.t, ok)
	return a
}

func TestAirdropManifestAndClaims(t *testing.T) {
	manifests := mapFetcher{
		"ipfs://bafy": `{"` + alice.Hex() + `": {"amount": "100", "index": 0}, "` + bob.Hex() + `": "50", "not-an-address": "1"}`,
	}
	h := newHarness(t, manifests)
	h.chain.SetValue(tokenAddr, "decimals", uint8(0))
	deployAirdrop(t, h, event.StandardAirdropDeployed, "ipfs://bafy", nil)

	a := h.airdrop()
	assert.True(t, a.ManifestLoaded)
	assert.Equal(t, int64(2), a.AllocationsCount)
	assert.Equal(t, "150", a.TotalAllocatedExact.String())
	assert.Equal(t, uint8(0), a.Decimals)
	rec, ok := get[entity.AirdropRecipient](h, entity.PairID(airdropAddr, alice))
	require.True(t, ok)
	assert.Equal(t, "100", rec.AllocatedAmountExact.String())
	assert.Nil(t, rec.FirstClaimedTimestamp)

	h.emit(airdropAddr, event.Claimed, map[string]interface{}{"claimant": alice.Hex(), "amount": "60", "index": "0"})
	a = h.airdrop()
	assert.Equal(t, int64(1), a.TotalRecipients)
	assert.Equal(t, int64(1), a.TotalClaims)

	// Claiming the same index again is rejected.
	res := h.emit(airdropAddr, event.Claimed, map[string]interface{}{"claimant": alice.Hex(), "amount": "60", "index": "0"})
	assert.Equal(t, metrics.OutcomeSkipped, res.Outcome)

	// A later claim of the same recipient does not count a new recipient.
	h.emit(airdropAddr, event.BatchClaimed, map[string]interface{}{
		"claimant": alice.Hex(), "totalAmount": "40", "indices": []string{"3", "4"}, "amounts": []string{"15", "25"},
	})
	a = h.airdrop()
	assert.Equal(t, int64(1), a.TotalRecipients)
	assert.Equal(t, int64(3), a.TotalClaims)
	assert.Equal(t, "100", a.TotalClaimedExact.String())
	rec, _ = get[entity.AirdropRecipient](h, entity.PairID(airdropAddr, alice))
	assert.Equal(t, "100", rec.ClaimedAmountExact.String())
	assert.Equal(t, int64(3), rec.ClaimsCount)
	require.NotNil(t, rec.FirstClaimedTimestamp)

	idx, ok := get[entity.AirdropClaimIndex](h, entity.AirdropClaimIndexID(airdropAddr, big.NewInt(4)))
	require.True(t, ok)
	assert.Equal(t, "25", idx.AmountExact.String())

	assert.Equal(t, 2, h.backend.Count(entity.KindAirdropStatsData))

	h.emit(airdropAddr, event.TokensWithdrawn, map[string]interface{}{"to": carol.Hex(), "amount": "50"})
	assert.Equal(t, "50", h.airdrop().WithdrawnExact.String())
}

func TestBatchClaimRequiresPerIndexAmounts(t *testing.T) {
	h := newHarness(t, nil)
	deployAirdrop(t, h, event.StandardAirdropDeployed, "", nil)

	for _, amounts := range [][]string{nil, {"1"}} {
		res := h.emit(airdropAddr, event.BatchClaimed, map[string]interface{}{
			"claimant": alice.Hex(), "totalAmount": "3", "indices": []string{"1", "2"}, "amounts": amounts,
		})
		require.NotNil(t, res.Skip)
		assert.Equal(t, Malformed, res.Skip.Category)
	}
	assert.Equal(t, int64(0), h.airdrop().TotalClaims)
}

func TestManifestFailureMeansNoManifest(t *testing.T) {
	h := newHarness(t, mapFetcher{"ipfs://list": `["not", "an", "object"]`})
	deployAirdrop(t, h, event.StandardAirdropDeployed, "ipfs://missing", nil)
	assert.False(t, h.airdrop().ManifestLoaded)

	h = newHarness(t, mapFetcher{"ipfs://list": `["not", "an", "object"]`})
	deployAirdrop(t, h, event.StandardAirdropDeployed, "ipfs://list", nil)
	assert.False(t, h.airdrop().ManifestLoaded)
	assert.Equal(t, int64(0), h.airdrop().AllocationsCount)
}

func TestPushAirdropDistribution(t *testing.T) {
	h := newHarness(t, nil)
	deployAirdrop(t, h, event.PushAirdropDeployed, "", nil)

	h.emit(airdropAddr, event.TokensDistributed, map[string]interface{}{"recipient": bob.Hex(), "amount": "5", "index": "0"})
	h.emit(airdropAddr, event.BatchDistributed, map[string]interface{}{
		"recipients": []string{alice.Hex(), carol.Hex()}, "amounts": []string{"1", "2"}, "indices": []string{"1", "2"},
	})
	a := h.airdrop()
	assert.Equal(t, entity.AirdropPush, a.Type)
	assert.Equal(t, int64(3), a.TotalRecipients)
	assert.Equal(t, "8", a.TotalClaimedExact.String())

	res := h.emit(airdropAddr, event.BatchDistributed, map[string]interface{}{
		"recipients": []string{alice.Hex()}, "amounts": []string{"1", "2"}, "indices": []string{"5"},
	})
	require.NotNil(t, res.Skip)
	assert.Equal(t, Malformed, res.Skip.Category)
}

func TestVestingAirdrop(t *testing.T) {
	h := newHarness(t, nil)
	deployAirdrop(t, h, event.VestingAirdropDeployed, "", map[string]interface{}{
		"vestingDuration": "1000", "cliffDuration": "100", "claimPeriodEnd": "1900000000",
	})
	strategy, ok := get[entity.LinearVestingStrategy](h, entity.AddressID(airdropAddr))
	require.True(t, ok)
	assert.Equal(t, int64(1000), strategy.VestingDuration)
	assert.Equal(t, int64(100), strategy.CliffDuration)

	h.emit(airdropAddr, event.VestingInitialized, map[string]interface{}{
		"claimant": alice.Hex(), "allocatedAmount": e18(10).String(), "index": "0",
	})
	res := h.emit(airdropAddr, event.VestingInitialized, map[string]interface{}{
		"claimant": alice.Hex(), "allocatedAmount": e18(10).String(), "index": "0",
	})
	assert.Equal(t, metrics.OutcomeSkipped, res.Outcome)

	h.emit(airdropAddr, event.Claimed, map[string]interface{}{"claimant": alice.Hex(), "amount": e18(4).String(), "index": "0"})
	u, ok := get[entity.UserVestingData](h, entity.PairID(airdropAddr, alice))
	require.True(t, ok)
	assert.True(t, u.Initialized)
	assert.Equal(t, "4", u.ClaimedAmount.String())

	strategy, _ = get[entity.LinearVestingStrategy](h, entity.AddressID(airdropAddr))
	assert.Equal(t, int64(1), strategy.InitializedCount)
	assert.Equal(t, e18(4).String(), strategy.TotalClaimedExact.String())
	assert.Equal(t, 2, h.backend.Count(entity.KindVestingStatsData))
}
