package projection

import (
	"math/big"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
)

// ActivityKind is a counted asset event class.
type ActivityKind int

const (
	ActivityMint ActivityKind = iota
	ActivityBurn
	ActivityTransfer
	ActivityClawback
	ActivityFrozen
	ActivityBlocking
	ActivityPause
	ActivityRole
	ActivityCollateral
)

// hasVolume reports whether the kind carries an amount worth a snapshot.
func (k ActivityKind) hasVolume() bool {
	switch k {
	case ActivityMint, ActivityBurn, ActivityTransfer, ActivityClawback, ActivityFrozen:
		return true
	}
	return false
}

func addInt(a, b *big.Int) *big.Int {
	return entity.AddInt(a, b)
}

// ApplyActivity returns the counters after one event of kind moving amount.
// prev is not modified.
func ApplyActivity(prev entity.AssetActivity, kind ActivityKind, amount *big.Int) entity.AssetActivity {
	next := prev
	switch kind {
	case ActivityMint:
		next.MintEventCount++
		next.TotalMintedExact = addInt(prev.TotalMintedExact, amount)
	case ActivityBurn:
		next.BurnEventCount++
		next.TotalBurnedExact = addInt(prev.TotalBurnedExact, amount)
	case ActivityTransfer:
		next.TransferEventCount++
		next.TotalTransferredExact = addInt(prev.TotalTransferredExact, amount)
	case ActivityClawback:
		next.ClawbackEventCount++
		next.TotalClawbackExact = addInt(prev.TotalClawbackExact, amount)
	case ActivityFrozen:
		next.FrozenEventCount++
	case ActivityBlocking:
		next.BlockingEventCount++
	case ActivityPause:
		next.PauseEventCount++
	case ActivityRole:
		next.RoleEventCount++
	case ActivityCollateral:
		next.CollateralEventCount++
	}
	return next
}

// SupplyVolumes are the amounts one event minted, burned and transferred.
type SupplyVolumes struct {
	Minted      *big.Int
	Burned      *big.Int
	Transferred *big.Int
}

// ApplySupply returns the total supply after v.
func ApplySupply(prev *big.Int, v SupplyVolumes) *big.Int {
	next := addInt(prev, v.Minted)
	return next.Sub(next, entity.IntOrZero(v.Burned))
}
