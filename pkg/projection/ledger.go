package projection

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

var zeroAddress common.Address

// requireAsset loads the asset at addr or skips the event.
func (c *Context) requireAsset(addr common.Address) (*entity.Asset, error) {
	asset, ok, err := load[entity.Asset](c, entity.AddressID(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(MissingReference, "asset %s is not indexed", addr.Hex())
	}
	return asset, nil
}

// decimalsOf returns the precision of the token at addr: from its asset
// record when indexed, otherwise from the contract, defaulting to 18.
func (c *Context) decimalsOf(addr common.Address) (uint8, error) {
	asset, ok, err := load[entity.Asset](c, entity.AddressID(addr))
	if err != nil {
		return 0, err
	}
	if ok {
		return asset.Decimals, nil
	}
	return c.Views(addr).Uint8("decimals", scale.DefaultDecimals), nil
}

// initialBlocked is the blocked state of a new balance.
func initialBlocked(asset *entity.Asset, holder common.Address, allowlist bool) bool {
	if allowlist {
		return !asset.AllowedUsers.Contains(holder)
	}
	return asset.BlockedUsers.Contains(holder)
}

// loadBalance returns the live balance of holder, if any.
func (c *Context) loadBalance(asset common.Address, holder common.Address) (*entity.Balance, bool, error) {
	return load[entity.Balance](c, entity.PairID(asset, holder))
}

// AdjustBalance applies a signed delta to holder's balance of asset. It is
// the only place balances are created or deleted: a balance is created on its
// first positive value and deleted when it reaches exactly zero, and the
// asset's holder count and the account's balance count move with it. The
// caller saves asset. The returned balance is nil once deleted.
func (c *Context) AdjustBalance(asset *entity.Asset, holder common.Address, delta *big.Int) (*entity.Balance, error) {
	if delta.Sign() == 0 {
		bal, _, err := c.loadBalance(asset.Address, holder)
		return bal, err
	}
	acct, err := c.FetchAccount(holder)
	if err != nil {
		return nil, err
	}
	bal, exists, err := c.loadBalance(asset.Address, holder)
	if err != nil {
		return nil, err
	}

	prevExact := new(big.Int)
	prevValue := scale.Zero
	if exists {
		prevExact = entity.IntOrZero(bal.ValueExact)
		prevValue = bal.Value
	}
	nextExact := new(big.Int).Add(prevExact, delta)
	if nextExact.Sign() < 0 {
		return nil, Skip(Inconsistent, "balance of %s in %s would become negative (%s%+d)",
			holder.Hex(), asset.Address.Hex(), prevExact, delta)
	}
	if !exists {
		bal = entity.NewBalance(asset.Address, holder, initialBlocked(asset, holder, kindAllowlist(asset.Type)))
		asset.HoldersCount++
		acct.BalancesCount++
	}

	nextValue := scale.ToDecimals(nextExact, asset.Decimals)
	diff := nextValue.Sub(prevValue)
	acct.TotalBalance = acct.TotalBalance.Add(diff)
	if asset.Paused {
		acct.PausedBalance = acct.PausedBalance.Add(diff)
	}

	if nextExact.Sign() == 0 {
		c.Delete(bal)
		asset.HoldersCount--
		acct.BalancesCount--
		bal = nil
	} else {
		bal.ValueExact = nextExact
		bal.Value = nextValue
		bal.LastActivity = c.Timestamp()
		if err := c.Save(bal); err != nil {
			return nil, err
		}
	}
	if err := c.Save(acct); err != nil {
		return nil, err
	}

	if err := c.Save(&entity.PortfolioStatsData{
		ID:           c.SnapshotID(entity.KindPortfolioStatsData),
		Account:      holder,
		Asset:        asset.Address,
		AssetType:    asset.Type,
		BlockNumber:  c.Event.BlockNumber,
		Timestamp:    c.Timestamp(),
		BalanceExact: new(big.Int).Set(nextExact),
		Balance:      nextValue,
		TotalBalance: acct.TotalBalance,
	}); err != nil {
		return nil, err
	}
	return bal, nil
}

// countActivity folds one event into the asset's counters and snapshots them
// when the event carries volume.
func (c *Context) countActivity(asset *entity.Asset, kind ActivityKind, amount *big.Int) error {
	agg, ok, err := load[entity.AssetActivity](c, entity.AddressID(asset.Address))
	if err != nil {
		return err
	}
	if !ok {
		agg = entity.NewAssetActivity(asset.Address, asset.Type)
	}
	next := ApplyActivity(*agg, kind, amount)
	*agg = next
	if err := c.Save(agg); err != nil {
		return err
	}
	if !kind.hasVolume() {
		return nil
	}
	return c.Save(&entity.AssetActivityData{
		ID:                 c.SnapshotID(entity.KindAssetActivityData),
		Asset:              asset.Address,
		AssetType:          asset.Type,
		EventName:          c.Event.Name,
		BlockNumber:        c.Event.BlockNumber,
		Timestamp:          c.Timestamp(),
		AmountExact:        entity.AddInt(nil, amount),
		TransferEventCount: next.TransferEventCount,
		MintEventCount:     next.MintEventCount,
		BurnEventCount:     next.BurnEventCount,
		ClawbackEventCount: next.ClawbackEventCount,
		FrozenEventCount:   next.FrozenEventCount,
	})
}

// finishAsset recomputes the derived fields of asset, saves it and appends
// one stats snapshot.
func (c *Context) finishAsset(asset *entity.Asset, v SupplyVolumes) error {
	if asset.Collateral != nil {
		col := asset.Collateral
		col.CollateralExact = entity.IntOrZero(col.CollateralExact)
		col.Collateral = scale.ToDecimals(col.CollateralExact, asset.Decimals)
		col.FreeCollateralExact = FreeCollateral(col.CollateralExact, asset.TotalSupplyExact)
		col.FreeCollateral = scale.ToDecimals(col.FreeCollateralExact, asset.Decimals)
		col.CollateralRatio = CollateralRatio(col.CollateralExact, asset.TotalSupplyExact)
	}

	balances, err := list[entity.Balance](c, entity.ChildPrefix(asset.ID))
	if err != nil {
		return err
	}
	values := make([]*big.Int, len(balances))
	for i, b := range balances {
		values[i] = b.ValueExact
	}
	asset.Concentration = Concentration(values, asset.TotalSupplyExact)
	asset.LastActivity = c.Timestamp()
	if err := c.Save(asset); err != nil {
		return err
	}

	snap := &entity.AssetStatsData{
		ID:               c.SnapshotID(entity.KindAssetStatsData),
		Asset:            asset.Address,
		AssetType:        asset.Type,
		EventName:        c.Event.Name,
		BlockNumber:      c.Event.BlockNumber,
		Timestamp:        c.Timestamp(),
		TotalSupplyExact: entity.AddInt(nil, asset.TotalSupplyExact),
		TotalSupply:      asset.TotalSupply,
		Minted:           scale.ToDecimals(v.Minted, asset.Decimals),
		Burned:           scale.ToDecimals(v.Burned, asset.Decimals),
		Transferred:      scale.ToDecimals(v.Transferred, asset.Decimals),
		HoldersCount:     asset.HoldersCount,
		Concentration:    asset.Concentration,
		Paused:           asset.Paused,
	}
	if asset.Collateral != nil {
		ratio := asset.Collateral.CollateralRatio
		free := asset.Collateral.FreeCollateral
		snap.CollateralRatio = &ratio
		snap.FreeCollateral = &free
	}
	return c.Save(snap)
}

// shiftPausedBalances moves every holder's balance of asset into or out of
// their paused total.
func (c *Context) shiftPausedBalances(asset *entity.Asset, paused bool) error {
	balances, err := list[entity.Balance](c, entity.ChildPrefix(asset.ID))
	if err != nil {
		return err
	}
	for _, b := range balances {
		acct, err := c.FetchAccount(b.Holder)
		if err != nil {
			return err
		}
		if paused {
			acct.PausedBalance = acct.PausedBalance.Add(b.Value)
		} else {
			acct.PausedBalance = acct.PausedBalance.Sub(b.Value)
		}
		if err := c.Save(acct); err != nil {
			return err
		}
	}
	c.logger.Debug("shifted paused balances", zap.Int("holders", len(balances)), zap.Bool("paused", paused))
	return nil
}
