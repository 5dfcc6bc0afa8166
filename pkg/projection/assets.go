package projection

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

func registerAssets(r *Router) {
	all := assetContracts(nil)
	collateral := assetContracts(func(k AssetKind) bool { return k.Collateral })

	Handle(r, event.Transfer, onTransfer, all...)
	Handle(r, event.Approval, onApproval, all...)
	Handle(r, event.RoleGranted, onAssetRoleGranted, all...)
	Handle(r, event.RoleRevoked, onAssetRoleRevoked, all...)
	HandleRaw(r, event.Paused, func(c *Context) error { return setAssetPaused(c, true) }, all...)
	HandleRaw(r, event.Unpaused, func(c *Context) error { return setAssetPaused(c, false) }, all...)
	Handle(r, event.TokensFrozen, onTokensFrozen, all...)
	Handle(r, event.UserBlocked, userListHandler(true, false), all...)
	Handle(r, event.UserUnblocked, userListHandler(true, true), all...)
	Handle(r, event.UserAllowed, userListHandler(false, false), all...)
	Handle(r, event.UserDisallowed, userListHandler(false, true), all...)
	Handle(r, event.Clawback, onClawback, all...)
	Handle(r, event.CollateralUpdated, onCollateralUpdated, collateral...)

	Handle(r, event.BondMatured, onBondMatured, event.KindBond)
	Handle(r, event.BondRedeemed, onBondRedeemed, event.KindBond)
	Handle(r, event.UnderlyingAssetTopUp, onBondTopUp, event.KindBond)
	Handle(r, event.UnderlyingAssetWithdrawn, onBondWithdrawn, event.KindBond)

	Handle(r, event.ManagementFeeCollected, onManagementFeeCollected, event.KindFund)
}

type transferParams struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value event.Uint256  `json:"value"`
}

// onTransfer is the mint/burn/transfer state machine.
func onTransfer(c *Context, p transferParams) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	amount := p.Value.Big()
	var v SupplyVolumes

	switch {
	case p.From == zeroAddress && p.To == zeroAddress:
		return Skip(Malformed, "transfer from and to the zero address")
	case p.From == zeroAddress:
		if _, err := c.AdjustBalance(asset, p.To, amount); err != nil {
			return err
		}
		v.Minted = amount
		asset.SetTotalSupply(ApplySupply(asset.TotalSupplyExact, v))
		if err := c.countActivity(asset, ActivityMint, amount); err != nil {
			return err
		}
	case p.To == zeroAddress:
		if _, err := c.AdjustBalance(asset, p.From, new(big.Int).Neg(amount)); err != nil {
			return err
		}
		v.Burned = amount
		asset.SetTotalSupply(ApplySupply(asset.TotalSupplyExact, v))
		if err := c.countActivity(asset, ActivityBurn, amount); err != nil {
			return err
		}
	default:
		if p.From != p.To {
			if _, err := c.AdjustBalance(asset, p.From, new(big.Int).Neg(amount)); err != nil {
				return err
			}
			if _, err := c.AdjustBalance(asset, p.To, amount); err != nil {
				return err
			}
		}
		v.Transferred = amount
		if err := c.countActivity(asset, ActivityTransfer, amount); err != nil {
			return err
		}
	}
	return c.finishAsset(asset, v)
}

type approvalParams struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Value   event.Uint256  `json:"value"`
}

func onApproval(c *Context, p approvalParams) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	bal, ok, err := c.loadBalance(asset.Address, p.Owner)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Debug("approval by holder without balance", zap.String("owner", p.Owner.Hex()))
		return nil
	}
	bal.ApprovedExact = p.Value.Big()
	bal.LastActivity = c.Timestamp()
	return c.Save(bal)
}

type roleParams struct {
	Role    common.Hash    `json:"role"`
	Account common.Address `json:"account"`
	Sender  common.Address `json:"sender"`
}

func onAssetRoleGranted(c *Context, p roleParams) error {
	return changeAssetRole(c, p, Grant)
}

func onAssetRoleRevoked(c *Context, p roleParams) error {
	return changeAssetRole(c, p, Revoke)
}

func changeAssetRole(c *Context, p roleParams, apply func(*entity.AddressSet, common.Address) bool) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	set := assetRoleSet(asset, p.Role)
	if set == nil {
		c.logger.Debug("untracked role", zap.String("role", p.Role.Hex()))
		return nil
	}
	if _, err := c.FetchAccount(p.Account); err != nil {
		return err
	}
	apply(set, p.Account)
	if err := c.countActivity(asset, ActivityRole, nil); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

func setAssetPaused(c *Context, paused bool) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	if asset.Paused == paused {
		c.logger.Debug("pause state unchanged", zap.Bool("paused", paused))
		return nil
	}
	asset.Paused = paused
	if err := c.shiftPausedBalances(asset, paused); err != nil {
		return err
	}
	if err := c.countActivity(asset, ActivityPause, nil); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

type frozenParams struct {
	User   common.Address `json:"user"`
	Amount event.Uint256  `json:"amount"`
}

func onTokensFrozen(c *Context, p frozenParams) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	bal, ok, err := c.loadBalance(asset.Address, p.User)
	if err != nil {
		return err
	}
	if !ok {
		return Skip(NotFound, "no balance of %s to freeze", p.User.Hex())
	}
	amount := p.Amount.Big()
	bal.FrozenExact = amount
	bal.LastActivity = c.Timestamp()
	if err := c.Save(bal); err != nil {
		return err
	}
	if err := c.countActivity(asset, ActivityFrozen, amount); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

type userParams struct {
	User common.Address `json:"user"`
}

// userListHandler maintains the block list (blocklist=true) or the allow list.
// remove undoes the listing.
func userListHandler(blocklist, remove bool) func(*Context, userParams) error {
	return func(c *Context, p userParams) error {
		asset, err := c.requireAsset(c.Emitter())
		if err != nil {
			return err
		}
		if _, err := c.FetchAccount(p.User); err != nil {
			return err
		}
		set := &asset.AllowedUsers
		if blocklist {
			set = &asset.BlockedUsers
		}
		if remove {
			set.Remove(p.User)
		} else {
			set.Add(p.User)
		}

		bal, ok, err := c.loadBalance(asset.Address, p.User)
		if err != nil {
			return err
		}
		if ok {
			// Listing on a blocklist blocks, listing on an allowlist unblocks.
			bal.Blocked = blocklist != remove
			if err := c.Save(bal); err != nil {
				return err
			}
		}
		if err := c.countActivity(asset, ActivityBlocking, nil); err != nil {
			return err
		}
		return c.finishAsset(asset, SupplyVolumes{})
	}
}

type clawbackParams struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount event.Uint256  `json:"amount"`
}

// onClawback only counts. The contract emits a Transfer that moves the tokens.
func onClawback(c *Context, p clawbackParams) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	if err := c.countActivity(asset, ActivityClawback, p.Amount.Big()); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

type collateralParams struct {
	OldAmount event.Uint256 `json:"oldAmount"`
	NewAmount event.Uint256 `json:"newAmount"`
}

func onCollateralUpdated(c *Context, p collateralParams) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	if asset.Collateral == nil {
		asset.Collateral = &entity.CollateralDetails{}
	}
	asset.Collateral.CollateralExact = p.NewAmount.Big()
	asset.Collateral.LastCollateralUpdate = c.Timestamp()
	if err := c.countActivity(asset, ActivityCollateral, nil); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

// bondOf returns the bond details of the emitting asset.
func (c *Context) bondOf() (*entity.Asset, *entity.BondDetails, error) {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return nil, nil, err
	}
	if asset.Bond == nil {
		return nil, nil, Skip(Inconsistent, "asset %s has no bond details", asset.Address.Hex())
	}
	return asset, asset.Bond, nil
}

type bondMaturedParams struct {
	Timestamp event.Uint256 `json:"timestamp"`
}

func onBondMatured(c *Context, p bondMaturedParams) error {
	asset, bond, err := c.bondOf()
	if err != nil {
		return err
	}
	bond.IsMatured = true
	bond.MaturedAt = p.Timestamp.Int64()
	if bond.MaturedAt == 0 {
		bond.MaturedAt = c.Timestamp()
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

type bondRedeemedParams struct {
	Holder           common.Address `json:"holder"`
	BondAmount       event.Uint256  `json:"bondAmount"`
	UnderlyingAmount event.Uint256  `json:"underlyingAmount"`
}

// onBondRedeemed records the redemption totals. The burn arrives as a Transfer.
func onBondRedeemed(c *Context, p bondRedeemedParams) error {
	asset, bond, err := c.bondOf()
	if err != nil {
		return err
	}
	bond.RedeemedAmountExact = entity.AddInt(bond.RedeemedAmountExact, p.BondAmount.Big())
	bond.RedeemedAmount = scale.ToDecimals(bond.RedeemedAmountExact, asset.Decimals)
	if err := c.moveUnderlying(bond, new(big.Int).Neg(p.UnderlyingAmount.Big())); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

type underlyingParams struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount event.Uint256  `json:"amount"`
}

func onBondTopUp(c *Context, p underlyingParams) error {
	asset, bond, err := c.bondOf()
	if err != nil {
		return err
	}
	if err := c.moveUnderlying(bond, p.Amount.Big()); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

func onBondWithdrawn(c *Context, p underlyingParams) error {
	asset, bond, err := c.bondOf()
	if err != nil {
		return err
	}
	if err := c.moveUnderlying(bond, new(big.Int).Neg(p.Amount.Big())); err != nil {
		return err
	}
	return c.finishAsset(asset, SupplyVolumes{})
}

// moveUnderlying applies delta to the bond's underlying reserve, scaled with
// the underlying asset's decimals.
func (c *Context) moveUnderlying(bond *entity.BondDetails, delta *big.Int) error {
	decimals, err := c.decimalsOf(bond.UnderlyingAsset)
	if err != nil {
		return err
	}
	bond.UnderlyingBalanceExact = entity.AddInt(bond.UnderlyingBalanceExact, delta)
	bond.UnderlyingBalance = scale.ToDecimals(bond.UnderlyingBalanceExact, decimals)
	return nil
}

type managementFeeParams struct {
	Amount    event.Uint256 `json:"amount"`
	Timestamp event.Uint256 `json:"timestamp"`
}

func onManagementFeeCollected(c *Context, p managementFeeParams) error {
	asset, err := c.requireAsset(c.Emitter())
	if err != nil {
		return err
	}
	if asset.Fund == nil {
		return Skip(Inconsistent, "asset %s has no fund details", asset.Address.Hex())
	}
	fund := asset.Fund
	fund.TotalFeesCollectedExact = entity.AddInt(fund.TotalFeesCollectedExact, p.Amount.Big())
	fund.TotalFeesCollected = scale.ToDecimals(fund.TotalFeesCollectedExact, asset.Decimals)
	fund.LastFeeCollection = p.Timestamp.Int64()
	if fund.LastFeeCollection == 0 {
		fund.LastFeeCollection = c.Timestamp()
	}
	return c.finishAsset(asset, SupplyVolumes{})
}
