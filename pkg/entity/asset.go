package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// AssetType is the product type of a tokenized asset.
type AssetType string

const (
	AssetBond             AssetType = "bond"
	AssetEquity           AssetType = "equity"
	AssetFund             AssetType = "fund"
	AssetDeposit          AssetType = "deposit"
	AssetStableCoin       AssetType = "stablecoin"
	AssetCryptoCurrency   AssetType = "cryptocurrency"
	AssetTokenizedDeposit AssetType = "tokenizeddeposit"
)

// Asset is a token contract and its running aggregates. Variant details are
// set according to Type.
type Asset struct {
	ID               string          `json:"id"`
	Address          common.Address  `json:"address"`
	Type             AssetType       `json:"type"`
	Name             string          `json:"name"`
	Symbol           string          `json:"symbol"`
	Decimals         uint8           `json:"decimals"`
	TotalSupplyExact *big.Int        `json:"totalSupplyExact"`
	TotalSupply      scale.Decimal   `json:"totalSupply"`
	Paused           bool            `json:"paused"`
	Admins           AddressSet      `json:"admins"`
	SupplyManagers   AddressSet      `json:"supplyManagers"`
	UserManagers     AddressSet      `json:"userManagers"`
	BlockedUsers     AddressSet      `json:"blockedUsers"`
	AllowedUsers     AddressSet      `json:"allowedUsers"`
	HoldersCount     int64           `json:"holdersCount"`
	Concentration    float64         `json:"concentration"`
	Factory          *common.Address `json:"factory,omitempty"`
	Creator          *common.Address `json:"creator,omitempty"`
	CreatedAt        int64           `json:"createdAt"`
	LastActivity     int64           `json:"lastActivity"`

	Bond       *BondDetails       `json:"bond,omitempty"`
	Equity     *EquityDetails     `json:"equity,omitempty"`
	Fund       *FundDetails       `json:"fund,omitempty"`
	Collateral *CollateralDetails `json:"collateral,omitempty"`
}

func (a *Asset) EntityKind() string { return KindAsset }
func (a *Asset) EntityID() string   { return a.ID }

// SetTotalSupply updates the exact and scaled supply together.
func (a *Asset) SetTotalSupply(exact *big.Int) {
	a.TotalSupplyExact = exact
	a.TotalSupply = scale.ToDecimals(exact, a.Decimals)
}

type BondDetails struct {
	MaturityDate           int64           `json:"maturityDate"`
	IsMatured              bool            `json:"isMatured"`
	MaturedAt              int64           `json:"maturedAt,omitempty"`
	FaceValueExact         *big.Int        `json:"faceValueExact"`
	UnderlyingAsset        common.Address  `json:"underlyingAsset"`
	UnderlyingBalanceExact *big.Int        `json:"underlyingBalanceExact"`
	UnderlyingBalance      scale.Decimal   `json:"underlyingBalance"`
	RedeemedAmountExact    *big.Int        `json:"redeemedAmountExact"`
	RedeemedAmount         scale.Decimal   `json:"redeemedAmount"`
	YieldSchedule          *common.Address `json:"yieldSchedule,omitempty"`
}

type EquityDetails struct {
	Class    string `json:"class"`
	Category string `json:"category"`
}

type FundDetails struct {
	Class                   string        `json:"class"`
	Category                string        `json:"category"`
	ManagementFeeBps        uint16        `json:"managementFeeBps"`
	TotalFeesCollectedExact *big.Int      `json:"totalFeesCollectedExact"`
	TotalFeesCollected      scale.Decimal `json:"totalFeesCollected"`
	LastFeeCollection       int64         `json:"lastFeeCollection"`
}

// CollateralDetails tracks reserve backing for deposit-like assets.
// FreeCollateralExact is negative when supply exceeds collateral.
type CollateralDetails struct {
	CollateralExact      *big.Int      `json:"collateralExact"`
	Collateral           scale.Decimal `json:"collateral"`
	FreeCollateralExact  *big.Int      `json:"freeCollateralExact"`
	FreeCollateral       scale.Decimal `json:"freeCollateral"`
	CollateralRatio      float64       `json:"collateralRatio"`
	LastCollateralUpdate int64         `json:"lastCollateralUpdate"`
}

// Balance is a holder's position in one asset. It exists only while
// ValueExact is positive.
type Balance struct {
	ID            string         `json:"id"`
	Asset         common.Address `json:"asset"`
	Holder        common.Address `json:"holder"`
	ValueExact    *big.Int       `json:"valueExact"`
	Value         scale.Decimal  `json:"value"`
	ApprovedExact *big.Int       `json:"approvedExact"`
	FrozenExact   *big.Int       `json:"frozenExact"`
	Blocked       bool           `json:"blocked"`
	LastActivity  int64          `json:"lastActivity"`
}

func (b *Balance) EntityKind() string { return KindBalance }
func (b *Balance) EntityID() string   { return b.ID }

// NewBalance returns an empty balance record.
func NewBalance(asset, holder common.Address, blocked bool) *Balance {
	return &Balance{
		ID:            PairID(asset, holder),
		Asset:         asset,
		Holder:        holder,
		ValueExact:    new(big.Int),
		ApprovedExact: new(big.Int),
		FrozenExact:   new(big.Int),
		Blocked:       blocked,
	}
}

// AssetActivity holds the per-asset event counters and cumulative volumes.
type AssetActivity struct {
	ID                    string         `json:"id"`
	Asset                 common.Address `json:"asset"`
	AssetType             AssetType      `json:"assetType"`
	TransferEventCount    int64          `json:"transferEventCount"`
	MintEventCount        int64          `json:"mintEventCount"`
	BurnEventCount        int64          `json:"burnEventCount"`
	ClawbackEventCount    int64          `json:"clawbackEventCount"`
	FrozenEventCount      int64          `json:"frozenEventCount"`
	BlockingEventCount    int64          `json:"blockingEventCount"`
	PauseEventCount       int64          `json:"pauseEventCount"`
	RoleEventCount        int64          `json:"roleEventCount"`
	CollateralEventCount  int64          `json:"collateralEventCount"`
	TotalMintedExact      *big.Int       `json:"totalMintedExact"`
	TotalBurnedExact      *big.Int       `json:"totalBurnedExact"`
	TotalTransferredExact *big.Int       `json:"totalTransferredExact"`
	TotalClawbackExact    *big.Int       `json:"totalClawbackExact"`
}

func (a *AssetActivity) EntityKind() string { return KindAssetActivity }
func (a *AssetActivity) EntityID() string   { return a.ID }

// NewAssetActivity returns zeroed counters for an asset.
func NewAssetActivity(asset common.Address, t AssetType) *AssetActivity {
	return &AssetActivity{
		ID:                    AddressID(asset),
		Asset:                 asset,
		AssetType:             t,
		TotalMintedExact:      new(big.Int),
		TotalBurnedExact:      new(big.Int),
		TotalTransferredExact: new(big.Int),
		TotalClawbackExact:    new(big.Int),
	}
}
