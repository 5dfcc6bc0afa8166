package projection

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/chain"
	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// AssetKind describes one asset product: which contracts emit its events,
// which factory deploys it and which optional capabilities it has.
type AssetKind struct {
	Type         entity.AssetType
	Contract     event.ContractKind
	Factory      event.ContractKind
	CreatedEvent string
	// Collateral assets track posted reserves against supply.
	Collateral bool
	// Allowlist assets block every holder not explicitly allowed.
	Allowlist bool
	// Seed reads variant-specific metadata when the asset is created.
	Seed func(a *entity.Asset, v *chain.Views)
}

// AssetKinds lists every supported asset product.
var AssetKinds = []AssetKind{
	{
		Type:         entity.AssetBond,
		Contract:     event.KindBond,
		Factory:      event.KindBondFactory,
		CreatedEvent: event.BondCreated,
		Seed:         seedBond,
	},
	{
		Type:         entity.AssetEquity,
		Contract:     event.KindEquity,
		Factory:      event.KindEquityFactory,
		CreatedEvent: event.EquityCreated,
		Seed: func(a *entity.Asset, v *chain.Views) {
			a.Equity = &entity.EquityDetails{
				Class:    v.String("equityClass", ""),
				Category: v.String("equityCategory", ""),
			}
		},
	},
	{
		Type:         entity.AssetFund,
		Contract:     event.KindFund,
		Factory:      event.KindFundFactory,
		CreatedEvent: event.FundCreated,
		Seed: func(a *entity.Asset, v *chain.Views) {
			a.Fund = &entity.FundDetails{
				Class:                   v.String("fundClass", ""),
				Category:                v.String("fundCategory", ""),
				ManagementFeeBps:        v.Uint16("managementFeeBps", 0),
				TotalFeesCollectedExact: new(big.Int),
			}
		},
	},
	{
		Type:         entity.AssetDeposit,
		Contract:     event.KindDeposit,
		Factory:      event.KindDepositFactory,
		CreatedEvent: event.DepositCreated,
		Collateral:   true,
		Allowlist:    true,
	},
	{
		Type:         entity.AssetStableCoin,
		Contract:     event.KindStableCoin,
		Factory:      event.KindStableCoinFactory,
		CreatedEvent: event.StableCoinCreated,
		Collateral:   true,
	},
	{
		Type:         entity.AssetCryptoCurrency,
		Contract:     event.KindCryptoCurrency,
		Factory:      event.KindCryptoCurrencyFactory,
		CreatedEvent: event.CryptoCurrencyCreated,
	},
	{
		Type:         entity.AssetTokenizedDeposit,
		Contract:     event.KindTokenizedDeposit,
		Factory:      event.KindTokenizedDepositFactory,
		CreatedEvent: event.TokenizedDepositCreated,
		Collateral:   true,
		Allowlist:    true,
	},
}

func seedBond(a *entity.Asset, v *chain.Views) {
	maturity := v.Big("maturityDate")
	b := &entity.BondDetails{
		FaceValueExact:         v.Big("faceValue"),
		UnderlyingAsset:        v.Address("underlyingAsset"),
		UnderlyingBalanceExact: new(big.Int),
		RedeemedAmountExact:    new(big.Int),
	}
	if maturity.IsInt64() {
		b.MaturityDate = maturity.Int64()
	}
	a.Bond = b
}

// assetKindFor returns the descriptor for an asset contract kind.
func assetKindFor(contract event.ContractKind) (AssetKind, bool) {
	for _, k := range AssetKinds {
		if k.Contract == contract {
			return k, true
		}
	}
	return AssetKind{}, false
}

func assetKindOfType(t entity.AssetType) (AssetKind, bool) {
	for _, k := range AssetKinds {
		if k.Type == t {
			return k, true
		}
	}
	return AssetKind{}, false
}

func kindAllowlist(t entity.AssetType) bool {
	k, ok := assetKindOfType(t)
	return ok && k.Allowlist
}

// assetContracts returns the contract kinds of every asset product, or only
// those matching keep.
func assetContracts(keep func(AssetKind) bool) []event.ContractKind {
	var out []event.ContractKind
	for _, k := range AssetKinds {
		if keep == nil || keep(k) {
			out = append(out, k.Contract)
		}
	}
	return out
}

// newAsset builds the record of a freshly deployed token, reading its
// metadata from the contract at the creation block.
func newAsset(c *Context, kind AssetKind, token common.Address) *entity.Asset {
	v := c.Views(token)
	a := &entity.Asset{
		ID:               entity.AddressID(token),
		Address:          token,
		Type:             kind.Type,
		Name:             v.String("name", ""),
		Symbol:           v.String("symbol", ""),
		Decimals:         v.Uint8("decimals", scale.DefaultDecimals),
		TotalSupplyExact: new(big.Int),
		CreatedAt:        c.Timestamp(),
	}
	if kind.Seed != nil {
		kind.Seed(a, v)
	}
	if kind.Collateral {
		a.Collateral = &entity.CollateralDetails{
			CollateralExact:     new(big.Int),
			FreeCollateralExact: new(big.Int),
			CollateralRatio:     CollateralRatio(nil, nil),
		}
	}
	return a
}
