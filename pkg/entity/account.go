package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/scale"
)

// Entity kinds. They are also the storage namespaces.
const (
	KindAccount               = "account"
	KindAsset                 = "asset"
	KindBalance               = "balance"
	KindAssetActivity         = "asset_activity"
	KindFactory               = "factory"
	KindDataSource            = "data_source"
	KindFixedYieldSchedule    = "fixed_yield_schedule"
	KindYieldPeriod           = "yield_period"
	KindAirdrop               = "airdrop"
	KindAirdropRecipient      = "airdrop_recipient"
	KindAirdropClaimIndex     = "airdrop_claim_index"
	KindLinearVestingStrategy = "linear_vesting_strategy"
	KindUserVestingData       = "user_vesting_data"
	KindVault                 = "vault"
	KindVaultTransaction      = "vault_transaction"
	KindVaultConfirmation     = "vault_transaction_confirmation"
	KindXvPSettlement         = "xvp_settlement"
	KindXvPFlow               = "xvp_flow"
	KindXvPApproval           = "xvp_approval"
	KindAction                = "action"
	KindAssetStatsData        = "asset_stats_data"
	KindPortfolioStatsData    = "portfolio_stats_data"
	KindAssetActivityData     = "asset_activity_data"
	KindAirdropStatsData      = "airdrop_stats_data"
	KindVestingStatsData      = "vesting_stats_data"
	KindActivityLogEntry      = "activity_log_entry"
	KindProcessedEvent        = "processed_event"
)

// Kinds lists every entity kind.
var Kinds = []string{
	KindAccount, KindAsset, KindBalance, KindAssetActivity, KindFactory, KindDataSource,
	KindFixedYieldSchedule, KindYieldPeriod, KindAirdrop, KindAirdropRecipient, KindAirdropClaimIndex,
	KindLinearVestingStrategy, KindUserVestingData, KindVault, KindVaultTransaction, KindVaultConfirmation,
	KindXvPSettlement, KindXvPFlow, KindXvPApproval, KindAction, KindAssetStatsData, KindPortfolioStatsData,
	KindAssetActivityData, KindAirdropStatsData, KindVestingStatsData, KindActivityLogEntry, KindProcessedEvent,
}

// IsKind reports whether kind names an entity kind.
func IsKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Account is any address seen by the indexer. Accounts are never deleted.
type Account struct {
	ID                  string          `json:"id"`
	Address             common.Address  `json:"address"`
	IsContract          bool            `json:"isContract"`
	Asset               *common.Address `json:"asset,omitempty"`
	Factory             *common.Address `json:"factory,omitempty"`
	Vault               *common.Address `json:"vault,omitempty"`
	Identity            *common.Address `json:"identity,omitempty"`
	Airdrop             *common.Address `json:"airdrop,omitempty"`
	Settlement          *common.Address `json:"settlement,omitempty"`
	IdentityContract    *common.Address `json:"identityContract,omitempty"`
	TotalBalance        scale.Decimal   `json:"totalBalance"`
	PausedBalance       scale.Decimal   `json:"pausedBalance"`
	BalancesCount       int64           `json:"balancesCount"`
	ActivityEventsCount int64           `json:"activityEventsCount"`
	NativeBalanceExact  *big.Int        `json:"nativeBalanceExact"`
	CreatedAt           int64           `json:"createdAt"`
}

func (a *Account) EntityKind() string { return KindAccount }
func (a *Account) EntityID() string   { return a.ID }

// NewAccount returns an account with zeroed running totals.
func NewAccount(addr common.Address, isContract bool, createdAt int64) *Account {
	return &Account{
		ID:                 AddressID(addr),
		Address:            addr,
		IsContract:         isContract,
		NativeBalanceExact: new(big.Int),
		CreatedAt:          createdAt,
	}
}

// AddressRef returns a pointer to a copy of a, for optional references.
func AddressRef(a common.Address) *common.Address {
	return &a
}
