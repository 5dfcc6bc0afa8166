package event

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContractKind identifies which handler set applies to an emitting address.
type ContractKind string

const (
	KindBond             ContractKind = "bond"
	KindEquity           ContractKind = "equity"
	KindFund             ContractKind = "fund"
	KindDeposit          ContractKind = "deposit"
	KindStableCoin       ContractKind = "stablecoin"
	KindCryptoCurrency   ContractKind = "cryptocurrency"
	KindTokenizedDeposit ContractKind = "tokenized_deposit"

	KindBondFactory             ContractKind = "bond_factory"
	KindEquityFactory           ContractKind = "equity_factory"
	KindFundFactory             ContractKind = "fund_factory"
	KindDepositFactory          ContractKind = "deposit_factory"
	KindStableCoinFactory       ContractKind = "stablecoin_factory"
	KindCryptoCurrencyFactory   ContractKind = "cryptocurrency_factory"
	KindTokenizedDepositFactory ContractKind = "tokenized_deposit_factory"

	KindFixedYieldFactory ContractKind = "fixed_yield_factory"
	KindFixedYield        ContractKind = "fixed_yield"
	KindVaultFactory      ContractKind = "vault_factory"
	KindVault             ContractKind = "vault"
	KindXvPFactory        ContractKind = "xvp_factory"
	KindXvPSettlement     ContractKind = "xvp_settlement"
	KindAirdropFactory    ContractKind = "airdrop_factory"
	KindStandardAirdrop   ContractKind = "standard_airdrop"
	KindPushAirdrop       ContractKind = "push_airdrop"
	KindVestingAirdrop    ContractKind = "vesting_airdrop"
	KindIdentityFactory   ContractKind = "identity_factory"
)

var kinds = map[ContractKind]bool{
	KindBond: true, KindEquity: true, KindFund: true, KindDeposit: true, KindStableCoin: true,
	KindCryptoCurrency: true, KindTokenizedDeposit: true,
	KindBondFactory: true, KindEquityFactory: true, KindFundFactory: true, KindDepositFactory: true,
	KindStableCoinFactory: true, KindCryptoCurrencyFactory: true, KindTokenizedDepositFactory: true,
	KindFixedYieldFactory: true, KindFixedYield: true, KindVaultFactory: true, KindVault: true,
	KindXvPFactory: true, KindXvPSettlement: true, KindAirdropFactory: true,
	KindStandardAirdrop: true, KindPushAirdrop: true, KindVestingAirdrop: true,
	KindIdentityFactory: true,
}

// IsValid reports whether k is a known contract kind.
func (k ContractKind) IsValid() bool {
	return kinds[k]
}

// KnownKinds returns every contract kind name, sorted.
func KnownKinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// IsAirdrop reports whether k is one of the airdrop contract kinds.
func (k ContractKind) IsAirdrop() bool {
	return k == KindStandardAirdrop || k == KindPushAirdrop || k == KindVestingAirdrop
}

// Role identifiers as computed by the access-control contracts.
var (
	DefaultAdminRole     = common.Hash{}
	SupplyManagementRole = crypto.Keccak256Hash([]byte("SUPPLY_MANAGEMENT_ROLE"))
	UserManagementRole   = crypto.Keccak256Hash([]byte("USER_MANAGEMENT_ROLE"))
	SignerRole           = crypto.Keccak256Hash([]byte("SIGNER_ROLE"))
)

// Event names.
const (
	Transfer       = "Transfer"
	Approval       = "Approval"
	RoleGranted    = "RoleGranted"
	RoleRevoked    = "RoleRevoked"
	Paused         = "Paused"
	Unpaused       = "Unpaused"
	TokensFrozen   = "TokensFrozen"
	UserBlocked    = "UserBlocked"
	UserUnblocked  = "UserUnblocked"
	UserAllowed    = "UserAllowed"
	UserDisallowed = "UserDisallowed"
	Clawback       = "Clawback"

	CollateralUpdated = "CollateralUpdated"

	BondMatured              = "BondMatured"
	BondRedeemed             = "BondRedeemed"
	UnderlyingAssetTopUp     = "UnderlyingAssetTopUp"
	UnderlyingAssetWithdrawn = "UnderlyingAssetWithdrawn"

	ManagementFeeCollected = "ManagementFeeCollected"

	BondCreated             = "BondCreated"
	EquityCreated           = "EquityCreated"
	FundCreated             = "FundCreated"
	DepositCreated          = "DepositCreated"
	StableCoinCreated       = "StableCoinCreated"
	CryptoCurrencyCreated   = "CryptoCurrencyCreated"
	TokenizedDepositCreated = "TokenizedDepositCreated"

	FixedYieldCreated = "FixedYieldCreated"
	YieldClaimed      = "YieldClaimed"

	VaultCreated                   = "VaultCreated"
	SubmitTransaction              = "SubmitTransaction"
	SubmitERC20TransferTransaction = "SubmitERC20TransferTransaction"
	SubmitContractCallTransaction  = "SubmitContractCallTransaction"
	ConfirmTransaction             = "ConfirmTransaction"
	RevokeConfirmation             = "RevokeConfirmation"
	ExecuteTransaction             = "ExecuteTransaction"
	Deposit                        = "Deposit"
	RequirementChanged             = "RequirementChanged"

	XvPSettlementCreated         = "XvPSettlementCreated"
	XvPSettlementApproved        = "XvPSettlementApproved"
	XvPSettlementApprovalRevoked = "XvPSettlementApprovalRevoked"
	XvPSettlementClaimed         = "XvPSettlementClaimed"
	XvPSettlementCancelled       = "XvPSettlementCancelled"

	StandardAirdropDeployed = "StandardAirdropDeployed"
	PushAirdropDeployed     = "PushAirdropDeployed"
	VestingAirdropDeployed  = "VestingAirdropDeployed"
	Claimed                 = "Claimed"
	BatchClaimed            = "BatchClaimed"
	TokensWithdrawn         = "TokensWithdrawn"
	TokensDistributed       = "TokensDistributed"
	BatchDistributed        = "BatchDistributed"
	VestingInitialized      = "VestingInitialized"

	IdentityCreated = "IdentityCreated"
)
