package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is an m-of-n multisig wallet.
type Vault struct {
	ID                        string         `json:"id"`
	Address                   common.Address `json:"address"`
	Creator                   common.Address `json:"creator"`
	Required                  int64          `json:"required"`
	Signers                   AddressSet     `json:"signers"`
	Admins                    AddressSet     `json:"admins"`
	Paused                    bool           `json:"paused"`
	BalanceExact              *big.Int       `json:"balanceExact"`
	PendingTransactionsCount  int64          `json:"pendingTransactionsCount"`
	ExecutedTransactionsCount int64          `json:"executedTransactionsCount"`
	TotalSubmittedCount       int64          `json:"totalSubmittedCount"`
	CreatedAt                 int64          `json:"createdAt"`
	LastActivity              int64          `json:"lastActivity"`
}

func (v *Vault) EntityKind() string { return KindVault }
func (v *Vault) EntityID() string   { return v.ID }

// VaultTxKind distinguishes the three submission variants.
type VaultTxKind string

const (
	VaultTxNative       VaultTxKind = "native"
	VaultTxERC20        VaultTxKind = "erc20"
	VaultTxContractCall VaultTxKind = "contract_call"
)

// VaultTransaction is a proposed vault transaction and its approval progress.
type VaultTransaction struct {
	ID                 string          `json:"id"`
	Vault              common.Address  `json:"vault"`
	TxIndex            *big.Int        `json:"txIndex"`
	Kind               VaultTxKind     `json:"kind"`
	Submitter          common.Address  `json:"submitter"`
	To                 common.Address  `json:"to"`
	ValueExact         *big.Int        `json:"valueExact"`
	Data               string          `json:"data,omitempty"`
	Token              *common.Address `json:"token,omitempty"`
	AmountExact        *big.Int        `json:"amountExact,omitempty"`
	Selector           string          `json:"selector,omitempty"`
	Comment            string          `json:"comment,omitempty"`
	ConfirmationsCount int64           `json:"confirmationsCount"`
	Executed           bool            `json:"executed"`
	Executor           *common.Address `json:"executor,omitempty"`
	ExecutedAt         int64           `json:"executedAt,omitempty"`
	SubmittedAt        int64           `json:"submittedAt"`
}

func (t *VaultTransaction) EntityKind() string { return KindVaultTransaction }
func (t *VaultTransaction) EntityID() string   { return t.ID }

// VaultTransactionID is the key of transaction txIndex of a vault.
func VaultTransactionID(vault common.Address, txIndex *big.Int) string {
	return ID(vault.Bytes(), IndexBytes(txIndex))
}

// VaultTransactionConfirmation is one signer's confirmation. A revoked
// confirmation keeps its record with Confirmed=false.
type VaultTransactionConfirmation struct {
	ID          string         `json:"id"`
	Transaction string         `json:"transaction"`
	Signer      common.Address `json:"signer"`
	Confirmed   bool           `json:"confirmed"`
	ConfirmedAt int64          `json:"confirmedAt"`
	RevokedAt   int64          `json:"revokedAt,omitempty"`
}

func (c *VaultTransactionConfirmation) EntityKind() string { return KindVaultConfirmation }
func (c *VaultTransactionConfirmation) EntityID() string   { return c.ID }
