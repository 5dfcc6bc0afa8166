package projection

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/metrics"
)

var vaultAddr = common.HexToAddress("0x000000000000000000000000000000000000fa17")

func deployVault(t *testing.T, h *harness) {
	t.Helper()
	res := h.emit(vaultFactory, event.VaultCreated, map[string]interface{}{
		"vault":    vaultAddr.Hex(),
		"creator":  carol.Hex(),
		"signers":  []string{alice.Hex(), bob.Hex(), carol.Hex()},
		"required": "2",
	})
	require.Equal(t, metrics.OutcomeApplied, res.Outcome)
}

func (h *harness) vault() *entity.Vault {
	h.t.Helper()
	v, ok := get[entity.Vault](h, entity.AddressID(vaultAddr))
	require.True(h.t, ok)
	return v
}

func TestVaultTransactionLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	deployVault(t, h)
	v := h.vault()
	assert.Equal(t, int64(2), v.Required)
	assert.Equal(t, entity.AddressSet{alice, bob, carol}, v.Signers)
	require.NotNil(t, h.account(vaultAddr).Vault)

	h.emit(vaultAddr, event.Deposit, map[string]interface{}{"sender": carol.Hex(), "value": "100", "balance": "100"})
	assert.Equal(t, "100", h.vault().BalanceExact.String())

	h.emit(vaultAddr, event.SubmitTransaction, map[string]interface{}{
		"signer": alice.Hex(), "txIndex": "0", "to": bob.Hex(), "value": "40", "data": "0x", "comment": "pay bob",
	})
	assert.Equal(t, int64(1), h.vault().PendingTransactionsCount)

	h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": alice.Hex(), "txIndex": "0"})
	h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": bob.Hex(), "txIndex": "0"})

	// A second confirmation by the same signer is ignored.
	res := h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": bob.Hex(), "txIndex": "0"})
	assert.Equal(t, metrics.OutcomeSkipped, res.Outcome)

	h.emit(vaultAddr, event.ExecuteTransaction, map[string]interface{}{"executor": bob.Hex(), "txIndex": "0"})

	tx, ok := get[entity.VaultTransaction](h, entity.VaultTransactionID(vaultAddr, big.NewInt(0)))
	require.True(t, ok)
	assert.Equal(t, int64(2), tx.ConfirmationsCount)
	assert.True(t, tx.Executed)
	require.NotNil(t, tx.Executor)
	assert.Equal(t, bob, *tx.Executor)
	assert.Equal(t, "pay bob", tx.Comment)

	v = h.vault()
	assert.Equal(t, int64(0), v.PendingTransactionsCount)
	assert.Equal(t, int64(1), v.ExecutedTransactionsCount)
	assert.Equal(t, "60", v.BalanceExact.String())
	assert.Equal(t, "60", h.account(vaultAddr).NativeBalanceExact.String())

	// Executing again does not move the counters.
	res = h.emit(vaultAddr, event.ExecuteTransaction, map[string]interface{}{"executor": bob.Hex(), "txIndex": "0"})
	assert.Equal(t, metrics.OutcomeSkipped, res.Outcome)
	assert.Equal(t, int64(1), h.vault().ExecutedTransactionsCount)
}

func TestVaultConfirmationRevocation(t *testing.T) {
	h := newHarness(t, nil)
	deployVault(t, h)
	token := common.HexToAddress("0x0000000000000000000000000000000000000e20")
	h.emit(vaultAddr, event.SubmitERC20TransferTransaction, map[string]interface{}{
		"signer": alice.Hex(), "txIndex": "1", "token": token.Hex(), "to": bob.Hex(), "amount": "7", "comment": "",
	})
	txID := entity.VaultTransactionID(vaultAddr, big.NewInt(1))

	res := h.emit(vaultAddr, event.RevokeConfirmation, map[string]interface{}{"signer": alice.Hex(), "txIndex": "1"})
	require.NotNil(t, res.Skip)
	assert.Equal(t, NotFound, res.Skip.Category)

	h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": alice.Hex(), "txIndex": "1"})
	h.emit(vaultAddr, event.RevokeConfirmation, map[string]interface{}{"signer": alice.Hex(), "txIndex": "1"})
	tx, _ := get[entity.VaultTransaction](h, txID)
	assert.Equal(t, int64(0), tx.ConfirmationsCount)
	conf, ok := get[entity.VaultTransactionConfirmation](h, confirmationID(vaultAddr, tx.TxIndex, alice))
	require.True(t, ok)
	assert.False(t, conf.Confirmed)

	// A revoked confirmation can be given again.
	h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": alice.Hex(), "txIndex": "1"})
	tx, _ = get[entity.VaultTransaction](h, txID)
	assert.Equal(t, int64(1), tx.ConfirmationsCount)
	assert.Equal(t, entity.VaultTxERC20, tx.Kind)

	// ERC20 executions leave the native balance alone.
	h.emit(vaultAddr, event.ExecuteTransaction, map[string]interface{}{"executor": alice.Hex(), "txIndex": "1"})
	assert.Equal(t, "0", h.vault().BalanceExact.String())
}

func TestVaultEdgeCases(t *testing.T) {
	h := newHarness(t, nil)
	deployVault(t, h)

	res := h.emit(vaultAddr, event.ExecuteTransaction, map[string]interface{}{"executor": alice.Hex(), "txIndex": "9"})
	require.NotNil(t, res.Skip)
	assert.Equal(t, NotFound, res.Skip.Category)
	assert.Equal(t, int64(0), h.vault().ExecutedTransactionsCount)

	submit := map[string]interface{}{
		"signer": alice.Hex(), "txIndex": "2", "target": bob.Hex(), "value": "0",
		"selector": "0xa9059cbb", "abiEncodedArguments": "0x00", "comment": "call",
	}
	h.emit(vaultAddr, event.SubmitContractCallTransaction, submit)
	res = h.emit(vaultAddr, event.SubmitContractCallTransaction, submit)
	assert.Equal(t, metrics.OutcomeSkipped, res.Outcome)
	assert.Equal(t, int64(1), h.vault().PendingTransactionsCount)

	h.emit(vaultAddr, event.RequirementChanged, map[string]interface{}{"required": "3"})
	assert.Equal(t, int64(3), h.vault().Required)

	h.emit(vaultAddr, event.RoleRevoked, map[string]interface{}{
		"role": event.SignerRole.Hex(), "account": carol.Hex(), "sender": alice.Hex(),
	})
	assert.Equal(t, entity.AddressSet{alice, bob}, h.vault().Signers)

	h.emit(vaultAddr, event.Paused, map[string]interface{}{"account": alice.Hex()})
	assert.True(t, h.vault().Paused)
}

func TestVaultExecutedTransactionIsFinal(t *testing.T) {
	h := newHarness(t, nil)
	deployVault(t, h)
	h.emit(vaultAddr, event.SubmitTransaction, map[string]interface{}{
		"signer": alice.Hex(), "txIndex": "0", "to": bob.Hex(), "value": "0", "data": "0x", "comment": "",
	})
	h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": alice.Hex(), "txIndex": "0"})
	h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": bob.Hex(), "txIndex": "0"})
	h.emit(vaultAddr, event.ExecuteTransaction, map[string]interface{}{"executor": bob.Hex(), "txIndex": "0"})

	res := h.emit(vaultAddr, event.RevokeConfirmation, map[string]interface{}{"signer": alice.Hex(), "txIndex": "0"})
	require.NotNil(t, res.Skip)
	assert.Equal(t, Malformed, res.Skip.Category)
	res = h.emit(vaultAddr, event.ConfirmTransaction, map[string]interface{}{"signer": carol.Hex(), "txIndex": "0"})
	require.NotNil(t, res.Skip)
	assert.Equal(t, Malformed, res.Skip.Category)

	tx, ok := get[entity.VaultTransaction](h, entity.VaultTransactionID(vaultAddr, big.NewInt(0)))
	require.True(t, ok)
	assert.True(t, tx.Executed)
	assert.Equal(t, int64(2), tx.ConfirmationsCount)
	conf, ok := get[entity.VaultTransactionConfirmation](h, confirmationID(vaultAddr, tx.TxIndex, alice))
	require.True(t, ok)
	assert.True(t, conf.Confirmed)
	_, ok = get[entity.VaultTransactionConfirmation](h, confirmationID(vaultAddr, tx.TxIndex, carol))
	assert.False(t, ok)
}
