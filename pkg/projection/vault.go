package projection

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

func registerVaults(r *Router) {
	Handle(r, event.VaultCreated, onVaultCreated, event.KindVaultFactory)

	Handle(r, event.SubmitTransaction, onSubmitTransaction, event.KindVault)
	Handle(r, event.SubmitERC20TransferTransaction, onSubmitERC20Transfer, event.KindVault)
	Handle(r, event.SubmitContractCallTransaction, onSubmitContractCall, event.KindVault)
	Handle(r, event.ConfirmTransaction, onConfirmTransaction, event.KindVault)
	Handle(r, event.RevokeConfirmation, onRevokeConfirmation, event.KindVault)
	Handle(r, event.ExecuteTransaction, onExecuteTransaction, event.KindVault)
	Handle(r, event.Deposit, onVaultDeposit, event.KindVault)
	Handle(r, event.RequirementChanged, onRequirementChanged, event.KindVault)
	Handle(r, event.RoleGranted, func(c *Context, p roleParams) error {
		return changeVaultRole(c, p, Grant)
	}, event.KindVault)
	Handle(r, event.RoleRevoked, func(c *Context, p roleParams) error {
		return changeVaultRole(c, p, Revoke)
	}, event.KindVault)
	HandleRaw(r, event.Paused, func(c *Context) error { return setVaultPaused(c, true) }, event.KindVault)
	HandleRaw(r, event.Unpaused, func(c *Context) error { return setVaultPaused(c, false) }, event.KindVault)
}

type vaultCreatedParams struct {
	Vault    common.Address   `json:"vault"`
	Creator  common.Address   `json:"creator"`
	Signers  []common.Address `json:"signers"`
	Required event.Uint256    `json:"required"`
}

func onVaultCreated(c *Context, p vaultCreatedParams) error {
	if p.Vault == zeroAddress {
		return Skip(Malformed, "vault creation without address")
	}
	if _, exists, err := load[entity.Vault](c, entity.AddressID(p.Vault)); err != nil {
		return err
	} else if exists {
		return Skip(Malformed, "vault %s is already indexed", p.Vault.Hex())
	}
	v := &entity.Vault{
		ID:           entity.AddressID(p.Vault),
		Address:      p.Vault,
		Creator:      p.Creator,
		Required:     p.Required.Int64(),
		BalanceExact: new(big.Int),
		CreatedAt:    c.Timestamp(),
		LastActivity: c.Timestamp(),
	}
	for _, s := range p.Signers {
		if _, err := c.FetchAccount(s); err != nil {
			return err
		}
		v.Signers.Add(s)
	}
	if err := c.Save(v); err != nil {
		return err
	}
	if err := c.markAccount(p.Vault, func(a *entity.Account) {
		a.Vault = entity.AddressRef(p.Vault)
	}); err != nil {
		return err
	}
	if p.Creator != zeroAddress {
		if _, err := c.FetchAccount(p.Creator); err != nil {
			return err
		}
	}
	if err := c.recordFactoryInstance(p.Vault); err != nil {
		return err
	}
	return c.Subscribe(p.Vault, event.KindVault)
}

func (c *Context) requireVault() (*entity.Vault, error) {
	v, ok, err := load[entity.Vault](c, entity.AddressID(c.Emitter()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(MissingReference, "vault %s is not indexed", c.Emitter().Hex())
	}
	return v, nil
}

func (c *Context) saveVault(v *entity.Vault) error {
	v.LastActivity = c.Timestamp()
	return c.Save(v)
}

// submit registers a new proposed transaction.
func (c *Context) submit(tx *entity.VaultTransaction) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	tx.ID = entity.VaultTransactionID(v.Address, tx.TxIndex)
	tx.Vault = v.Address
	tx.SubmittedAt = c.Timestamp()
	if _, exists, err := load[entity.VaultTransaction](c, tx.ID); err != nil {
		return err
	} else if exists {
		return Skip(Malformed, "vault transaction %s is already submitted", tx.TxIndex)
	}
	if _, err := c.FetchAccount(tx.Submitter); err != nil {
		return err
	}
	if err := c.Save(tx); err != nil {
		return err
	}
	v.PendingTransactionsCount++
	v.TotalSubmittedCount++
	return c.saveVault(v)
}

type submitParams struct {
	Signer  common.Address `json:"signer"`
	TxIndex event.Uint256  `json:"txIndex"`
	To      common.Address `json:"to"`
	Value   event.Uint256  `json:"value"`
	Data    string         `json:"data"`
	Comment string         `json:"comment"`
}

func onSubmitTransaction(c *Context, p submitParams) error {
	return c.submit(&entity.VaultTransaction{
		TxIndex:    p.TxIndex.Big(),
		Kind:       entity.VaultTxNative,
		Submitter:  p.Signer,
		To:         p.To,
		ValueExact: p.Value.Big(),
		Data:       p.Data,
		Comment:    p.Comment,
	})
}

type submitERC20Params struct {
	Signer  common.Address `json:"signer"`
	TxIndex event.Uint256  `json:"txIndex"`
	Token   common.Address `json:"token"`
	To      common.Address `json:"to"`
	Amount  event.Uint256  `json:"amount"`
	Comment string         `json:"comment"`
}

func onSubmitERC20Transfer(c *Context, p submitERC20Params) error {
	return c.submit(&entity.VaultTransaction{
		TxIndex:     p.TxIndex.Big(),
		Kind:        entity.VaultTxERC20,
		Submitter:   p.Signer,
		To:          p.To,
		ValueExact:  new(big.Int),
		Token:       entity.AddressRef(p.Token),
		AmountExact: p.Amount.Big(),
		Comment:     p.Comment,
	})
}

type submitContractCallParams struct {
	Signer    common.Address `json:"signer"`
	TxIndex   event.Uint256  `json:"txIndex"`
	Target    common.Address `json:"target"`
	Value     event.Uint256  `json:"value"`
	Selector  string         `json:"selector"`
	Arguments string         `json:"abiEncodedArguments"`
	Comment   string         `json:"comment"`
}

func onSubmitContractCall(c *Context, p submitContractCallParams) error {
	return c.submit(&entity.VaultTransaction{
		TxIndex:    p.TxIndex.Big(),
		Kind:       entity.VaultTxContractCall,
		Submitter:  p.Signer,
		To:         p.Target,
		ValueExact: p.Value.Big(),
		Selector:   p.Selector,
		Data:       p.Arguments,
		Comment:    p.Comment,
	})
}

type confirmationParams struct {
	Signer  common.Address `json:"signer"`
	TxIndex event.Uint256  `json:"txIndex"`
}

func confirmationID(vault common.Address, txIndex *big.Int, signer common.Address) string {
	return entity.ID(vault.Bytes(), entity.IndexBytes(txIndex), signer.Bytes())
}

func (c *Context) requireVaultTransaction(v *entity.Vault, txIndex *big.Int) (*entity.VaultTransaction, error) {
	tx, ok, err := load[entity.VaultTransaction](c, entity.VaultTransactionID(v.Address, txIndex))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Skip(NotFound, "vault transaction %s of %s", txIndex, v.Address.Hex())
	}
	return tx, nil
}

func (c *Context) requireOpenVaultTransaction(v *entity.Vault, txIndex *big.Int) (*entity.VaultTransaction, error) {
	tx, err := c.requireVaultTransaction(v, txIndex)
	if err != nil {
		return nil, err
	}
	if tx.Executed {
		return nil, Skip(Malformed, "vault transaction %s is already executed", tx.TxIndex)
	}
	return tx, nil
}

// onConfirmTransaction creates or reactivates a signer's confirmation.
func onConfirmTransaction(c *Context, p confirmationParams) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	tx, err := c.requireOpenVaultTransaction(v, p.TxIndex.Big())
	if err != nil {
		return err
	}
	id := confirmationID(v.Address, tx.TxIndex, p.Signer)
	conf, ok, err := load[entity.VaultTransactionConfirmation](c, id)
	if err != nil {
		return err
	}
	if ok && conf.Confirmed {
		return Skip(Malformed, "signer %s already confirmed transaction %s", p.Signer.Hex(), tx.TxIndex)
	}
	if !ok {
		if _, err := c.FetchAccount(p.Signer); err != nil {
			return err
		}
		conf = &entity.VaultTransactionConfirmation{ID: id, Transaction: tx.ID, Signer: p.Signer}
	}
	conf.Confirmed = true
	conf.ConfirmedAt = c.Timestamp()
	conf.RevokedAt = 0
	if err := c.Save(conf); err != nil {
		return err
	}
	tx.ConfirmationsCount++
	if err := c.Save(tx); err != nil {
		return err
	}
	return c.saveVault(v)
}

func onRevokeConfirmation(c *Context, p confirmationParams) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	tx, err := c.requireOpenVaultTransaction(v, p.TxIndex.Big())
	if err != nil {
		return err
	}
	conf, ok, err := load[entity.VaultTransactionConfirmation](c, confirmationID(v.Address, tx.TxIndex, p.Signer))
	if err != nil {
		return err
	}
	if !ok || !conf.Confirmed {
		return Skip(NotFound, "no active confirmation of transaction %s by %s", tx.TxIndex, p.Signer.Hex())
	}
	conf.Confirmed = false
	conf.RevokedAt = c.Timestamp()
	if err := c.Save(conf); err != nil {
		return err
	}
	tx.ConfirmationsCount--
	if err := c.Save(tx); err != nil {
		return err
	}
	return c.saveVault(v)
}

type executeParams struct {
	Executor common.Address `json:"executor"`
	TxIndex  event.Uint256  `json:"txIndex"`
}

func onExecuteTransaction(c *Context, p executeParams) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	tx, err := c.requireVaultTransaction(v, p.TxIndex.Big())
	if err != nil {
		return err
	}
	if tx.Executed {
		return Skip(Malformed, "vault transaction %s is already executed", tx.TxIndex)
	}
	if _, err := c.FetchAccount(p.Executor); err != nil {
		return err
	}
	tx.Executed = true
	tx.Executor = entity.AddressRef(p.Executor)
	tx.ExecutedAt = c.Timestamp()
	if err := c.Save(tx); err != nil {
		return err
	}

	v.PendingTransactionsCount--
	v.ExecutedTransactionsCount++
	if tx.Kind != entity.VaultTxERC20 && tx.ValueExact != nil && tx.ValueExact.Sign() > 0 {
		v.BalanceExact = entity.SubInt(v.BalanceExact, tx.ValueExact)
		if v.BalanceExact.Sign() < 0 {
			c.logger.Warn("vault native balance below zero", zap.String("balance", v.BalanceExact.String()))
		}
		if err := c.markAccount(v.Address, func(a *entity.Account) {
			a.NativeBalanceExact = new(big.Int).Set(v.BalanceExact)
		}); err != nil {
			return err
		}
	}
	return c.saveVault(v)
}

type depositParams struct {
	Sender  common.Address `json:"sender"`
	Value   event.Uint256  `json:"value"`
	Balance event.Uint256  `json:"balance"`
}

// onVaultDeposit takes the balance reported by the vault as authoritative.
func onVaultDeposit(c *Context, p depositParams) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	v.BalanceExact = p.Balance.Big()
	if err := c.markAccount(v.Address, func(a *entity.Account) {
		a.NativeBalanceExact = p.Balance.Big()
	}); err != nil {
		return err
	}
	return c.saveVault(v)
}

type requirementParams struct {
	Required event.Uint256 `json:"required"`
}

func onRequirementChanged(c *Context, p requirementParams) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	v.Required = p.Required.Int64()
	return c.saveVault(v)
}

func changeVaultRole(c *Context, p roleParams, apply func(*entity.AddressSet, common.Address) bool) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	set := vaultRoleSet(v, p.Role)
	if set == nil {
		c.logger.Debug("untracked role", zap.String("role", p.Role.Hex()))
		return nil
	}
	if _, err := c.FetchAccount(p.Account); err != nil {
		return err
	}
	apply(set, p.Account)
	return c.saveVault(v)
}

func setVaultPaused(c *Context, paused bool) error {
	v, err := c.requireVault()
	if err != nil {
		return err
	}
	if v.Paused == paused {
		return nil
	}
	v.Paused = paused
	return c.saveVault(v)
}
