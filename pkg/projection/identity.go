package projection

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
)

// FetchAccount loads the account for addr, creating it on first sight. The
// contract flag is queried once at creation, at the event's block.
func (c *Context) FetchAccount(addr common.Address) (*entity.Account, error) {
	acct, ok, err := load[entity.Account](c, entity.AddressID(addr))
	if err != nil {
		return nil, err
	}
	if ok {
		return acct, nil
	}

	isContract, err := c.engine.chain.IsContract(c.ctx, addr, c.Event.BlockNumber)
	if err != nil {
		c.logger.Warn("contract check failed, assuming externally owned",
			zap.String("address", addr.Hex()), zap.Error(err))
		isContract = false
	}
	acct = entity.NewAccount(addr, isContract, c.Timestamp())
	if err := c.Save(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// markAccount applies fn to the account of addr and saves it.
func (c *Context) markAccount(addr common.Address, fn func(*entity.Account)) error {
	acct, err := c.FetchAccount(addr)
	if err != nil {
		return err
	}
	fn(acct)
	return c.Save(acct)
}

// identityCreatedParams links a wallet to its on-chain identity contract.
type identityCreatedParams struct {
	Identity common.Address `json:"identity"`
	Wallet   common.Address `json:"wallet"`
}

func onIdentityCreated(c *Context, p identityCreatedParams) error {
	if p.Identity == (common.Address{}) || p.Wallet == (common.Address{}) {
		return Skip(Malformed, "identity and wallet must be set")
	}
	if err := c.markAccount(p.Identity, func(a *entity.Account) {
		a.Identity = entity.AddressRef(p.Identity)
	}); err != nil {
		return err
	}
	if err := c.markAccount(p.Wallet, func(a *entity.Account) {
		a.IdentityContract = entity.AddressRef(p.Identity)
	}); err != nil {
		return err
	}
	return c.recordFactoryInstance(c.Emitter())
}
