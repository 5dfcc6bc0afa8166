package projection

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

func registerFactories(r *Router) {
	for _, kind := range AssetKinds {
		Handle(r, kind.CreatedEvent, assetCreator(kind), kind.Factory)
	}
	Handle(r, event.IdentityCreated, onIdentityCreated, event.KindIdentityFactory)
}

// recordFactoryInstance counts a new instance of the emitting factory and
// points the instance's account back at it.
func (c *Context) recordFactoryInstance(instance common.Address) error {
	emitter := c.Emitter()
	f, ok, err := load[entity.Factory](c, entity.AddressID(emitter))
	if err != nil {
		return err
	}
	if !ok {
		f = &entity.Factory{
			ID:          entity.AddressID(emitter),
			Address:     emitter,
			Kind:        string(c.Kind),
			FirstSeenAt: c.Timestamp(),
		}
	}
	f.InstancesCount++
	f.LastCreatedAt = c.Timestamp()
	if err := c.Save(f); err != nil {
		return err
	}
	return c.markAccount(instance, func(a *entity.Account) {
		a.Factory = entity.AddressRef(emitter)
	})
}

type assetCreatedParams struct {
	Token   common.Address `json:"token"`
	Creator common.Address `json:"creator"`
}

// assetCreator returns the handler of kind's factory creation event.
func assetCreator(kind AssetKind) func(*Context, assetCreatedParams) error {
	return func(c *Context, p assetCreatedParams) error {
		if p.Token == zeroAddress {
			return Skip(Malformed, "%s without token address", kind.CreatedEvent)
		}
		if _, exists, err := load[entity.Asset](c, entity.AddressID(p.Token)); err != nil {
			return err
		} else if exists {
			return Skip(Malformed, "asset %s is already indexed", p.Token.Hex())
		}

		asset := newAsset(c, kind, p.Token)
		asset.Factory = entity.AddressRef(c.Emitter())
		if p.Creator != zeroAddress {
			asset.Creator = entity.AddressRef(p.Creator)
			if _, err := c.FetchAccount(p.Creator); err != nil {
				return err
			}
		}
		if err := c.markAccount(p.Token, func(a *entity.Account) {
			a.Asset = entity.AddressRef(p.Token)
		}); err != nil {
			return err
		}
		if err := c.recordFactoryInstance(p.Token); err != nil {
			return err
		}
		if err := c.Save(entity.NewAssetActivity(p.Token, kind.Type)); err != nil {
			return err
		}
		if err := c.Subscribe(p.Token, kind.Contract); err != nil {
			return err
		}
		return c.finishAsset(asset, SupplyVolumes{})
	}
}
