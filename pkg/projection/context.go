package projection

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/chain"
	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

// snapshotNamespace seeds the name-based ids of append-only snapshots.
var snapshotNamespace = uuid.MustParse("6f1c3c52-5d55-4a49-9d8e-2be4a3f0b0e1")

type subscription struct {
	addr       common.Address
	kind       event.ContractKind
	startBlock uint64
}

// Context is the state shared by the handlers of one event. Entities loaded
// through it are cached by key, so every handler sees the same instance.
type Context struct {
	ctx    context.Context
	engine *Engine
	uow    *store.UnitOfWork
	cache  map[string]entity.Record
	logger *zap.Logger

	Event event.Event
	Kind  event.ContractKind

	snapshots     int
	subscriptions []subscription
}

func newContext(ctx context.Context, e *Engine, evt event.Event, kind event.ContractKind) *Context {
	return &Context{
		ctx:    ctx,
		engine: e,
		uow:    store.NewUnitOfWork(e.backend),
		cache:  make(map[string]entity.Record),
		logger: e.logger.With(
			zap.String("event", evt.Name),
			zap.String("contract", evt.Address.Hex()),
			zap.String("kind", string(kind)),
			zap.Uint64("block", evt.BlockNumber),
			zap.Uint32("log_index", evt.LogIndex),
		),
		Event: evt,
		Kind:  kind,
	}
}

func (c *Context) Context() context.Context { return c.ctx }
func (c *Context) Logger() *zap.Logger      { return c.logger }

// Timestamp is the block time of the event.
func (c *Context) Timestamp() int64 { return c.Event.BlockTimestamp }

// Emitter is the address that emitted the event.
func (c *Context) Emitter() common.Address { return c.Event.Address }

func cacheKey(kind, id string) string {
	return kind + "\x00" + id
}

// load returns the entity of type T stored under id, reading through the
// event's cache and unit of work.
func load[T any, PT interface {
	*T
	entity.Record
}](c *Context, id string) (PT, bool, error) {
	kind := PT(new(T)).EntityKind()
	key := cacheKey(kind, id)
	if rec, ok := c.cache[key]; ok {
		if rec == nil {
			return nil, false, nil
		}
		return rec.(PT), true, nil
	}
	out, ok, err := store.Load[T, PT](c.ctx, c.uow, id)
	if err != nil {
		return nil, false, err
	}
	if ok {
		c.cache[key] = out
	}
	return out, ok, nil
}

// list returns the entities of type T under prefix, preferring cached
// instances over their stored copies.
func list[T any, PT interface {
	*T
	entity.Record
}](c *Context, prefix string) ([]PT, error) {
	stored, err := store.List[T, PT](c.ctx, c.uow, prefix, 0)
	if err != nil {
		return nil, err
	}
	out := make([]PT, 0, len(stored))
	for _, rec := range stored {
		if cached, ok := c.cache[cacheKey(rec.EntityKind(), rec.EntityID())]; ok {
			if cached == nil {
				continue
			}
			out = append(out, cached.(PT))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Save buffers rec for the event's commit.
func (c *Context) Save(rec entity.Record) error {
	c.cache[cacheKey(rec.EntityKind(), rec.EntityID())] = rec
	return store.Save(c.uow, rec)
}

// Delete buffers the removal of rec.
func (c *Context) Delete(rec entity.Record) {
	c.cache[cacheKey(rec.EntityKind(), rec.EntityID())] = nil
	c.uow.Delete(rec.EntityKind(), rec.EntityID())
}

// Views reads view methods of addr at the event's block.
func (c *Context) Views(addr common.Address) *chain.Views {
	return chain.NewViews(c.ctx, c.engine.chain, addr, c.Event.BlockNumber, c.logger)
}

// SnapshotID returns a deterministic id for the next snapshot of kind
// written by this event.
func (c *Context) SnapshotID(kind string) string {
	c.snapshots++
	name := c.Event.ID() + "/" + kind + "/" + strconv.Itoa(c.snapshots)
	return uuid.NewSHA1(snapshotNamespace, []byte(name)).String()
}

// Subscribe registers addr as a new data source routed to kind. The registry
// entry is written with the event; the runtime subscriber is notified only
// after the event commits.
func (c *Context) Subscribe(addr common.Address, kind event.ContractKind) error {
	factory := c.Emitter()
	ds := &entity.DataSource{
		ID:         entity.AddressID(addr),
		Address:    addr,
		Kind:       string(kind),
		Factory:    &factory,
		StartBlock: c.Event.BlockNumber,
	}
	if err := c.Save(ds); err != nil {
		return err
	}
	c.subscriptions = append(c.subscriptions, subscription{addr: addr, kind: kind, startBlock: c.Event.BlockNumber})
	return nil
}
