// Package projection applies decoded contract events to the entity graph.
//
// Events are applied strictly in stream order. Each event runs against its own
// unit of work and is committed atomically together with its activity log
// entry and an idempotence marker, so replaying an event is a no-op and a
// skipped event never leaves partial writes behind.
package projection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/chain"
	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/manifest"
	"github.com/withObsrvr/asset-graph-indexer/pkg/metrics"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

// Subscriber is told about data sources created by factory events.
type Subscriber interface {
	Subscribe(ctx context.Context, addr common.Address, kind event.ContractKind, startBlock uint64) error
}

// StaticSource is a data source known before indexing starts.
type StaticSource struct {
	Address    common.Address
	Kind       event.ContractKind
	StartBlock uint64
}

// Options configures an Engine.
type Options struct {
	Backend    store.Backend
	Chain      chain.Reader
	Manifests  manifest.Fetcher
	Subscriber Subscriber
	Logger     *zap.Logger
	Sources    []StaticSource
}

// Result describes what applying one event did.
type Result struct {
	EventID  string
	Outcome  string
	Position event.Position
	Changes  []store.Change
	Skip     *SkipError
}

// Engine is the projection engine. Apply must not be called concurrently.
type Engine struct {
	backend    store.Backend
	chain      chain.Reader
	manifests  manifest.Fetcher
	subscriber Subscriber
	logger     *zap.Logger
	router     *Router
	sources    []StaticSource

	mu       sync.RWMutex
	position event.Position
	applied  uint64
	skipped  uint64
}

// New builds an engine with every handler registered.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("projection engine requires a store backend")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Chain == nil {
		opts.Chain = chain.NewStaticReader()
	}
	e := &Engine{
		backend:    opts.Backend,
		chain:      opts.Chain,
		manifests:  opts.Manifests,
		subscriber: opts.Subscriber,
		logger:     opts.Logger,
		router:     NewRouter(),
		sources:    opts.Sources,
	}
	registerAssets(e.router)
	registerFactories(e.router)
	registerYield(e.router)
	registerAirdrops(e.router)
	registerVaults(e.router)
	registerXvP(e.router)
	return e, nil
}

// Router exposes the handler table.
func (e *Engine) Router() *Router { return e.router }

// Backend returns the store the engine writes to.
func (e *Engine) Backend() store.Backend { return e.backend }

// SetSubscriber replaces the runtime subscriber.
func (e *Engine) SetSubscriber(s Subscriber) { e.subscriber = s }

// Init writes the configured static data sources that are not registered yet
// and hands every known data source to the subscriber.
func (e *Engine) Init(ctx context.Context) error {
	u := store.NewUnitOfWork(e.backend)
	for _, src := range e.sources {
		if !src.Kind.IsValid() {
			return fmt.Errorf("unknown contract kind %q for %s", src.Kind, src.Address.Hex())
		}
		id := entity.AddressID(src.Address)
		_, ok, err := store.Load[entity.DataSource](ctx, u, id)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := store.Save(u, &entity.DataSource{
			ID:         id,
			Address:    src.Address,
			Kind:       string(src.Kind),
			StartBlock: src.StartBlock,
			Static:     true,
		}); err != nil {
			return err
		}
	}
	if u.Len() > 0 {
		if err := e.backend.Commit(ctx, u.Changes()); err != nil {
			return fmt.Errorf("failed to register static data sources: %w", err)
		}
		e.logger.Info("registered static data sources", zap.Int("count", u.Len()))
	}

	if e.subscriber == nil {
		return nil
	}
	sources, err := store.List[entity.DataSource](ctx, e.backend, "", 0)
	if err != nil {
		return err
	}
	for _, ds := range sources {
		if err := e.subscriber.Subscribe(ctx, ds.Address, event.ContractKind(ds.Kind), ds.StartBlock); err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", ds.Address.Hex(), err)
		}
	}
	return nil
}

// Apply projects one event. Only store failures are returned as errors;
// every event-level problem is logged and recorded as a skip.
func (e *Engine) Apply(ctx context.Context, evt event.Event) (*Result, error) {
	started := time.Now()
	res := &Result{EventID: evt.ID(), Position: evt.Position()}

	if _, done, err := store.Load[entity.ProcessedEvent](ctx, e.backend, res.EventID); err != nil {
		return nil, err
	} else if done {
		res.Outcome = metrics.OutcomeDuplicate
		metrics.Indexer().ObserveEvent("", evt.Name, res.Outcome, 0)
		e.logger.Debug("event already applied", zap.String("id", res.EventID))
		return res, nil
	}

	ds, watched, err := store.Load[entity.DataSource](ctx, e.backend, entity.AddressID(evt.Address))
	if err != nil {
		return nil, err
	}
	if !watched || evt.BlockNumber < ds.StartBlock {
		res.Outcome = metrics.OutcomeUnwatched
		metrics.Indexer().ObserveEvent("", evt.Name, res.Outcome, 0)
		return res, nil
	}
	kind := event.ContractKind(ds.Kind)

	c := newContext(ctx, e, evt, kind)
	res.Outcome = metrics.OutcomeApplied
	if h, ok := e.router.lookup(kind, evt.Name); ok {
		if err := h(c); err != nil {
			skip, isSkip := AsSkip(err)
			if !isSkip {
				return nil, fmt.Errorf("apply %s at %d/%d: %w", evt.Name, evt.BlockNumber, evt.LogIndex, err)
			}
			if ce := c.logger.Check(skip.Level(), "skipping event"); ce != nil {
				ce.Write(zap.String("category", string(skip.Category)), zap.String("reason", skip.Reason))
			}
			res.Outcome = metrics.OutcomeSkipped
			res.Skip = skip
			c = newContext(ctx, e, evt, kind)
		}
	}

	if err := recordActivity(c, res.Outcome); err != nil {
		return nil, err
	}
	if err := c.Save(&entity.ProcessedEvent{
		ID:          res.EventID,
		BlockNumber: evt.BlockNumber,
		LogIndex:    evt.LogIndex,
		Outcome:     res.Outcome,
	}); err != nil {
		return nil, err
	}

	took := time.Since(started)
	res.Changes = c.uow.Changes()
	commitStart := time.Now()
	if err := e.backend.Commit(ctx, res.Changes); err != nil {
		metrics.Indexer().ObserveEvent(string(kind), evt.Name, metrics.OutcomeFailed, took)
		return nil, fmt.Errorf("commit %s at %d/%d: %w", evt.Name, evt.BlockNumber, evt.LogIndex, err)
	}
	metrics.Indexer().ObserveCommit(len(res.Changes), time.Since(commitStart))
	metrics.Indexer().ObserveEvent(string(kind), evt.Name, res.Outcome, took)
	metrics.Indexer().SetHead(evt.BlockNumber)

	e.mu.Lock()
	e.position = evt.Position()
	if res.Outcome == metrics.OutcomeSkipped {
		e.skipped++
	} else {
		e.applied++
	}
	e.mu.Unlock()

	for _, s := range c.subscriptions {
		metrics.Indexer().ObserveSubscription(string(s.kind))
		c.logger.Info("watching new data source",
			zap.String("address", s.addr.Hex()), zap.String("data_source_kind", string(s.kind)))
		if e.subscriber == nil {
			continue
		}
		if err := e.subscriber.Subscribe(ctx, s.addr, s.kind, s.startBlock); err != nil {
			c.logger.Error("subscriber rejected data source", zap.String("address", s.addr.Hex()), zap.Error(err))
		}
	}
	return res, nil
}

// Position returns the last committed stream position.
func (e *Engine) Position() event.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// Stats returns the number of applied and skipped events since start.
func (e *Engine) Stats() (applied, skipped uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.applied, e.skipped
}
