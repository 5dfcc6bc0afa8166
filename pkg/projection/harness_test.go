package projection

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/withObsrvr/asset-graph-indexer/pkg/chain"
	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/manifest"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

var (
	bondFactory     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	depositFactory  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	vaultFactory    = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	xvpFactory      = common.HexToAddress("0x00000000000000000000000000000000000000f4")
	airdropFactory  = common.HexToAddress("0x00000000000000000000000000000000000000f5")
	yieldFactory    = common.HexToAddress("0x00000000000000000000000000000000000000f6")
	identityFactory = common.HexToAddress("0x00000000000000000000000000000000000000f7")

	tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	alice     = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol     = common.HexToAddress("0x000000000000000000000000000000000000ca01")
)

// e18 returns n * 10^18.
func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type recordingSubscriber struct {
	subs []common.Address
}

func (r *recordingSubscriber) Subscribe(_ context.Context, addr common.Address, _ event.ContractKind, _ uint64) error {
	r.subs = append(r.subs, addr)
	return nil
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	engine     *Engine
	backend    *store.Memory
	chain      *chain.StaticReader
	subscriber *recordingSubscriber
	block      uint64
	logIndex   uint32
}

func newHarness(t *testing.T, fetcher manifest.Fetcher) *harness {
	t.Helper()
	h := &harness{
		t:          t,
		ctx:        context.Background(),
		backend:    store.NewMemory(),
		chain:      chain.NewStaticReader(),
		subscriber: &recordingSubscriber{},
		block:      100,
	}
	engine, err := New(Options{
		Backend:    h.backend,
		Chain:      h.chain,
		Manifests:  fetcher,
		Subscriber: h.subscriber,
		Logger:     zaptest.NewLogger(t),
		Sources: []StaticSource{
			{Address: bondFactory, Kind: event.KindBondFactory},
			{Address: depositFactory, Kind: event.KindDepositFactory},
			{Address: vaultFactory, Kind: event.KindVaultFactory},
			{Address: xvpFactory, Kind: event.KindXvPFactory},
			{Address: airdropFactory, Kind: event.KindAirdropFactory},
			{Address: yieldFactory, Kind: event.KindFixedYieldFactory},
			{Address: identityFactory, Kind: event.KindIdentityFactory},
		},
	})
	require.NoError(t, err)
	require.NoError(t, engine.Init(h.ctx))
	h.engine = engine
	return h
}

// build returns the next event in stream order without applying it.
func (h *harness) build(emitter common.Address, name string, params map[string]interface{}) event.Event {
	h.t.Helper()
	h.logIndex++
	raw := make(map[string]json.RawMessage, len(params))
	for k, v := range params {
		b, err := json.Marshal(v)
		require.NoError(h.t, err)
		raw[k] = b
	}
	return event.Event{
		Name:            name,
		Address:         emitter,
		BlockNumber:     h.block,
		BlockTimestamp:  int64(1700000000 + h.block),
		TransactionHash: common.BigToHash(new(big.Int).SetUint64(h.block*1000 + uint64(h.logIndex))),
		LogIndex:        h.logIndex,
		TransactionFrom: alice,
		Params:          raw,
	}
}

func (h *harness) apply(evt event.Event) *Result {
	h.t.Helper()
	res, err := h.engine.Apply(h.ctx, evt)
	require.NoError(h.t, err)
	return res
}

func (h *harness) emit(emitter common.Address, name string, params map[string]interface{}) *Result {
	h.t.Helper()
	return h.apply(h.build(emitter, name, params))
}

// nextBlock moves the stream to a new block.
func (h *harness) nextBlock() {
	h.block++
	h.logIndex = 0
}

func get[T any, PT interface {
	*T
	entity.Record
}](h *harness, id string) (PT, bool) {
	h.t.Helper()
	rec, ok, err := store.Load[T, PT](h.ctx, h.backend, id)
	require.NoError(h.t, err)
	return rec, ok
}

func (h *harness) asset(addr common.Address) *entity.Asset {
	h.t.Helper()
	a, ok := get[entity.Asset](h, entity.AddressID(addr))
	require.True(h.t, ok, "asset %s not indexed", addr.Hex())
	return a
}

func (h *harness) balance(asset, holder common.Address) (*entity.Balance, bool) {
	return get[entity.Balance](h, entity.PairID(asset, holder))
}

func (h *harness) account(addr common.Address) *entity.Account {
	h.t.Helper()
	a, ok := get[entity.Account](h, entity.AddressID(addr))
	require.True(h.t, ok, "account %s not indexed", addr.Hex())
	return a
}

// deployAsset creates an asset of kind through its factory.
func (h *harness) deployAsset(factory, token common.Address, createdEvent string, decimals uint8) {
	h.t.Helper()
	h.chain.SetValue(token, "name", "Test Token").
		SetValue(token, "symbol", "TST").
		SetValue(token, "decimals", decimals)
	res := h.emit(factory, createdEvent, map[string]interface{}{
		"token":   token.Hex(),
		"creator": carol.Hex(),
	})
	require.Equal(h.t, "applied", res.Outcome)
}

func (h *harness) transfer(token, from, to common.Address, value *big.Int) *Result {
	return h.emit(token, event.Transfer, map[string]interface{}{
		"from":  from.Hex(),
		"to":    to.Hex(),
		"value": value.String(),
	})
}

// sumBalances adds every live balance of asset.
func (h *harness) sumBalances(asset common.Address) (*big.Int, int) {
	h.t.Helper()
	balances, err := store.List[entity.Balance](h.ctx, h.backend, entity.ChildPrefix(entity.AddressID(asset)), 0)
	require.NoError(h.t, err)
	total := new(big.Int)
	for _, b := range balances {
		require.Positive(h.t, b.ValueExact.Sign(), "zero balance persisted for %s", b.Holder.Hex())
		total.Add(total, b.ValueExact)
	}
	return total, len(balances)
}
