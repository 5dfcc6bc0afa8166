package processor

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/projection"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

// MockProcessor captures every message it receives.
type MockProcessor struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func NewMockProcessor() *MockProcessor {
	return &MockProcessor{}
}

func (m *MockProcessor) Process(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *MockProcessor) Subscribe(Processor) {}

func (m *MockProcessor) GetMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	tokenAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	holderAddr  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
)

func testEvent(t *testing.T, emitter common.Address, name string, block uint64, logIndex uint32, params map[string]interface{}) event.Event {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(params))
	for k, v := range params {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		raw[k] = b
	}
	return event.Event{
		Name:            name,
		Address:         emitter,
		BlockNumber:     block,
		BlockTimestamp:  int64(1700000000 + block),
		TransactionHash: common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(logIndex))),
		LogIndex:        logIndex,
		Params:          raw,
	}
}

func TestExtractEvent(t *testing.T) {
	evt := testEvent(t, tokenAddr, event.Transfer, 10, 1, map[string]interface{}{"value": "5"})
	encoded, err := json.Marshal(evt)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload interface{}
		wantErr bool
	}{
		{name: "value", payload: evt},
		{name: "pointer", payload: &evt},
		{name: "json bytes", payload: encoded},
		{name: "nil pointer", payload: (*event.Event)(nil), wantErr: true},
		{name: "bad json", payload: []byte("{"), wantErr: true},
		{name: "wrong type", payload: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractEvent(Message{Payload: tt.payload})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, evt.ID(), got.ID())
			assert.Equal(t, event.Transfer, got.Name)
		})
	}
}

func TestNewFilterEvents(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr bool
	}{
		{name: "empty configuration", config: map[string]interface{}{}},
		{name: "names and range", config: map[string]interface{}{
			"include_names": []interface{}{"Transfer"},
			"start_block":   10,
			"end_block":     20.0,
		}},
		{name: "names not a list", config: map[string]interface{}{"include_names": "Transfer"}, wantErr: true},
		{name: "bad address", config: map[string]interface{}{"addresses": []interface{}{"0xnope"}}, wantErr: true},
		{name: "negative block", config: map[string]interface{}{"start_block": -1}, wantErr: true},
		{name: "inverted range", config: map[string]interface{}{"start_block": 20, "end_block": 10}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilterEvents(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, f)
		})
	}
}

func TestFilterEvents_Process(t *testing.T) {
	f, err := NewFilterEvents(map[string]interface{}{
		"exclude_names": []interface{}{event.Approval},
		"addresses":     []interface{}{tokenAddr.Hex()},
		"start_block":   10,
		"end_block":     20,
	})
	require.NoError(t, err)
	mock := NewMockProcessor()
	f.Subscribe(mock)

	ctx := context.Background()
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	inputs := []event.Event{
		testEvent(t, tokenAddr, event.Transfer, 10, 0, nil), // passes
		testEvent(t, tokenAddr, event.Approval, 11, 0, nil), // excluded name
		testEvent(t, other, event.Transfer, 12, 0, nil),     // other emitter
		testEvent(t, tokenAddr, event.Transfer, 9, 0, nil),  // before range
		testEvent(t, tokenAddr, event.Transfer, 21, 0, nil), // after range
		testEvent(t, tokenAddr, event.Transfer, 20, 3, nil), // passes
	}
	for _, evt := range inputs {
		require.NoError(t, f.Process(ctx, Message{Payload: evt}))
	}

	messages := mock.GetMessages()
	require.Len(t, messages, 2)
	passed, dropped := f.Stats()
	assert.Equal(t, uint64(2), passed)
	assert.Equal(t, uint64(4), dropped)
}

func newTestEngine(t *testing.T) (*projection.Engine, *store.Memory) {
	t.Helper()
	backend := store.NewMemory()
	engine, err := projection.New(projection.Options{
		Backend: backend,
		Logger:  zaptest.NewLogger(t),
		Sources: []projection.StaticSource{{Address: factoryAddr, Kind: event.KindDepositFactory}},
	})
	require.NoError(t, err)
	require.NoError(t, engine.Init(context.Background()))
	return engine, backend
}

func TestAssetProjection_ForwardsChangeSets(t *testing.T) {
	engine, backend := newTestEngine(t)
	p, err := NewAssetProjection(engine, map[string]interface{}{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	mock := NewMockProcessor()
	p.Subscribe(mock)

	ctx := context.Background()
	created := testEvent(t, factoryAddr, event.DepositCreated, 100, 1, map[string]interface{}{
		"token":   tokenAddr.Hex(),
		"creator": holderAddr.Hex(),
	})
	mint := testEvent(t, tokenAddr, event.Transfer, 101, 1, map[string]interface{}{
		"from":  common.Address{}.Hex(),
		"to":    holderAddr.Hex(),
		"value": "1000000000000000000",
	})
	for _, evt := range []event.Event{created, mint} {
		require.NoError(t, p.Process(ctx, Message{Payload: evt, Metadata: map[string]interface{}{MetaLine: 1}}))
	}

	messages := mock.GetMessages()
	require.Len(t, messages, 2)

	cs, err := ExtractChangeSet(messages[1])
	require.NoError(t, err)
	assert.Equal(t, mint.ID(), cs.EventID)
	assert.Equal(t, "applied", cs.Outcome)
	assert.Contains(t, cs.Kinds(), entity.KindBalance)
	assert.Contains(t, cs.Kinds(), entity.KindAsset)
	assert.Equal(t, mint.ID(), messages[1].Metadata[MetaEventID])
	assert.Equal(t, 1, messages[1].Metadata[MetaLine])

	_, ok, err := store.Load[entity.Balance](ctx, backend, entity.PairID(tokenAddr, holderAddr))
	require.NoError(t, err)
	assert.True(t, ok)

	// A replay is a duplicate and is not forwarded.
	require.NoError(t, p.Process(ctx, Message{Payload: mint}))
	assert.Len(t, mock.GetMessages(), 2)
}

func TestAssetProjection_ForwardsSkips(t *testing.T) {
	engine, _ := newTestEngine(t)
	p, err := NewAssetProjection(engine, map[string]interface{}{"emit_empty": true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	mock := NewMockProcessor()
	p.Subscribe(mock)

	ctx := context.Background()
	bad := testEvent(t, factoryAddr, event.DepositCreated, 100, 1, map[string]interface{}{
		"token": common.Address{}.Hex(),
	})
	unwatched := testEvent(t, tokenAddr, event.Transfer, 101, 1, nil)
	require.NoError(t, p.Process(ctx, Message{Payload: bad}))
	require.NoError(t, p.Process(ctx, Message{Payload: unwatched}))

	messages := mock.GetMessages()
	require.Len(t, messages, 2)
	first, err := ExtractChangeSet(messages[0])
	require.NoError(t, err)
	assert.Equal(t, "skipped", first.Outcome)
	assert.NotEmpty(t, first.SkipReason)
	second, err := ExtractChangeSet(messages[1])
	require.NoError(t, err)
	assert.Equal(t, "unwatched", second.Outcome)
	assert.Empty(t, second.Changes)
}

func TestNewAssetProjectionRequiresEngine(t *testing.T) {
	_, err := NewAssetProjection(nil, nil, nil)
	assert.Error(t, err)
}
