package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/consumer"
	"github.com/withObsrvr/asset-graph-indexer/internal/config"
	"github.com/withObsrvr/asset-graph-indexer/pkg/checkpoint"
	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
	"github.com/withObsrvr/asset-graph-indexer/processor"
)

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	tokenAddr   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	holderAddr  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
)

func testEvent(name string, emitter common.Address, block uint64, params map[string]string) event.Event {
	raw := make(map[string]json.RawMessage, len(params))
	for k, v := range params {
		raw[k] = json.RawMessage(fmt.Sprintf("%q", v))
	}
	return event.Event{
		Name:            name,
		Address:         emitter,
		BlockNumber:     block,
		BlockTimestamp:  int64(1700000000 + block),
		TransactionHash: common.BigToHash(new(big.Int).SetUint64(block)),
		LogIndex:        1,
		Params:          raw,
	}
}

// sliceSource replays a fixed list of events.
type sliceSource struct {
	events     []event.Event
	processors []processor.Processor
	resumed    *event.Position
}

func (s *sliceSource) Subscribe(p processor.Processor) { s.processors = append(s.processors, p) }

func (s *sliceSource) ResumeFrom(pos event.Position) { s.resumed = &pos }

func (s *sliceSource) Run(ctx context.Context) error {
	for _, evt := range s.events {
		if s.resumed != nil && !evt.Position().After(*s.resumed) {
			continue
		}
		if err := processor.ForwardToProcessors(ctx, processor.Message{Payload: evt}, s.processors); err != nil {
			return err
		}
	}
	return nil
}

type captureConsumer struct {
	changeSets []processor.ChangeSet
	closed     bool
}

func (c *captureConsumer) Process(_ context.Context, msg processor.Message) error {
	cs, err := processor.ExtractChangeSet(msg)
	if err != nil {
		return err
	}
	c.changeSets = append(c.changeSets, cs)
	return nil
}

func (c *captureConsumer) Subscribe(processor.Processor) {}

func (c *captureConsumer) Close() error {
	c.closed = true
	return nil
}

type harness struct {
	source   *sliceSource
	consumer *captureConsumer
}

func (h *harness) factories() Factories {
	return Factories{
		CreateSourceAdapter: func(cfg config.SourceConfig, env Env) (SourceAdapter, error) {
			if cfg.Type != "SliceSource" {
				return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
			}
			return h.source, nil
		},
		CreateProcessor: func(cfg processor.ProcessorConfig, env Env) (processor.Processor, error) {
			return processor.NewAssetProjection(env.Engine, cfg.Config, env.Logger)
		},
		CreateConsumer: func(cfg consumer.ConsumerConfig, env Env) (processor.Processor, error) {
			return h.consumer, nil
		},
		Registry: config.Registry{
			Sources:    []string{"SliceSource"},
			Processors: []string{"AssetProjection"},
			Consumers:  []string{"Capture"},
		},
	}
}

func newHarness() *harness {
	return &harness{
		source: &sliceSource{events: []event.Event{
			testEvent(event.DepositCreated, factoryAddr, 100, map[string]string{
				"token":   tokenAddr.Hex(),
				"creator": holderAddr.Hex(),
			}),
			testEvent(event.Transfer, tokenAddr, 101, map[string]string{
				"from":  common.Address{}.Hex(),
				"to":    holderAddr.Hex(),
				"value": "1000",
			}),
		}},
		consumer: &captureConsumer{},
	}
}

func writeConfig(t *testing.T, dir, sourceType string) string {
	t.Helper()
	doc := fmt.Sprintf(`
logging:
  level: error
pipelines:
  assets:
    indexer:
      store: {type: leveldb, path: %q}
      data_sources:
        - {address: %q, kind: deposit_factory}
      checkpoint: {dir: %q}
    source: {type: %s}
    processors:
      - type: AssetProjection
    consumers:
      - type: Capture
`, filepath.Join(dir, "graph"), factoryAddr.Hex(), filepath.Join(dir, "checkpoints"), sourceType)
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRunIndexesAndCheckpoints(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "SliceSource")
	h := newHarness()

	require.NoError(t, New(Options{ConfigFile: path}, h.factories()).Run(context.Background()))
	require.Len(t, h.consumer.changeSets, 2)
	assert.Equal(t, "applied", h.consumer.changeSets[1].Outcome)
	assert.True(t, h.consumer.closed)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	mgr, err := checkpoint.NewManager(filepath.Join(dir, "checkpoints"), "assets", cfg.Pipelines["assets"], zap.NewNop())
	require.NoError(t, err)
	cp, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, event.Position{BlockNumber: 101, LogIndex: 1}, cp.Position)
	require.NotNil(t, cp.Statistics)
	assert.EqualValues(t, 2, cp.Statistics.Applied)

	backend, err := store.Open(cfg.Pipelines["assets"].Indexer.Store.Backend())
	require.NoError(t, err)
	bal, ok, err := store.Load[entity.Balance](context.Background(), backend, entity.PairID(tokenAddr, holderAddr))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1000", bal.ValueExact.String())
	require.NoError(t, backend.Close())

	// A second run resumes after the checkpoint and forwards nothing new.
	h2 := newHarness()
	require.NoError(t, New(Options{ConfigFile: path}, h2.factories()).Run(context.Background()))
	require.NotNil(t, h2.source.resumed)
	assert.Equal(t, cp.Position, *h2.source.resumed)
	assert.Empty(t, h2.consumer.changeSets)
}

func TestReplayUsesFreshStore(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "SliceSource")
	h := newHarness()
	var out bytes.Buffer

	require.NoError(t, New(Options{ConfigFile: path, Replay: true, Out: &out}, h.factories()).Run(context.Background()))
	assert.Nil(t, h.source.resumed)
	assert.Contains(t, out.String(), "entity counts:")
	assert.Contains(t, out.String(), entity.KindBalance)
	assert.NoDirExists(t, filepath.Join(dir, "checkpoints"))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	h := newHarness()

	_, err := New(Options{ConfigFile: writeConfig(t, dir, "SliceSource")}, h.factories()).Validate()
	assert.NoError(t, err)

	_, err = New(Options{ConfigFile: writeConfig(t, dir, "SliceSorce")}, h.factories()).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SliceSource")

	_, err = New(Options{ConfigFile: writeConfig(t, dir, "SliceSource"), Pipeline: "missing"}, h.factories()).Validate()
	assert.ErrorContains(t, err, "not found")
}
