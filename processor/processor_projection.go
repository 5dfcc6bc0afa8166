package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/metrics"
	"github.com/withObsrvr/asset-graph-indexer/pkg/projection"
)

// AssetProjection applies each incoming event to the entity graph and
// forwards the committed ChangeSet downstream.
type AssetProjection struct {
	engine     *projection.Engine
	processors []Processor
	logger     *zap.Logger

	// emitEmpty forwards duplicates and unwatched events too.
	emitEmpty bool
}

func NewAssetProjection(engine *projection.Engine, config map[string]interface{}, logger *zap.Logger) (*AssetProjection, error) {
	if engine == nil {
		return nil, fmt.Errorf("AssetProjection requires a projection engine")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	emitEmpty, _ := config["emit_empty"].(bool)
	return &AssetProjection{
		engine:    engine,
		logger:    logger.Named("projection"),
		emitEmpty: emitEmpty,
	}, nil
}

func (p *AssetProjection) Subscribe(processor Processor) {
	p.processors = append(p.processors, processor)
}

func (p *AssetProjection) Process(ctx context.Context, msg Message) error {
	evt, err := ExtractEvent(msg)
	if err != nil {
		return err
	}

	res, err := p.engine.Apply(ctx, evt)
	if err != nil {
		return fmt.Errorf("projection failed: %w", err)
	}

	switch res.Outcome {
	case metrics.OutcomeDuplicate, metrics.OutcomeUnwatched:
		if !p.emitEmpty {
			return nil
		}
	}

	cs := ChangeSet{
		EventID:  res.EventID,
		Name:     evt.Name,
		Address:  evt.Address.Hex(),
		Position: res.Position,
		Outcome:  res.Outcome,
		Changes:  res.Changes,
	}
	if res.Skip != nil {
		cs.SkipReason = res.Skip.Error()
	}

	meta := copyMetadata(msg.Metadata)
	meta[MetaEventID] = res.EventID
	meta[MetaOutcome] = res.Outcome
	return ForwardToProcessors(ctx, Message{Payload: cs, Metadata: meta}, p.processors)
}
