package consumer

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/processor"
)

// DebugLogger logs a line per message, and per change when verbose.
type DebugLogger struct {
	logger   *zap.Logger
	verbose  bool
	msgCount atomic.Int64
}

func NewDebugLogger(config map[string]interface{}, logger *zap.Logger) *DebugLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	name, _ := config["name"].(string)
	if name == "" {
		name = "debug_logger"
	}
	verbose, _ := config["verbose"].(bool)
	return &DebugLogger{logger: logger.Named(name), verbose: verbose}
}

func (d *DebugLogger) Subscribe(processor.Processor) {}

func (d *DebugLogger) Process(ctx context.Context, msg processor.Message) error {
	n := d.msgCount.Add(1)
	cs, err := processor.ExtractChangeSet(msg)
	if err != nil {
		d.logger.Info("message received", zap.Int64("count", n), zap.String("payload_type", fmt.Sprintf("%T", msg.Payload)))
		return nil
	}
	d.logger.Info("change set",
		zap.Int64("count", n),
		zap.String("event_id", cs.EventID),
		zap.String("name", cs.Name),
		zap.String("outcome", cs.Outcome),
		zap.Uint64("block", cs.Position.BlockNumber),
		zap.Int("changes", len(cs.Changes)),
	)
	if d.verbose {
		for _, c := range cs.Changes {
			d.logger.Debug("change", zap.String("op", string(c.Op)), zap.String("kind", c.Kind), zap.String("id", c.ID))
		}
	}
	return nil
}

// Count returns the number of messages seen.
func (d *DebugLogger) Count() int64 {
	return d.msgCount.Load()
}
