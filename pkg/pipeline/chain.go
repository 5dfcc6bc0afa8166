// Package pipeline wires processors and consumers into a chain.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/processor"
)

// BuildProcessorChain chains processors sequentially and subscribes all consumers to the last processor
func BuildProcessorChain(processors []processor.Processor, consumers []processor.Processor, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var lastProcessor processor.Processor

	for _, p := range processors {
		if lastProcessor != nil {
			lastProcessor.Subscribe(p)
			logger.Debug("chained processor", zap.String("from", typeName(lastProcessor)), zap.String("to", typeName(p)))
		}
		lastProcessor = p
	}

	if lastProcessor != nil {
		for _, c := range consumers {
			lastProcessor.Subscribe(c)
			logger.Debug("chained consumer", zap.String("from", typeName(lastProcessor)), zap.String("to", typeName(c)))
		}
	} else if len(consumers) > 0 {
		// Without processors the first consumer fans out to the rest.
		for i := 1; i < len(consumers); i++ {
			consumers[0].Subscribe(consumers[i])
			logger.Debug("chained consumer", zap.String("from", typeName(consumers[0])), zap.String("to", typeName(consumers[i])))
		}
	}
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
