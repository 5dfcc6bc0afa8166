package main

import (
	"fmt"

	"github.com/withObsrvr/asset-graph-indexer/consumer"
	"github.com/withObsrvr/asset-graph-indexer/internal/cli/runner"
	"github.com/withObsrvr/asset-graph-indexer/internal/config"
	"github.com/withObsrvr/asset-graph-indexer/processor"
)

// Component type names accepted in pipeline files.
var registry = config.Registry{
	Sources:    []string{"FileEventSource"},
	Processors: []string{"FilterEvents", "AssetProjection", "StdoutSink"},
	Consumers:  []string{"PublishChangesToRedis", "SaveChangesToPostgreSQL", "StdoutConsumer", "DebugLogger"},
}

// Factory functions exported for use by the CLI runner

func CreateSourceAdapterFunc(sourceConfig config.SourceConfig, env runner.Env) (runner.SourceAdapter, error) {
	switch sourceConfig.Type {
	case "FileEventSource":
		return NewFileEventSource(sourceConfig.Config, env.Logger)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceConfig.Type)
	}
}

func CreateProcessorFunc(processorConfig processor.ProcessorConfig, env runner.Env) (processor.Processor, error) {
	switch processorConfig.Type {
	case "FilterEvents":
		return processor.NewFilterEvents(processorConfig.Config)
	case "AssetProjection":
		return processor.NewAssetProjection(env.Engine, processorConfig.Config, env.Logger)
	case "StdoutSink":
		return processor.NewStdoutSink(), nil
	default:
		return nil, fmt.Errorf("unsupported processor type: %s", processorConfig.Type)
	}
}

func CreateConsumerFunc(consumerConfig consumer.ConsumerConfig, env runner.Env) (processor.Processor, error) {
	switch consumerConfig.Type {
	case "PublishChangesToRedis":
		return consumer.NewPublishChangesToRedis(consumerConfig.Config, env.Logger)
	case "SaveChangesToPostgreSQL":
		return consumer.NewSaveChangesToPostgreSQL(consumerConfig.Config, env.Logger)
	case "StdoutConsumer":
		return consumer.NewStdoutConsumer(consumerConfig.Config), nil
	case "DebugLogger":
		return consumer.NewDebugLogger(consumerConfig.Config, env.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported consumer type: %s", consumerConfig.Type)
	}
}

func factories() runner.Factories {
	return runner.Factories{
		CreateSourceAdapter: CreateSourceAdapterFunc,
		CreateProcessor:     CreateProcessorFunc,
		CreateConsumer:      CreateConsumerFunc,
		Registry:            registry,
	}
}
