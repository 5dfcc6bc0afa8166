package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

// Processor defines the interface for processing messages.
type Processor interface {
	Process(context.Context, Message) error
	Subscribe(Processor)
}

type ProcessorConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// Message encapsulates the payload to be processed with optional metadata.
type Message struct {
	Payload  interface{}            `json:"payload"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Metadata keys set by sources and processors.
const (
	MetaSourceFile = "source_file"
	MetaLine       = "line"
	MetaEventID    = "event_id"
	MetaOutcome    = "outcome"
)

// ExtractEvent returns the decoded event carried by msg. Sources emit
// event.Event values; raw JSON is accepted as well.
func ExtractEvent(msg Message) (event.Event, error) {
	switch p := msg.Payload.(type) {
	case event.Event:
		return p, nil
	case *event.Event:
		if p == nil {
			return event.Event{}, fmt.Errorf("nil event payload")
		}
		return *p, nil
	case []byte:
		var evt event.Event
		if err := json.Unmarshal(p, &evt); err != nil {
			return event.Event{}, fmt.Errorf("error decoding event: %w", err)
		}
		return evt, nil
	default:
		return event.Event{}, fmt.Errorf("expected event.Event, got %T", msg.Payload)
	}
}

// ExtractChangeSet returns the change set carried by msg, either as a value
// or as its JSON encoding.
func ExtractChangeSet(msg Message) (ChangeSet, error) {
	switch p := msg.Payload.(type) {
	case ChangeSet:
		return p, nil
	case *ChangeSet:
		if p == nil {
			return ChangeSet{}, fmt.Errorf("nil change set payload")
		}
		return *p, nil
	case []byte:
		var cs ChangeSet
		if err := json.Unmarshal(p, &cs); err != nil {
			return ChangeSet{}, fmt.Errorf("error decoding change set: %w", err)
		}
		return cs, nil
	default:
		return ChangeSet{}, fmt.Errorf("expected ChangeSet, got %T", msg.Payload)
	}
}

// ForwardToProcessors sends msg to every downstream processor.
func ForwardToProcessors(ctx context.Context, msg Message, processors []Processor) error {
	for _, p := range processors {
		if err := p.Process(ctx, msg); err != nil {
			return fmt.Errorf("error in processor chain: %w", err)
		}
	}
	return nil
}

func copyMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
