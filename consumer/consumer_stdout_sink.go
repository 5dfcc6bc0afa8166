package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/withObsrvr/asset-graph-indexer/processor"
)

// StdoutConsumer writes every incoming payload to stdout as one JSON line.
// With summary enabled a ChangeSet is reduced to its header and kinds.
type StdoutConsumer struct {
	out     io.Writer
	summary bool
}

func NewStdoutConsumer(config map[string]interface{}) *StdoutConsumer {
	summary, _ := config["summary"].(bool)
	return &StdoutConsumer{out: os.Stdout, summary: summary}
}

func (s *StdoutConsumer) Process(ctx context.Context, msg processor.Message) error {
	payload := msg.Payload
	if s.summary {
		if cs, err := processor.ExtractChangeSet(msg); err == nil {
			payload = map[string]interface{}{
				"event_id": cs.EventID,
				"name":     cs.Name,
				"outcome":  cs.Outcome,
				"position": cs.Position,
				"kinds":    cs.Kinds(),
			}
		}
	}

	var output []byte
	switch p := payload.(type) {
	case []byte:
		output = p
	default:
		var err error
		output, err = json.Marshal(p)
		if err != nil {
			return fmt.Errorf("StdoutConsumer: error marshaling payload: %w", err)
		}
	}
	_, err := s.out.Write(append(output, '\n'))
	return err
}

// Subscribe is a no-op; StdoutConsumer is a sink.
func (s *StdoutConsumer) Subscribe(proc processor.Processor) {}
