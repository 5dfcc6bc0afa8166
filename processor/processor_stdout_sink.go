package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// StdoutSink writes each payload as one JSON line.
type StdoutSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewStdoutSink() *StdoutSink {
	return &StdoutSink{out: os.Stdout}
}

func (s *StdoutSink) Subscribe(Processor) {}

func (s *StdoutSink) Process(_ context.Context, msg Message) error {
	var line []byte
	switch p := msg.Payload.(type) {
	case []byte:
		line = p
	default:
		var err error
		if line, err = json.Marshal(p); err != nil {
			return fmt.Errorf("StdoutSink: error marshaling payload: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(append(line, '\n'))
	return err
}
