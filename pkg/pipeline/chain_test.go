package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/withObsrvr/asset-graph-indexer/processor"
)

type recorder struct {
	name  string
	seen  *[]string
	downs []processor.Processor
}

func (r *recorder) Process(ctx context.Context, msg processor.Message) error {
	*r.seen = append(*r.seen, r.name)
	return processor.ForwardToProcessors(ctx, msg, r.downs)
}

func (r *recorder) Subscribe(p processor.Processor) {
	r.downs = append(r.downs, p)
}

func TestBuildProcessorChain(t *testing.T) {
	var seen []string
	p1 := &recorder{name: "p1", seen: &seen}
	p2 := &recorder{name: "p2", seen: &seen}
	c1 := &recorder{name: "c1", seen: &seen}
	c2 := &recorder{name: "c2", seen: &seen}

	BuildProcessorChain([]processor.Processor{p1, p2}, []processor.Processor{c1, c2}, nil)
	assert.NoError(t, p1.Process(context.Background(), processor.Message{Payload: "x"}))
	assert.Equal(t, []string{"p1", "p2", "c1", "c2"}, seen)
}

func TestBuildProcessorChainConsumersOnly(t *testing.T) {
	var seen []string
	c1 := &recorder{name: "c1", seen: &seen}
	c2 := &recorder{name: "c2", seen: &seen}

	BuildProcessorChain(nil, []processor.Processor{c1, c2}, nil)
	assert.NoError(t, c1.Process(context.Background(), processor.Message{}))
	assert.Equal(t, []string{"c1", "c2"}, seen)
}
