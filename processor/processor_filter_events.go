package processor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// FilterEvents drops events by name, emitter or block range before they
// reach the projection.
type FilterEvents struct {
	include    map[string]bool
	exclude    map[string]bool
	addresses  map[common.Address]bool
	startBlock uint64
	endBlock   uint64
	processors []Processor

	passed  atomic.Uint64
	dropped atomic.Uint64
}

func NewFilterEvents(config map[string]interface{}) (*FilterEvents, error) {
	f := &FilterEvents{}
	var err error
	if f.include, err = stringSet(config, "include_names"); err != nil {
		return nil, err
	}
	if f.exclude, err = stringSet(config, "exclude_names"); err != nil {
		return nil, err
	}
	addrs, err := stringSet(config, "addresses")
	if err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		f.addresses = make(map[common.Address]bool, len(addrs))
		for a := range addrs {
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("invalid address in filter: %q", a)
			}
			f.addresses[common.HexToAddress(a)] = true
		}
	}
	if f.startBlock, err = uintField(config, "start_block"); err != nil {
		return nil, err
	}
	if f.endBlock, err = uintField(config, "end_block"); err != nil {
		return nil, err
	}
	if f.endBlock != 0 && f.endBlock < f.startBlock {
		return nil, fmt.Errorf("end_block %d is before start_block %d", f.endBlock, f.startBlock)
	}
	return f, nil
}

func (f *FilterEvents) Subscribe(processor Processor) {
	f.processors = append(f.processors, processor)
}

func (f *FilterEvents) Process(ctx context.Context, msg Message) error {
	evt, err := ExtractEvent(msg)
	if err != nil {
		return err
	}
	if !f.keep(evt.Name, evt.Address, evt.BlockNumber) {
		f.dropped.Add(1)
		return nil
	}
	f.passed.Add(1)
	return ForwardToProcessors(ctx, msg, f.processors)
}

func (f *FilterEvents) keep(name string, addr common.Address, block uint64) bool {
	if len(f.include) > 0 && !f.include[name] {
		return false
	}
	if f.exclude[name] {
		return false
	}
	if f.addresses != nil && !f.addresses[addr] {
		return false
	}
	if block < f.startBlock {
		return false
	}
	return f.endBlock == 0 || block <= f.endBlock
}

// Stats returns how many events were forwarded and dropped.
func (f *FilterEvents) Stats() (passed, dropped uint64) {
	return f.passed.Load(), f.dropped.Load()
}

func stringSet(config map[string]interface{}, key string) (map[string]bool, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid %s: expected a list, got %T", key, raw)
	}
	out := make(map[string]bool, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("invalid %s entry: %v", key, v)
		}
		out[s] = true
	}
	return out, nil
}

func uintField(config map[string]interface{}, key string) (uint64, error) {
	switch v := config[key].(type) {
	case nil:
		return 0, nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%s must not be negative", key)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%s must not be negative", key)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("%s must not be negative", key)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("invalid %s: %v", key, v)
	}
}
