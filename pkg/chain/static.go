package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// StaticReader serves fixed answers. Unknown addresses are externally owned
// and unknown view calls revert. It backs offline replays and tests.
type StaticReader struct {
	mu        sync.RWMutex
	contracts map[common.Address]bool
	values    map[common.Address]map[string]interface{}
}

func NewStaticReader() *StaticReader {
	return &StaticReader{
		contracts: make(map[common.Address]bool),
		values:    make(map[common.Address]map[string]interface{}),
	}
}

// SetContract marks addr as holding code.
func (s *StaticReader) SetContract(addr common.Address) *StaticReader {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[addr] = true
	return s
}

// SetValue sets the result of method on addr and marks addr as a contract.
func (s *StaticReader) SetValue(addr common.Address, method string, value interface{}) *StaticReader {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[addr] = true
	if s.values[addr] == nil {
		s.values[addr] = make(map[string]interface{})
	}
	s.values[addr][method] = value
	return s
}

func (s *StaticReader) IsContract(_ context.Context, addr common.Address, _ uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contracts[addr], nil
}

func (s *StaticReader) Call(_ context.Context, addr common.Address, method string, _ uint64) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[addr][method]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrReverted, method, addr.Hex())
	}
	return v, nil
}
