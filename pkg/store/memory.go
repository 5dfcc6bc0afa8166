package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process backend used by tests and dry runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, kind, id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.data[kind][id]
	return body, ok, nil
}

func (m *Memory) Scan(_ context.Context, kind, prefix string, fn func(id string, body []byte) error) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.data[kind]))
	for id := range m.data[kind] {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	bodies := make([][]byte, len(ids))
	for i, id := range ids {
		bodies[i] = m.data[kind][id]
	}
	m.mu.RUnlock()

	for i, id := range ids {
		if err := fn(id, bodies[i]); err != nil {
			if err == ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *Memory) Commit(_ context.Context, changes []Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range changes {
		switch c.Op {
		case OpPut:
			ns, ok := m.data[c.Kind]
			if !ok {
				ns = make(map[string][]byte)
				m.data[c.Kind] = ns
			}
			ns[c.ID] = append([]byte(nil), c.Body...)
		case OpDelete:
			delete(m.data[c.Kind], c.ID)
		}
	}
	return nil
}

// Count returns the number of stored entities of kind.
func (m *Memory) Count(kind string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[kind])
}

func (m *Memory) Close() error {
	return nil
}
