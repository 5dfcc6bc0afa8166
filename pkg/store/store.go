// Package store persists the entity graph. Backends are key-value stores
// namespaced by entity kind; writes are applied per event through a UnitOfWork
// and committed atomically.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStopScan can be returned from a scan callback to end the scan early.
var ErrStopScan = errors.New("stop scan")

// Reader reads entities.
type Reader interface {
	// Get returns the encoded entity, or false when it does not exist.
	Get(ctx context.Context, kind, id string) ([]byte, bool, error)
	// Scan calls fn for every entity of kind whose id starts with prefix, in id order.
	Scan(ctx context.Context, kind, prefix string, fn func(id string, body []byte) error) error
}

// Backend is a durable entity store.
type Backend interface {
	Reader
	// Commit applies all changes atomically.
	Commit(ctx context.Context, changes []Change) error
	Close() error
}

type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change is one entity write.
type Change struct {
	Op   Op              `json:"op"`
	Kind string          `json:"kind"`
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Config selects and configures a backend.
type Config struct {
	Type string // memory, leveldb, sqlite, postgres
	Path string // leveldb directory or sqlite file
	DSN  string // postgres connection string
	// Table overrides the SQL table name.
	Table string
	// Sync forces an fsync on every leveldb commit.
	Sync bool
}

// Backends lists the store types Open accepts.
var Backends = []string{"memory", "leveldb", "sqlite", "postgres"}

// Open returns the backend described by cfg.
func Open(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "leveldb":
		if cfg.Path == "" {
			return nil, fmt.Errorf("missing path for leveldb store")
		}
		return OpenLevelDB(cfg.Path, cfg.Sync)
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("missing path for sqlite store")
		}
		return OpenSQL(DialectSQLite, cfg.Path, cfg.Table)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("missing dsn for postgres store")
		}
		return OpenSQL(DialectPostgres, cfg.DSN, cfg.Table)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// ConfigFromMap parses a store config from a pipeline component config block.
func ConfigFromMap(m map[string]interface{}) Config {
	var cfg Config
	if m == nil {
		return cfg
	}
	cfg.Type, _ = m["type"].(string)
	cfg.Path, _ = m["path"].(string)
	cfg.DSN, _ = m["dsn"].(string)
	cfg.Table, _ = m["table"].(string)
	cfg.Sync, _ = m["sync"].(bool)
	return cfg
}
