// Package checkpoint persists the stream position of a pipeline so a restart
// resumes after the last committed event.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

// ErrNotFound is returned by Load when no checkpoint has been written yet.
var ErrNotFound = errors.New("no checkpoint found")

// Manager reads and writes the checkpoint file of one pipeline.
type Manager struct {
	directory    string
	interval     time.Duration
	pipelineName string
	configHash   string
	startTime    time.Time
	logger       *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewManager creates the checkpoint directory if needed. config is hashed to
// warn when a checkpoint was written under a different configuration.
func NewManager(dir, pipelineName string, config interface{}, logger *zap.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory cannot be empty")
	}
	if pipelineName == "" {
		return nil, fmt.Errorf("pipeline name cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Manager{
		directory:    dir,
		interval:     30 * time.Second,
		pipelineName: pipelineName,
		configHash:   calculateConfigHash(config),
		startTime:    time.Now(),
		logger:       logger.With(zap.String("pipeline", pipelineName)),
	}, nil
}

// SetInterval changes the period of StartAutoCheckpoint.
func (m *Manager) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

func (m *Manager) path() string {
	return filepath.Join(m.directory, fmt.Sprintf("checkpoint-%s-latest.json", m.pipelineName))
}

// Save writes pos as the latest checkpoint.
func (m *Manager) Save(pos event.Position) error {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()
	stats.UptimeSeconds = int64(time.Since(m.startTime).Seconds())

	data, err := json.MarshalIndent(Checkpoint{
		Version:      CheckpointVersion,
		PipelineName: m.pipelineName,
		ConfigHash:   m.configHash,
		Position:     pos,
		SavedAt:      time.Now().UTC(),
		Statistics:   &stats,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := WriteAtomic(m.path(), data); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Load returns the latest checkpoint, or ErrNotFound.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint (possibly corrupted): %w", err)
	}
	if cp.Version == "" || cp.Position.IsZero() {
		return nil, fmt.Errorf("invalid checkpoint: missing required fields")
	}
	if cp.ConfigHash != m.configHash {
		m.logger.Warn("configuration changed since checkpoint",
			zap.String("checkpoint_hash", cp.ConfigHash), zap.String("current_hash", m.configHash))
	}
	return &cp, nil
}

// StartAutoCheckpoint saves getState every interval until ctx is done, then
// saves once more. Failures are logged and never stop the pipeline.
func (m *Manager) StartAutoCheckpoint(ctx context.Context, getState func() event.Position) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("starting automatic checkpoints", zap.Duration("interval", m.interval))
	save := func(final bool) {
		pos := getState()
		if pos.IsZero() {
			return
		}
		if err := m.Save(pos); err != nil {
			m.logger.Error("failed to save checkpoint", zap.Error(err))
			return
		}
		m.logger.Debug("checkpoint saved",
			zap.Uint64("block", pos.BlockNumber), zap.Uint32("log_index", pos.LogIndex), zap.Bool("final", final))
	}

	for {
		select {
		case <-ctx.Done():
			save(true)
			return
		case <-ticker.C:
			save(false)
		}
	}
}

// UpdateStats records the counters written with the next checkpoint.
func (m *Manager) UpdateStats(applied, skipped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Applied = applied
	m.stats.Skipped = skipped
}

func calculateConfigHash(config interface{}) string {
	if config == nil {
		return "no-config"
	}
	data, err := json.Marshal(config)
	if err != nil {
		return "hash-error"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
