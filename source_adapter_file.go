package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/projection"
	"github.com/withObsrvr/asset-graph-indexer/processor"
)

const defaultMaxLineBytes = 16 << 20

// FileEventSource streams decoded events from JSON lines files. Files ending
// in .gz are decompressed. A path of "-" reads stdin.
type FileEventSource struct {
	config     FileEventSourceConfig
	processors []processor.Processor
	logger     *zap.Logger
	watch      *watchFilter
	resume     event.Position
	stdin      io.Reader
}

type FileEventSourceConfig struct {
	Paths []string
	// WatchedOnly drops events from addresses no data source covers before
	// they reach the processors.
	WatchedOnly   bool
	SkipMalformed bool
	MaxLineBytes  int
}

func NewFileEventSource(config map[string]interface{}, logger *zap.Logger) (*FileEventSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := FileEventSourceConfig{WatchedOnly: true, MaxLineBytes: defaultMaxLineBytes}

	switch v := config["path"].(type) {
	case string:
		cfg.Paths = append(cfg.Paths, v)
	case nil:
	default:
		return nil, errors.Errorf("path must be a string, got %T", v)
	}
	if list, ok := config["paths"].([]interface{}); ok {
		for _, p := range list {
			s, ok := p.(string)
			if !ok {
				return nil, errors.Errorf("paths entries must be strings, got %T", p)
			}
			cfg.Paths = append(cfg.Paths, s)
		}
	}
	if len(cfg.Paths) == 0 {
		return nil, errors.New("path or paths must be specified")
	}
	if v, ok := config["watched_only"].(bool); ok {
		cfg.WatchedOnly = v
	}
	if v, ok := config["skip_malformed"].(bool); ok {
		cfg.SkipMalformed = v
	}
	switch v := config["max_line_bytes"].(type) {
	case int:
		cfg.MaxLineBytes = v
	case float64:
		cfg.MaxLineBytes = int(v)
	}
	if cfg.MaxLineBytes <= 0 {
		return nil, errors.Errorf("max_line_bytes must be positive, got %d", cfg.MaxLineBytes)
	}

	return &FileEventSource{
		config: cfg,
		logger: logger.Named("file-source"),
		watch:  newWatchFilter(),
		stdin:  os.Stdin,
	}, nil
}

func (s *FileEventSource) Subscribe(p processor.Processor) {
	s.processors = append(s.processors, p)
}

// Watcher returns the subscriber that feeds the watched-address filter.
func (s *FileEventSource) Watcher() projection.Subscriber {
	return s.watch
}

// ResumeFrom skips every event at or before pos.
func (s *FileEventSource) ResumeFrom(pos event.Position) {
	s.resume = pos
}

// files expands globs and returns the inputs in lexical order per pattern.
func (s *FileEventSource) files() ([]string, error) {
	var out []string
	for _, pattern := range s.config.Paths {
		if pattern == "-" {
			out = append(out, pattern)
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad path pattern %s", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no files match %s", pattern)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

func (s *FileEventSource) Run(ctx context.Context) error {
	files, err := s.files()
	if err != nil {
		return err
	}
	var stats sourceStats
	for _, name := range files {
		if err := s.runFile(ctx, name, &stats); err != nil {
			return err
		}
	}
	s.logger.Info("event files exhausted",
		zap.Int("files", len(files)),
		zap.Int("forwarded", stats.forwarded),
		zap.Int("resumed", stats.resumed),
		zap.Int("unwatched", stats.unwatched),
		zap.Int("malformed", stats.malformed))
	return nil
}

type sourceStats struct {
	forwarded int
	resumed   int
	unwatched int
	malformed int
	last      event.Position
}

func (s *FileEventSource) open(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(s.stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "error opening event file")
	}
	if !strings.HasSuffix(name, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "error reading gzip header of %s", name)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

func (s *FileEventSource) runFile(ctx context.Context, name string, stats *sourceStats) error {
	rc, err := s.open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	s.logger.Info("reading event file", zap.String("file", name))

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), s.config.MaxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var evt event.Event
		if err := json.Unmarshal(raw, &evt); err != nil || evt.Name == "" {
			if err == nil {
				err = fmt.Errorf("missing event name")
			}
			if !s.config.SkipMalformed {
				return errors.Wrapf(err, "malformed event at %s:%d", name, line)
			}
			stats.malformed++
			s.logger.Warn("skipping malformed event line", zap.String("file", name), zap.Int("line", line), zap.Error(err))
			continue
		}

		pos := evt.Position()
		if !s.resume.IsZero() && !pos.After(s.resume) {
			stats.resumed++
			continue
		}
		if stats.last.After(pos) {
			s.logger.Warn("event out of stream order",
				zap.String("file", name), zap.Int("line", line),
				zap.Uint64("block", pos.BlockNumber), zap.Uint32("log_index", pos.LogIndex))
		}
		stats.last = pos
		if s.config.WatchedOnly && !s.watch.Covers(evt.Address, evt.BlockNumber) {
			stats.unwatched++
			continue
		}

		msg := processor.Message{
			Payload: evt,
			Metadata: map[string]interface{}{
				processor.MetaSourceFile: name,
				processor.MetaLine:       line,
			},
		}
		if err := processor.ForwardToProcessors(ctx, msg, s.processors); err != nil {
			return errors.Wrapf(err, "error processing event at %s:%d", name, line)
		}
		stats.forwarded++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "error reading %s", name)
	}
	return nil
}

// watchFilter remembers the start block of every watched address.
type watchFilter struct {
	mu      sync.RWMutex
	sources map[common.Address]uint64
}

func newWatchFilter() *watchFilter {
	return &watchFilter{sources: make(map[common.Address]uint64)}
}

func (w *watchFilter) Subscribe(_ context.Context, addr common.Address, _ event.ContractKind, startBlock uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.sources[addr]; ok && prev <= startBlock {
		return nil
	}
	w.sources[addr] = startBlock
	return nil
}

// Covers reports whether an event from addr at block is watched.
func (w *watchFilter) Covers(addr common.Address, block uint64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	start, ok := w.sources[addr]
	return ok && block >= start
}
