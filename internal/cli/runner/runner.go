// Package runner assembles and runs the pipelines of a configuration file.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/consumer"
	"github.com/withObsrvr/asset-graph-indexer/internal/api"
	"github.com/withObsrvr/asset-graph-indexer/internal/config"
	"github.com/withObsrvr/asset-graph-indexer/internal/logging"
	"github.com/withObsrvr/asset-graph-indexer/pkg/chain"
	"github.com/withObsrvr/asset-graph-indexer/pkg/checkpoint"
	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/manifest"
	"github.com/withObsrvr/asset-graph-indexer/pkg/pipeline"
	"github.com/withObsrvr/asset-graph-indexer/pkg/projection"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
	"github.com/withObsrvr/asset-graph-indexer/processor"
)

type Options struct {
	ConfigFile string
	Verbose    bool
	// Pipeline restricts the run to one named pipeline.
	Pipeline string
	// Replay rebuilds the graph in memory from the start of the source,
	// ignoring the configured store and any checkpoint.
	Replay bool
	// HTTPAddr serves the read API while the pipeline runs.
	HTTPAddr string
	// Out receives the replay summary. Defaults to stdout.
	Out io.Writer
}

// Env carries the shared pipeline state handed to component factories.
type Env struct {
	Engine *projection.Engine
	Logger *zap.Logger
}

// Factory functions for creating pipeline components
type Factories struct {
	CreateSourceAdapter func(config.SourceConfig, Env) (SourceAdapter, error)
	CreateProcessor     func(processor.ProcessorConfig, Env) (processor.Processor, error)
	CreateConsumer      func(consumer.ConsumerConfig, Env) (processor.Processor, error)
	Registry            config.Registry
}

type SourceAdapter interface {
	Run(context.Context) error
	Subscribe(processor.Processor)
}

// Resumable sources skip events at or before a saved position.
type Resumable interface {
	ResumeFrom(event.Position)
}

// Watching sources narrow their output to the contracts the engine watches.
type Watching interface {
	Watcher() projection.Subscriber
}

type Runner struct {
	opts      Options
	factories Factories
}

func New(opts Options, factories Factories) *Runner {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Runner{
		opts:      opts,
		factories: factories,
	}
}

// Validate loads the configuration and checks it against the registered
// component types. Warnings are returned alongside a nil error.
func (r *Runner) Validate() ([]string, error) {
	cfg, err := config.Load(r.opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if _, err := r.selected(cfg); err != nil {
		return nil, err
	}
	result := config.Validate(cfg, r.factories.Registry)
	return result.Warnings, result.Err()
}

func (r *Runner) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(r.opts.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	if r.opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New("asset-graph-indexer", cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	result := config.Validate(cfg, r.factories.Registry)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	if err := result.Err(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// selected returns the pipeline names to run, in name order.
func (r *Runner) selected(cfg *config.Config) ([]string, error) {
	if r.opts.Pipeline != "" {
		if _, ok := cfg.Pipelines[r.opts.Pipeline]; !ok {
			return nil, fmt.Errorf("pipeline %q not found in %s", r.opts.Pipeline, r.opts.ConfigFile)
		}
		return []string{r.opts.Pipeline}, nil
	}
	names := make([]string, 0, len(cfg.Pipelines))
	for name := range cfg.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Runner) Run(ctx context.Context) error {
	cfg, logger, err := r.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	names, err := r.selected(cfg)
	if err != nil {
		return err
	}
	if r.opts.HTTPAddr != "" && len(names) > 1 {
		return fmt.Errorf("serving the read api needs a single pipeline; pass --pipeline")
	}

	for _, name := range names {
		plog := logger.With(zap.String("pipeline", name))
		plog.Info("starting pipeline")
		if err := r.runPipeline(ctx, cfg, cfg.Pipelines[name], plog); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				plog.Info("pipeline stopped", zap.Error(err))
				continue
			}
			return fmt.Errorf("error in pipeline %s: %w", name, err)
		}
		plog.Info("pipeline finished")
	}
	return nil
}

// Serve exposes the store of one pipeline over the read API without indexing.
func (r *Runner) Serve(ctx context.Context) error {
	cfg, logger, err := r.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	names, err := r.selected(cfg)
	if err != nil {
		return err
	}
	if len(names) > 1 {
		return fmt.Errorf("config defines %d pipelines; pass --pipeline", len(names))
	}
	backend, err := store.Open(cfg.Pipelines[names[0]].Indexer.Store.Backend())
	if err != nil {
		return err
	}
	defer backend.Close()

	return r.apiServer(cfg, backend, nil, logger).ListenAndServe(ctx, r.apiAddr(cfg))
}

func (r *Runner) apiAddr(cfg *config.Config) string {
	if r.opts.HTTPAddr != "" {
		return r.opts.HTTPAddr
	}
	if cfg.API.Addr != "" {
		return cfg.API.Addr
	}
	return ":8080"
}

func (r *Runner) apiServer(cfg *config.Config, reader store.Reader, position func() event.Position, logger *zap.Logger) *api.Server {
	return api.New(api.Config{
		Reader:       reader,
		Logger:       logger,
		Position:     position,
		DefaultLimit: cfg.API.DefaultLimit,
		MaxLimit:     cfg.API.MaxLimit,
	})
}

// BuildEngine opens the store and view readers of a pipeline and returns an
// engine over them.
func BuildEngine(ctx context.Context, idx config.IndexerConfig, replay bool, logger *zap.Logger) (*projection.Engine, error) {
	storeCfg := idx.Store.Backend()
	if replay {
		storeCfg = store.Config{Type: "memory"}
	}
	backend, err := store.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("error opening store: %w", err)
	}

	var reader chain.Reader = chain.NewStaticReader()
	if idx.Chain.RPCURL != "" {
		rpc, err := chain.DialRPC(idx.Chain.RPC())
		if err != nil {
			backend.Close()
			return nil, err
		}
		reader = rpc
	}

	fetcher, err := manifest.NewRouter(ctx, idx.Manifests.Router())
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("error creating manifest fetcher: %w", err)
	}

	sources := make([]projection.StaticSource, 0, len(idx.DataSources))
	for _, ds := range idx.DataSources {
		sources = append(sources, projection.StaticSource{
			Address:    common.HexToAddress(ds.Address),
			Kind:       event.ContractKind(ds.Kind),
			StartBlock: ds.StartBlock,
		})
	}

	engine, err := projection.New(projection.Options{
		Backend:   backend,
		Chain:     reader,
		Manifests: fetcher,
		Logger:    logger.Named("projection"),
		Sources:   sources,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return engine, nil
}

func (r *Runner) runPipeline(ctx context.Context, cfg *config.Config, pipelineConfig config.PipelineConfig, logger *zap.Logger) error {
	engine, err := BuildEngine(ctx, pipelineConfig.Indexer, r.opts.Replay, logger)
	if err != nil {
		return err
	}
	defer engine.Backend().Close()
	env := Env{Engine: engine, Logger: logger}

	// Create source
	source, err := r.factories.CreateSourceAdapter(pipelineConfig.Source, env)
	if err != nil {
		return fmt.Errorf("error creating source: %w", err)
	}
	if w, ok := source.(Watching); ok {
		engine.SetSubscriber(w.Watcher())
	}
	if err := engine.Init(ctx); err != nil {
		return fmt.Errorf("error initialising engine: %w", err)
	}

	// Create processors
	processors := make([]processor.Processor, len(pipelineConfig.Processors))
	for i, procConfig := range pipelineConfig.Processors {
		proc, err := r.factories.CreateProcessor(procConfig, env)
		if err != nil {
			return fmt.Errorf("error creating processor %s: %w", procConfig.Type, err)
		}
		processors[i] = proc
	}

	// Create consumers
	consumers := make([]processor.Processor, len(pipelineConfig.Consumers))
	for i, consConfig := range pipelineConfig.Consumers {
		cons, err := r.factories.CreateConsumer(consConfig, env)
		if err != nil {
			return fmt.Errorf("error creating consumer %s: %w", consConfig.Type, err)
		}
		consumers[i] = cons
	}
	defer closeConsumers(consumers, logger)

	pipeline.BuildProcessorChain(processors, consumers, logger)
	if len(processors) > 0 {
		source.Subscribe(processors[0])
	} else if len(consumers) > 0 {
		source.Subscribe(consumers[0])
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ckpt := pipelineConfig.Indexer.Checkpoint
	if ckpt.Dir != "" && !r.opts.Replay {
		stop, err := r.resume(runCtx, engine, source, pipelineConfig, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if r.opts.HTTPAddr != "" {
		srv := r.apiServer(cfg, engine.Backend(), engine.Position, logger)
		go func() {
			if err := srv.ListenAndServe(runCtx, r.opts.HTTPAddr); err != nil {
				logger.Error("read api stopped", zap.Error(err))
			}
		}()
	}

	err = source.Run(runCtx)
	applied, skipped := engine.Stats()
	logger.Info("pipeline source completed",
		zap.Uint64("applied", applied),
		zap.Uint64("skipped", skipped),
		zap.Uint64("block", engine.Position().BlockNumber))

	if r.opts.Replay {
		if m, ok := engine.Backend().(*store.Memory); ok {
			printSummary(r.opts.Out, m)
		}
	}
	return err
}

// resume loads the pipeline checkpoint, positions the source after it and
// starts periodic checkpointing. The returned func writes the final
// checkpoint and waits for it.
func (r *Runner) resume(ctx context.Context, engine *projection.Engine, source SourceAdapter, p config.PipelineConfig, logger *zap.Logger) (func(), error) {
	mgr, err := checkpoint.NewManager(p.Indexer.Checkpoint.Dir, p.Name, p, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating checkpoint manager: %w", err)
	}
	if p.Indexer.Checkpoint.Interval > 0 {
		mgr.SetInterval(p.Indexer.Checkpoint.Interval)
	}

	cp, err := mgr.Load()
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		logger.Info("no checkpoint found, starting from the beginning")
	case err != nil:
		return nil, fmt.Errorf("error loading checkpoint: %w", err)
	default:
		if res, ok := source.(Resumable); ok {
			res.ResumeFrom(cp.Position)
			logger.Info("resuming from checkpoint",
				zap.Uint64("block", cp.Position.BlockNumber),
				zap.Uint32("log_index", cp.Position.LogIndex))
		} else {
			logger.Warn("source cannot resume; relying on idempotent replay",
				zap.String("source", p.Source.Type))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.StartAutoCheckpoint(ctx, func() event.Position {
			mgr.UpdateStats(engine.Stats())
			return engine.Position()
		})
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func closeConsumers(consumers []processor.Processor, logger *zap.Logger) {
	for _, cons := range consumers {
		if closer, ok := cons.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("error closing consumer", zap.String("consumer", fmt.Sprintf("%T", cons)), zap.Error(err))
			}
		}
	}
}

func printSummary(w io.Writer, m *store.Memory) {
	fmt.Fprintln(w, "entity counts:")
	for _, kind := range entity.Kinds {
		if n := m.Count(kind); n > 0 {
			fmt.Fprintf(w, "  %-28s %d\n", kind, n)
		}
	}
}
