package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/cache"
	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/compression"
	"github.com/fyrsmithlabs/pdfqa/internal/config"
	"github.com/fyrsmithlabs/pdfqa/internal/embeddings"
	"github.com/fyrsmithlabs/pdfqa/internal/ensemble"
	"github.com/fyrsmithlabs/pdfqa/internal/llm"
	"github.com/fyrsmithlabs/pdfqa/internal/logging"
	"github.com/fyrsmithlabs/pdfqa/internal/notify"
	"github.com/fyrsmithlabs/pdfqa/internal/orchestrator"
	"github.com/fyrsmithlabs/pdfqa/internal/pdf"
	"github.com/fyrsmithlabs/pdfqa/internal/retrieval"
	"github.com/fyrsmithlabs/pdfqa/internal/sparse"
	"github.com/fyrsmithlabs/pdfqa/internal/telemetry"
	"github.com/fyrsmithlabs/pdfqa/internal/vectorstore"
)

// app holds the wired pipeline and everything that must be released with it.
type app struct {
	config    *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	pipeline  *orchestrator.Pipeline
	closers   []func() error
}

// loadConfig reads the dotenv file, the config file and environment, then
// applies flag overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.variant != "" {
		cfg.Pipeline.Variant = opts.variant
	}
	if opts.noNotify {
		cfg.Notify.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildApp wires every component from cfg.
func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{config: cfg}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a.logger, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	if degraded, reason := a.telemetry.Degraded(); degraded {
		a.logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}
	zl := a.logger.Underlying()
	timeout := cfg.Pipeline.CallTimeout.Duration()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		APIKey:   cfg.Embeddings.APIKey.Value(),
		CacheDir: cfg.Embeddings.CacheDir,
		Timeout:  timeout,
	}, zl.Named("embeddings"))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	a.closers = append(a.closers, embedder.Close)

	strategy, err := retrieval.ParseStrategy(cfg.Pipeline.Variant)
	if err != nil {
		return nil, err
	}
	r := cfg.Retrieval
	indexer := &orchestrator.StoreIndexer{
		Store: vectorstore.Config{
			Provider: cfg.VectorStore.Provider,
			Chromem: vectorstore.ChromemConfig{
				Path:     cfg.VectorStore.Path,
				Compress: cfg.VectorStore.Compress,
				FetchK:   r.FetchK,
				Lambda:   r.MMRLambda,
			},
			Qdrant: vectorstore.QdrantConfig{
				Host:       cfg.VectorStore.Qdrant.Host,
				Port:       cfg.VectorStore.Qdrant.Port,
				APIKey:     cfg.VectorStore.Qdrant.APIKey.Value(),
				UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
				VectorSize: embedder.Dimension(),
				FetchK:     r.FetchK,
				Lambda:     r.MMRLambda,
			},
		},
		Embedder: embedder,
		Strategy: strategy,
		BM25:     sparse.Config{K1: r.BM25K1, B: r.BM25B},
		Logger:   zl.Named("vectorstore"),
	}

	client, err := llm.NewOpenAIClient(llm.Config{
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey.Value(),
		Temperature:       cfg.LLM.Temperature,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Timeout:           timeout,
	}, zl.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	filter, err := compression.NewFilter(client, compression.Config{
		Enabled:  cfg.Compression.Enabled,
		Fallback: compression.Fallback(cfg.Compression.Fallback),
	}, zl.Named("compression"))
	if err != nil {
		return nil, err
	}

	qaCache, err := cache.Open(cfg.Cache.Path, zl.Named("cache"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, qaCache.Close)

	notifier, err := newNotifier(ctx, cfg.Notify, a.logger)
	if err != nil {
		return nil, err
	}

	a.pipeline, err = orchestrator.NewPipeline(orchestrator.Deps{
		Loader:     pdf.NewLoader(zl.Named("pdf")),
		Splitter:   chunker.NewChunker(chunker.Config{ChunkSize: cfg.Chunker.ChunkSize, ChunkOverlap: cfg.Chunker.ChunkOverlap}, zl.Named("chunker")),
		Indexer:    indexer,
		Compressor: filter,
		Generator:  client,
		Cache:      qaCache,
		Notifier:   notifier,
	}, orchestrator.Config{
		Retrieval: retrieval.Config{
			Strategy: strategy,
			K:        r.K,
			FusedK:   r.FusedK,
			Weights:  ensemble.Weights{Dense: r.DenseWeight, Sparse: r.SparseWeight},
		},
		IncludeSection: cfg.Pipeline.IncludeSection(),
		MaxSources:     cfg.Pipeline.MaxSources,
		CallTimeout:    timeout,
		Channel:        cfg.Notify.Channel,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newNotifier returns nil when notifications are disabled. A missing token
// degrades to a no-op notifier so the batch still runs.
func newNotifier(ctx context.Context, cfg config.NotifyConfig, logger *logging.Logger) (notify.Notifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if !cfg.Token.IsSet() {
		logger.Warn(ctx, "notify enabled without a token, results will not be posted",
			zap.String("channel", cfg.Channel))
		return notify.NopNotifier{}, nil
	}
	n, err := notify.NewSlackNotifier(notify.SlackConfig{
		Token:  cfg.Token.Value(),
		APIURL: cfg.APIURL,
	}, logger.Underlying().Named("notify"))
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}
	return n, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "close failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.telemetry != nil {
		_ = a.telemetry.Shutdown(ctx)
	}
}
