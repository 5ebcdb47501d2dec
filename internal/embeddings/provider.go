package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder computes vectors for chunk text and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known dimension and releasable resources.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "openai", "fastembed" or "hash".
	Provider string
	Model    string
	// BaseURL overrides the OpenAI endpoint.
	BaseURL string
	APIKey  string
	// CacheDir is the model cache directory (FastEmbed only).
	CacheDir string
	// Timeout bounds each embedding call; 0 disables it.
	Timeout time.Duration
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "openai", "":
		p, err = NewOpenAIProvider(OpenAIConfig{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
		})
	case "fastembed":
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "hash":
		p = NewHashProvider(0)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = cfg.Provider
	}
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", model),
		zap.Int("dimension", p.Dimension()))
	inst := &instrumented{Provider: p, model: model, metrics: NewMetrics(logger), timeout: cfg.Timeout}
	return inst, nil
}

// instrumented records generation metrics around every call.
type instrumented struct {
	Provider
	model   string
	metrics *Metrics
	timeout time.Duration
}

// Instrument wraps p so each call is recorded in m.
func Instrument(p Provider, model string, m *Metrics) Provider {
	return &instrumented{Provider: p, model: model, metrics: m}
}

func (i *instrumented) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, i.timeout)
}

func (i *instrumented) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	start := time.Now()
	vecs, err := i.Provider.EmbedDocuments(ctx, texts)
	i.metrics.RecordGeneration(ctx, i.model, "embed_documents", time.Since(start), len(texts), err)
	return vecs, err
}

func (i *instrumented) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	start := time.Now()
	vec, err := i.Provider.EmbedQuery(ctx, text)
	i.metrics.RecordGeneration(ctx, i.model, "embed_query", time.Since(start), 1, err)
	return vec, err
}
