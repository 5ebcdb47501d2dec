// Package config provides configuration loading for pdfqa.
//
// Values come from three layers, highest precedence first: PDFQA_* environment
// variables, an optional YAML file, and the defaults in NewDefaultConfig.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Pipeline variants.
const (
	VariantHybrid = "hybrid"
	VariantSimple = "simple"
)

// Compression fallback modes.
const (
	FallbackPassthrough = "passthrough"
	FallbackFail        = "fail"
)

// Config holds the complete pdfqa configuration.
type Config struct {
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Chunker     ChunkerConfig     `koanf:"chunker"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	LLM         LLMConfig         `koanf:"llm"`
	Compression CompressionConfig `koanf:"compression"`
	Cache       CacheConfig       `koanf:"cache"`
	Notify      NotifyConfig      `koanf:"notify"`
	HTTP        HTTPConfig        `koanf:"http"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// PipelineConfig selects the retrieval variant and per-call limits.
type PipelineConfig struct {
	// Variant is "hybrid" (dense+sparse ensemble, section metadata) or
	// "simple" (dense only, page metadata).
	Variant string `koanf:"variant"`
	// MaxSources caps the citations recorded per answer.
	MaxSources int `koanf:"max_sources"`
	// SectionInPrompt renders "[Section X]" before each context document.
	// Nil means "on for hybrid, off for simple".
	SectionInPrompt *bool `koanf:"section_in_prompt"`
	// CallTimeout bounds every external call (embedding, LLM, store).
	CallTimeout Duration `koanf:"call_timeout"`
}

// IncludeSection reports whether sections appear in prompts and sources.
func (p PipelineConfig) IncludeSection() bool {
	if p.SectionInPrompt != nil {
		return *p.SectionInPrompt
	}
	return p.Variant == VariantHybrid
}

// ChunkerConfig controls text windowing.
type ChunkerConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the dense index backend.
type VectorStoreConfig struct {
	Provider string       `koanf:"provider"`
	Path     string       `koanf:"path"`
	Compress bool         `koanf:"compress"`
	Qdrant   QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig configures the remote qdrant backend.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// RetrievalConfig holds dense, sparse and fusion parameters.
type RetrievalConfig struct {
	K            int     `koanf:"k"`
	FetchK       int     `koanf:"fetch_k"`
	FusedK       int     `koanf:"fused_k"`
	MMRLambda    float64 `koanf:"mmr_lambda"`
	DenseWeight  float64 `koanf:"dense_weight"`
	SparseWeight float64 `koanf:"sparse_weight"`
	BM25K1       float64 `koanf:"bm25_k1"`
	BM25B        float64 `koanf:"bm25_b"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"`
}

// LLMConfig configures the chat model used for extraction and generation.
type LLMConfig struct {
	Model             string  `koanf:"model"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            Secret  `koanf:"api_key"`
	Temperature       float64 `koanf:"temperature"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// CompressionConfig controls the contextual compression step.
type CompressionConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Fallback string `koanf:"fallback"`
}

// CacheConfig locates the SQLite answer cache.
type CacheConfig struct {
	Path string `koanf:"path"`
}

// NotifyConfig configures the chat notification sink.
type NotifyConfig struct {
	Enabled bool   `koanf:"enabled"`
	Channel string `koanf:"channel"`
	Token   Secret `koanf:"token"`
	APIURL  string `koanf:"api_url"`
}

// HTTPConfig configures the optional HTTP surface.
type HTTPConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig is the file/env facing subset of logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig is the file/env facing subset of telemetry.Config.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// NewDefaultConfig returns the configuration used when nothing is overridden.
func NewDefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Variant:     VariantHybrid,
			MaxSources:  10,
			CallTimeout: Duration(60 * time.Second),
		},
		Chunker: ChunkerConfig{
			ChunkSize:    2000,
			ChunkOverlap: 400,
		},
		VectorStore: VectorStoreConfig{
			Provider: "chromem",
			Path:     "db",
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
		},
		Retrieval: RetrievalConfig{
			K:            5,
			FetchK:       20,
			FusedK:       10,
			MMRLambda:    0.5,
			DenseWeight:  0.5,
			SparseWeight: 0.5,
			BM25K1:       1.5,
			BM25B:        0.75,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "openai",
			Model:    "text-embedding-ada-002",
		},
		LLM: LLMConfig{
			Model:       "gpt-3.5-turbo-0125",
			Temperature: 0,
		},
		Compression: CompressionConfig{
			Enabled:  true,
			Fallback: FallbackPassthrough,
		},
		Cache: CacheConfig{
			Path: "qa_cache.db",
		},
		Notify: NotifyConfig{
			Enabled: true,
			Channel: "#qa",
		},
		HTTP: HTTPConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Protocol:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Pipeline.Variant {
	case VariantHybrid, VariantSimple:
	default:
		errs = append(errs, fmt.Errorf("pipeline.variant must be %q or %q, got %q", VariantHybrid, VariantSimple, c.Pipeline.Variant))
	}
	if c.Pipeline.MaxSources <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_sources must be positive"))
	}
	if c.Pipeline.CallTimeout.Duration() <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.call_timeout must be positive"))
	}

	if c.Chunker.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunker.chunk_size must be positive"))
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.chunk_overlap must be in [0, chunk_size)"))
	}

	switch c.VectorStore.Provider {
	case "chromem":
		if c.VectorStore.Path == "" {
			errs = append(errs, fmt.Errorf("vectorstore.path is required for chromem"))
		}
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" || c.VectorStore.Qdrant.Port <= 0 {
			errs = append(errs, fmt.Errorf("vectorstore.qdrant host and port are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("vectorstore.provider must be chromem or qdrant, got %q", c.VectorStore.Provider))
	}

	r := c.Retrieval
	if r.K <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.k must be positive"))
	}
	if r.FetchK < r.K {
		errs = append(errs, fmt.Errorf("retrieval.fetch_k must be >= k"))
	}
	if r.FusedK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.fused_k must be positive"))
	}
	if r.MMRLambda < 0 || r.MMRLambda > 1 {
		errs = append(errs, fmt.Errorf("retrieval.mmr_lambda must be between 0 and 1"))
	}
	if r.DenseWeight < 0 || r.SparseWeight < 0 || r.DenseWeight+r.SparseWeight == 0 {
		errs = append(errs, fmt.Errorf("retrieval weights must be non-negative and not both zero"))
	}
	if r.BM25K1 < 0 || r.BM25B < 0 || r.BM25B > 1 {
		errs = append(errs, fmt.Errorf("retrieval.bm25_k1 must be >= 0 and bm25_b in [0, 1]"))
	}

	switch c.Embeddings.Provider {
	case "openai", "fastembed", "hash":
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be openai, fastembed or hash, got %q", c.Embeddings.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("llm.model is required"))
	}
	if c.LLM.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_second must be >= 0"))
	}

	switch c.Compression.Fallback {
	case FallbackPassthrough, FallbackFail:
	default:
		errs = append(errs, fmt.Errorf("compression.fallback must be %q or %q", FallbackPassthrough, FallbackFail))
	}

	if c.Cache.Path == "" {
		errs = append(errs, fmt.Errorf("cache.path is required"))
	}
	if c.Notify.Enabled && c.Notify.Channel == "" {
		errs = append(errs, fmt.Errorf("notify.channel is required when notify is enabled"))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
