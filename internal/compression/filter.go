package compression

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/ensemble"
	"github.com/fyrsmithlabs/pdfqa/internal/llm"
)

const tracerName = "github.com/fyrsmithlabs/pdfqa/internal/compression"
const meterName = "compression"

// Fallback selects what happens when an extraction call fails.
type Fallback string

const (
	// FallbackPassthrough keeps the original chunk.
	FallbackPassthrough Fallback = "passthrough"
	// FallbackFail aborts the whole compression step.
	FallbackFail Fallback = "fail"
)

// ErrCompressionFailed wraps extraction failures under FallbackFail.
var ErrCompressionFailed = errors.New("compression failed")

// Extractor is the subset of llm.Client the filter needs.
type Extractor interface {
	ExtractRelevant(ctx context.Context, text, question string) (string, error)
}

// Config controls the filter.
type Config struct {
	Enabled  bool
	Fallback Fallback
}

// Filter reduces retrieved chunks to their question-relevant passages.
type Filter struct {
	extractor Extractor
	config    Config
	logger    *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	chunksCounter metric.Int64Counter
	ratio         metric.Float64Histogram
	fallbacks     metric.Int64Counter
}

// NewFilter creates a filter around extractor.
func NewFilter(extractor Extractor, cfg Config, logger *zap.Logger) (*Filter, error) {
	if extractor == nil && cfg.Enabled {
		return nil, fmt.Errorf("compression: extractor is required when enabled")
	}
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackPassthrough
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Filter{
		extractor: extractor,
		config:    cfg,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		meter:     otel.Meter(meterName),
	}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return f, nil
}

// Compress returns the compressed chunks in input order. Metadata is carried
// over from the source chunk; only Text changes.
func (f *Filter) Compress(ctx context.Context, question string, docs []ensemble.ScoredChunk) ([]chunker.Chunk, error) {
	out := make([]chunker.Chunk, 0, len(docs))
	if !f.config.Enabled {
		for _, d := range docs {
			out = append(out, d.Chunk)
		}
		return out, nil
	}

	ctx, span := f.tracer.Start(ctx, "compression.compress",
		trace.WithAttributes(attribute.Int("documents", len(docs))))
	defer span.End()

	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		extracted, err := f.extractor.ExtractRelevant(ctx, d.Chunk.Text, question)
		if err != nil {
			span.RecordError(err)
			if f.config.Fallback == FallbackFail {
				return nil, fmt.Errorf("%w: document %d: %w", ErrCompressionFailed, i, err)
			}
			f.fallbacks.Add(ctx, 1)
			f.logger.Warn("compression failed, passing remaining chunks through",
				zap.String("chunk_id", d.Chunk.ID),
				zap.Int("remaining", len(docs)-i),
				zap.Error(err))
			for _, rest := range docs[i:] {
				f.record(ctx, "fallback")
				out = append(out, rest.Chunk)
			}
			break
		}

		switch {
		case HasNoOutput(extracted):
			f.record(ctx, "dropped")
		case extracted == "":
			f.record(ctx, "kept")
			out = append(out, d.Chunk)
		default:
			c := d.Chunk
			if n := len(c.Text); n > 0 {
				f.ratio.Record(ctx, float64(len(extracted))/float64(n))
			}
			c.Text = extracted
			f.record(ctx, "compressed")
			out = append(out, c)
		}
	}

	span.SetAttributes(attribute.Int("kept", len(out)))
	f.logger.Debug("compressed context",
		zap.Int("input", len(docs)),
		zap.Int("output", len(out)))
	return out, nil
}

func (f *Filter) record(ctx context.Context, outcome string) {
	f.chunksCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// HasNoOutput reports whether text is the bare "nothing relevant" marker.
func HasNoOutput(text string) bool {
	return strings.TrimSpace(text) == llm.NoOutput
}

func (f *Filter) initMetrics() error {
	var err error

	f.chunksCounter, err = f.meter.Int64Counter(
		"compression.chunks_total",
		metric.WithDescription("Chunks processed by contextual compression"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create chunks counter: %w", err)
	}

	f.ratio, err = f.meter.Float64Histogram(
		"compression.ratio",
		metric.WithDescription("Compressed length divided by original length"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 0.75, 1.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create compression ratio histogram: %w", err)
	}

	f.fallbacks, err = f.meter.Int64Counter(
		"compression.fallbacks_total",
		metric.WithDescription("Extraction failures answered with the original chunk"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fallback counter: %w", err)
	}
	return nil
}
