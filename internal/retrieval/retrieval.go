// Package retrieval pairs the dense and sparse indices of one document and
// selects chunks for a question with either the simple (dense only) or the
// hybrid (dense + sparse ensemble) strategy.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/ensemble"
	"github.com/fyrsmithlabs/pdfqa/internal/sparse"
	"github.com/fyrsmithlabs/pdfqa/internal/vectorstore"
)

// Strategy selects how chunks are retrieved.
type Strategy string

const (
	// StrategySimple uses the dense index only.
	StrategySimple Strategy = "simple"
	// StrategyHybrid fuses dense and sparse results.
	StrategyHybrid Strategy = "hybrid"
)

// ErrInvalidStrategy is returned for an unknown strategy name.
var ErrInvalidStrategy = errors.New("retrieval: invalid strategy")

var tracer = otel.Tracer("pdfqa.retrieval")

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySimple, StrategyHybrid:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
}

// DocumentIndex is the dense and sparse index pair built from the same
// deduplicated chunks. Both sides identify chunks by content, so fusion can
// merge a chunk found by both.
type DocumentIndex struct {
	DocumentID string
	Dense      vectorstore.DenseIndex
	// Sparse is nil for the simple strategy.
	Sparse *sparse.Index
}

// NewDocumentIndex pairs dense with a BM25 index over chunks. The sparse
// side is built only for the hybrid strategy.
func NewDocumentIndex(docID string, dense vectorstore.DenseIndex, chunks []chunker.Chunk, strategy Strategy, bm25 sparse.Config) *DocumentIndex {
	idx := &DocumentIndex{DocumentID: docID, Dense: dense}
	if strategy == StrategyHybrid {
		idx.Sparse = sparse.Build(chunks, bm25)
	}
	return idx
}

// Close releases the dense index.
func (d *DocumentIndex) Close() error {
	if d.Dense == nil {
		return nil
	}
	return d.Dense.Close()
}

// Config configures a Retriever.
type Config struct {
	Strategy Strategy
	// K is the number of results requested from each index.
	K int
	// FusedK caps the fused hybrid list.
	FusedK  int
	Weights ensemble.Weights
}

// Retriever answers retrieval requests against one DocumentIndex.
type Retriever struct {
	index  *DocumentIndex
	config Config
	logger *zap.Logger
}

// NewRetriever validates cfg against index.
func NewRetriever(index *DocumentIndex, cfg Config, logger *zap.Logger) (*Retriever, error) {
	if index == nil || index.Dense == nil {
		return nil, errors.New("retrieval: dense index is required")
	}
	if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
		return nil, err
	}
	if cfg.Strategy == StrategyHybrid && index.Sparse == nil {
		return nil, errors.New("retrieval: hybrid strategy needs a sparse index")
	}
	if cfg.K <= 0 {
		cfg.K = 5
	}
	if cfg.FusedK <= 0 {
		cfg.FusedK = 2 * cfg.K
	}
	if cfg.Weights == (ensemble.Weights{}) {
		cfg.Weights = ensemble.DefaultWeights
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{index: index, config: cfg, logger: logger}, nil
}

// Strategy returns the configured strategy.
func (r *Retriever) Strategy() Strategy { return r.config.Strategy }

// Retrieve returns the ranked chunks for query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]ensemble.ScoredChunk, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("strategy", string(r.config.Strategy)),
		attribute.Int("k", r.config.K),
	)

	dense, err := r.index.Dense.Retrieve(ctx, query, r.config.K)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dense retrieval failed")
		return nil, fmt.Errorf("dense retrieval: %w", err)
	}
	denseCands := make([]ensemble.Candidate, len(dense))
	for i, d := range dense {
		denseCands[i] = ensemble.Candidate(d)
	}

	if r.config.Strategy == StrategySimple {
		out := ensemble.FromDense(denseCands, r.config.K)
		span.SetAttributes(attribute.Int("results_count", len(out)))
		return out, nil
	}

	lexical, err := r.index.Sparse.Retrieve(ctx, query, r.config.K)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sparse retrieval failed")
		return nil, fmt.Errorf("sparse retrieval: %w", err)
	}
	sparseCands := make([]ensemble.Candidate, len(lexical))
	for i, s := range lexical {
		sparseCands[i] = ensemble.Candidate(s)
	}

	out := ensemble.Fuse(denseCands, sparseCands, r.config.Weights, r.config.FusedK)
	r.logger.Debug("hybrid retrieval",
		zap.Int("dense", len(denseCands)),
		zap.Int("sparse", len(sparseCands)),
		zap.Int("fused", len(out)))
	span.SetAttributes(attribute.Int("results_count", len(out)))
	return out, nil
}
