package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/retrieval"
	"github.com/fyrsmithlabs/pdfqa/internal/sparse"
	"github.com/fyrsmithlabs/pdfqa/internal/vectorstore"
)

// StoreIndexer opens the dense index through vectorstore and pairs it with
// a BM25 index for the hybrid strategy.
type StoreIndexer struct {
	Store    vectorstore.Config
	Embedder vectorstore.Embedder
	Strategy retrieval.Strategy
	BM25     sparse.Config
	Logger   *zap.Logger
}

// Index implements Indexer. A reused dense index serves the chunks it was
// built from, so BM25 is built over the same stored chunks rather than
// the freshly split ones.
func (s *StoreIndexer) Index(ctx context.Context, docID string, chunks []chunker.Chunk) (*retrieval.DocumentIndex, error) {
	dense, err := vectorstore.Open(ctx, s.Store, docID, chunks, s.Embedder, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening dense index: %w", err)
	}
	if dense.Reused() && s.Strategy == retrieval.StrategyHybrid {
		stored, err := dense.Chunks(ctx)
		if err != nil {
			_ = dense.Close()
			return nil, fmt.Errorf("reading stored chunks: %w", err)
		}
		if !sameChunks(stored, chunks) && s.Logger != nil {
			s.Logger.Warn("persisted index differs from the current document, serving stored chunks",
				zap.String("document_id", docID),
				zap.Int("stored", len(stored)),
				zap.Int("current", len(chunks)))
		}
		chunks = stored
	}
	return retrieval.NewDocumentIndex(docID, dense, chunks, s.Strategy, s.BM25), nil
}

func sameChunks(a, b []chunker.Chunk) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
