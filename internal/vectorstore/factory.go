package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

// Config selects and configures a dense index backend.
type Config struct {
	// Provider is "chromem" (default) or "qdrant".
	Provider string
	Chromem  ChromemConfig
	Qdrant   QdrantConfig
}

// Open opens or builds the dense index for docID with the configured backend.
func Open(ctx context.Context, cfg Config, docID string, chunks []chunker.Chunk, embedder Embedder, logger *zap.Logger) (DenseIndex, error) {
	switch cfg.Provider {
	case "chromem", "":
		return OpenChromem(ctx, cfg.Chromem, docID, chunks, embedder, logger)
	case "qdrant":
		return OpenQdrant(ctx, cfg.Qdrant, docID, chunks, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
