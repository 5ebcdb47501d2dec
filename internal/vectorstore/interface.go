package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

var (
	// ErrEmptyIndex is returned when a build stores no documents.
	ErrEmptyIndex = errors.New("vectorstore: index is empty")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("vectorstore: invalid configuration")

	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("vectorstore: index closed")
)

// Embedder computes vectors for chunk text and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Result is a retrieved chunk with its similarity to the query.
type Result struct {
	Chunk chunker.Chunk
	Score float64
}

// DenseIndex is a persisted vector index over one document's chunks.
type DenseIndex interface {
	// Retrieve returns up to k chunks selected by maximal marginal relevance.
	Retrieve(ctx context.Context, query string, k int) ([]Result, error)
	// Count returns the number of stored chunks.
	Count() int
	// Reused reports whether the index was loaded instead of built.
	Reused() bool
	// Chunks returns every stored chunk ordered by origin index.
	Chunks(ctx context.Context) ([]chunker.Chunk, error)
	Close() error
}

// DocumentID derives the index key from a source path: the basename
// without its extension.
func DocumentID(path string) string {
	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	if id == "" || id == "." || id == string(filepath.Separator) {
		return "document"
	}
	return id
}
