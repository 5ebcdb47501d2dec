package vectorstore

import (
	"context"
	"errors"
	"sync"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/embeddings"
)

// countingEmbedder wraps the hashing provider and counts calls.
type countingEmbedder struct {
	inner *embeddings.HashProvider

	mu         sync.Mutex
	docCalls   int
	docTexts   int
	queryCalls int
	failDocs   error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: embeddings.NewHashProvider(128)}
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.docCalls++
	e.docTexts += len(texts)
	fail := e.failDocs
	e.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return e.inner.EmbedDocuments(ctx, texts)
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queryCalls++
	e.mu.Unlock()
	return e.inner.EmbedQuery(ctx, text)
}

var errEmbedDown = errors.New("embedding service down")

func handbookChunks() []chunker.Chunk {
	texts := []string{
		"Acme Corp employee handbook welcome message",
		"Policy 3.1 discusses vacation policy and paid time off",
		"The office is closed on public holidays",
		"Section 5.2 termination requires two weeks notice",
		"Parking is available in the north garage",
	}
	chunks := make([]chunker.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = chunker.New(t, i+1, i)
	}
	return chunks
}
