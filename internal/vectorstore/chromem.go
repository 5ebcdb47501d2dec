package vectorstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

const (
	backendChromem = "chromem"

	// chromemCollection is the single collection inside a document directory.
	chromemCollection = "chunks"

	embedBatchSize = 64
)

var tracer = otel.Tracer("pdfqa.vectorstore")

// ChromemConfig holds configuration for the chromem-go backend.
type ChromemConfig struct {
	// Path is the parent directory; each document gets <Path>/<docID>.
	Path string
	// Compress enables gzip compression of the persisted gob files.
	Compress bool
	// FetchK is the number of candidates fetched before MMR selection.
	FetchK int
	// Lambda is the MMR relevance weight in [0, 1].
	Lambda float64
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "db"
	}
	if c.FetchK <= 0 {
		c.FetchK = 20
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("%w: mmr lambda must be in [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// ChromemIndex is a DenseIndex persisted with chromem-go.
type ChromemIndex struct {
	db       *chromem.DB
	coll     *chromem.Collection
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
	dir      string
	reused   bool

	mu     sync.RWMutex
	closed bool
}

// OpenChromem opens the index for docID, building it from chunks when
// <Path>/<docID> does not already hold one. An existing directory whose
// collection is missing or empty is built into.
func OpenChromem(ctx context.Context, config ChromemConfig, docID string, chunks []chunker.Chunk, embedder Embedder, logger *zap.Logger) (*ChromemIndex, error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Open")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", docID), attribute.Int("chunk_count", len(chunks)))

	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if docID == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dir := filepath.Join(config.Path, docID)
	existed, err := dirExists(dir)
	if err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(dir, config.Compress)
	if err != nil {
		BuildsTotal.WithLabelValues(backendChromem, resultFailed).Inc()
		return nil, fmt.Errorf("opening chromem db %s: %w", dir, err)
	}

	idx := &ChromemIndex{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
		dir:      dir,
	}
	embedFunc := idx.embedFunc()

	if existed {
		if coll := db.GetCollection(chromemCollection, embedFunc); coll != nil && coll.Count() > 0 {
			idx.coll = coll
			idx.reused = true
			BuildsTotal.WithLabelValues(backendChromem, resultReused).Inc()
			IndexedChunks.WithLabelValues(backendChromem).Set(float64(coll.Count()))
			span.SetAttributes(attribute.Bool("reused", true))
			logger.Info("reusing persisted dense index",
				zap.String("document_id", docID),
				zap.String("path", dir),
				zap.Int("count", coll.Count()))
			return idx, nil
		}
		logger.Warn("persisted index directory has no documents, rebuilding",
			zap.String("document_id", docID),
			zap.String("path", dir))
	}

	if err := idx.build(ctx, chunks); err != nil {
		BuildsTotal.WithLabelValues(backendChromem, resultFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !existed {
			// A partial directory would be mistaken for a complete index.
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				logger.Warn("failed to remove partial index", zap.String("path", dir), zap.Error(rmErr))
			}
		}
		return nil, err
	}

	BuildsTotal.WithLabelValues(backendChromem, resultBuilt).Inc()
	IndexedChunks.WithLabelValues(backendChromem).Set(float64(idx.coll.Count()))
	logger.Info("built dense index",
		zap.String("document_id", docID),
		zap.String("path", dir),
		zap.Int("count", idx.coll.Count()))
	return idx, nil
}

func dirExists(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking index directory %s: %w", path, err)
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("%w: %s is not a directory", ErrInvalidConfig, path)
	}
	return true, nil
}

// embedFunc adapts the Embedder for chromem's text queries.
func (i *ChromemIndex) embedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return i.embedder.EmbedQuery(ctx, text)
	}
}

func (i *ChromemIndex) build(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyIndex
	}
	coll, err := i.db.GetOrCreateCollection(chromemCollection, nil, i.embedFunc())
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}
		vecs, err := i.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embedding chunks %d-%d: got %d vectors", start, end, len(vecs))
		}
		for j, c := range batch {
			docs = append(docs, chromem.Document{
				ID:        c.ID,
				Metadata:  chunkMetadata(c),
				Embedding: vecs[j],
				Content:   c.Text,
			})
		}
	}

	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	if coll.Count() == 0 {
		return ErrEmptyIndex
	}
	i.coll = coll
	return nil
}

// Retrieve fetches FetchK candidates by cosine similarity and returns k of
// them chosen by maximal marginal relevance.
func (i *ChromemIndex) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrClosed
	}
	if k <= 0 {
		return []Result{}, nil
	}

	start := time.Now()
	defer func() {
		RetrieveDuration.WithLabelValues(backendChromem).Observe(time.Since(start).Seconds())
	}()

	n := min(max(i.config.FetchK, k), i.coll.Count())
	if n == 0 {
		return []Result{}, nil
	}
	qvec, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed query failed")
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	res, err := i.coll.QueryEmbedding(ctx, qvec, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	cands := make([]candidate, len(res))
	for j, r := range res {
		cands[j] = candidate{
			result: Result{
				Chunk: chunkFromMetadata(r.ID, r.Content, r.Metadata),
				Score: float64(r.Similarity),
			},
			embedding: r.Embedding,
		}
	}
	out := selectMMR(cands, k, i.config.Lambda)
	span.SetAttributes(attribute.Int("results_count", len(out)))
	return out, nil
}

// Chunks returns every stored chunk ordered by origin index. chromem has no
// listing call, so the collection is read back through its gob export.
func (i *ChromemIndex) Chunks(ctx context.Context) ([]chunker.Chunk, error) {
	_, span := tracer.Start(ctx, "ChromemIndex.Chunks")
	defer span.End()

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrClosed
	}
	if i.coll == nil {
		return []chunker.Chunk{}, nil
	}

	var buf bytes.Buffer
	if err := i.db.ExportToWriter(&buf, false, "", chromemCollection); err != nil {
		return nil, fmt.Errorf("exporting collection: %w", err)
	}
	var dump struct {
		Collections map[string]*struct {
			Documents map[string]*chromem.Document
		}
	}
	if err := gob.NewDecoder(&buf).Decode(&dump); err != nil {
		return nil, fmt.Errorf("decoding collection export: %w", err)
	}

	coll := dump.Collections[chromemCollection]
	if coll == nil {
		return []chunker.Chunk{}, nil
	}
	out := make([]chunker.Chunk, 0, len(coll.Documents))
	for id, doc := range coll.Documents {
		if doc == nil {
			continue
		}
		out = append(out, chunkFromMetadata(id, doc.Content, doc.Metadata))
	}
	sortByOrigin(out)
	span.SetAttributes(attribute.Int("chunk_count", len(out)))
	return out, nil
}

// Count returns the number of stored chunks.
func (i *ChromemIndex) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.coll == nil {
		return 0
	}
	return i.coll.Count()
}

// Reused reports whether the index was loaded from disk.
func (i *ChromemIndex) Reused() bool { return i.reused }

// Dir returns the persistence directory of this index.
func (i *ChromemIndex) Dir() string { return i.dir }

// Close marks the index closed. chromem persists on every write, so there
// is nothing to flush.
func (i *ChromemIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}
