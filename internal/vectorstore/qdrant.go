package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/sanitize"
)

const (
	backendQdrant = "qdrant"

	// QdrantCollectionPrefix namespaces per-document collections.
	QdrantCollectionPrefix = "pdfqa"

	upsertBatchSize = 128
	scrollPageSize  = 256
)

// pointNamespace derives stable point ids from chunk ids.
var pointNamespace = uuid.NewMD5(uuid.NameSpaceURL, []byte("https://github.com/fyrsmithlabs/pdfqa/chunks"))

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// VectorSize is the embedding dimension used when creating collections.
	VectorSize int
	FetchK     int
	Lambda     float64
	// MaxMessageSize bounds gRPC messages. Default 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.FetchK <= 0 {
		c.FetchK = 20
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("%w: mmr lambda must be in [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// qdrantAPI is the subset of *qdrant.Client the index uses.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	ScrollAndOffset(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)
	Close() error
}

// QdrantIndex is a DenseIndex stored in a Qdrant collection.
type QdrantIndex struct {
	client     qdrantAPI
	collection string
	embedder   Embedder
	config     QdrantConfig
	logger     *zap.Logger
	reused     bool

	mu     sync.RWMutex
	count  int
	closed bool
}

// OpenQdrant connects to Qdrant and opens the collection for docID,
// building it from chunks when it does not exist or holds no points.
func OpenQdrant(ctx context.Context, config QdrantConfig, docID string, chunks []chunker.Chunk, embedder Embedder, logger *zap.Logger) (*QdrantIndex, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		BuildsTotal.WithLabelValues(backendQdrant, resultFailed).Inc()
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	idx, err := openQdrant(ctx, client, config, docID, chunks, embedder, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func openQdrant(ctx context.Context, client qdrantAPI, config QdrantConfig, docID string, chunks []chunker.Chunk, embedder Embedder, logger *zap.Logger) (*QdrantIndex, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Open")
	defer span.End()

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

	idx := &QdrantIndex{
		client:     client,
		collection: sanitize.CollectionName(QdrantCollectionPrefix, docID),
		embedder:   embedder,
		config:     config,
		logger:     logger,
	}
	span.SetAttributes(attribute.String("collection", idx.collection))

	exists, err := client.CollectionExists(ctx, idx.collection)
	if err != nil {
		BuildsTotal.WithLabelValues(backendQdrant, resultFailed).Inc()
		return nil, fmt.Errorf("checking collection %s: %w", idx.collection, err)
	}
	if exists {
		n, err := idx.countPoints(ctx)
		if err != nil {
			BuildsTotal.WithLabelValues(backendQdrant, resultFailed).Inc()
			return nil, err
		}
		if n > 0 {
			idx.count = n
			idx.reused = true
			BuildsTotal.WithLabelValues(backendQdrant, resultReused).Inc()
			IndexedChunks.WithLabelValues(backendQdrant).Set(float64(n))
			logger.Info("reusing qdrant collection",
				zap.String("collection", idx.collection),
				zap.Int("count", n))
			return idx, nil
		}
	} else {
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: idx.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(config.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			BuildsTotal.WithLabelValues(backendQdrant, resultFailed).Inc()
			return nil, fmt.Errorf("creating collection %s: %w", idx.collection, err)
		}
	}

	if err := idx.build(ctx, chunks); err != nil {
		BuildsTotal.WithLabelValues(backendQdrant, resultFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	BuildsTotal.WithLabelValues(backendQdrant, resultBuilt).Inc()
	IndexedChunks.WithLabelValues(backendQdrant).Set(float64(idx.count))
	logger.Info("built qdrant collection",
		zap.String("collection", idx.collection),
		zap.Int("count", idx.count))
	return idx, nil
}

func (i *QdrantIndex) countPoints(ctx context.Context) (int, error) {
	n, err := i.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: i.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", i.collection, err)
	}
	return int(n), nil
}

func (i *QdrantIndex) build(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyIndex
	}
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
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

		points := make([]*qdrant.PointStruct, len(batch))
		for j, c := range batch {
			payload := map[string]any{metaText: c.Text}
			for k, v := range chunkMetadata(c) {
				payload[k] = v
			}
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(c.ID)),
				Vectors: qdrant.NewVectors(vecs[j]...),
				Payload: qdrant.NewValueMap(payload),
			}
		}
		_, err = i.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: i.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points: %w", err)
		}
	}

	n, err := i.countPoints(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEmptyIndex
	}
	i.count = n
	return nil
}

// PointID maps a chunk id to a stable UUID.
func PointID(chunkID string) string {
	return uuid.NewMD5(pointNamespace, []byte(chunkID)).String()
}

// Retrieve fetches FetchK candidates with their vectors and returns k of
// them chosen by maximal marginal relevance.
func (i *QdrantIndex) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Retrieve")
	defer span.End()

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
		RetrieveDuration.WithLabelValues(backendQdrant).Observe(time.Since(start).Seconds())
	}()

	qvec, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(qvec...),
		Limit:          qdrant.PtrOf(uint64(max(i.config.FetchK, k))),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("querying collection %s: %w", i.collection, err)
	}

	cands := make([]candidate, 0, len(points))
	for _, p := range points {
		md := payloadStrings(p.GetPayload())
		text := md[metaText]
		var vec []float32
		if dense := p.GetVectors().GetVector().GetDenseVector(); dense != nil {
			vec = dense.GetData()
		}
		cands = append(cands, candidate{
			result: Result{
				Chunk: chunkFromMetadata(chunker.ContentID(text), text, md),
				Score: float64(p.GetScore()),
			},
			embedding: vec,
		})
	}
	out := selectMMR(cands, k, i.config.Lambda)
	span.SetAttributes(attribute.Int("results_count", len(out)))
	return out, nil
}

// Chunks scrolls the whole collection and returns its chunks ordered by
// origin index.
func (i *QdrantIndex) Chunks(ctx context.Context) ([]chunker.Chunk, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Chunks")
	defer span.End()

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrClosed
	}

	out := make([]chunker.Chunk, 0, i.count)
	var offset *qdrant.PointId
	for {
		points, next, err := i.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: i.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scrolling collection %s: %w", i.collection, err)
		}
		for _, p := range points {
			md := payloadStrings(p.GetPayload())
			text := md[metaText]
			out = append(out, chunkFromMetadata(chunker.ContentID(text), text, md))
		}
		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}
	sortByOrigin(out)
	span.SetAttributes(attribute.Int("chunk_count", len(out)))
	return out, nil
}

func payloadStrings(payload map[string]*qdrant.Value) map[string]string {
	md := make(map[string]string, len(payload))
	for key, v := range payload {
		md[key] = v.GetStringValue()
	}
	return md
}

// Count returns the number of stored points.
func (i *QdrantIndex) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.count
}

// Reused reports whether the collection already held points.
func (i *QdrantIndex) Reused() bool { return i.reused }

// Collection returns the Qdrant collection name.
func (i *QdrantIndex) Collection() string { return i.collection }

// Close closes the gRPC connection.
func (i *QdrantIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.client.Close()
}
