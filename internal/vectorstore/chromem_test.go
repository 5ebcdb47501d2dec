package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

func chromemConfig(t *testing.T) ChromemConfig {
	t.Helper()
	return ChromemConfig{Path: t.TempDir(), FetchK: 20, Lambda: 0.5}
}

func TestOpenChromem_BuildAndRetrieve(t *testing.T) {
	ctx := context.Background()
	emb := newCountingEmbedder()
	chunks := handbookChunks()

	idx, err := OpenChromem(ctx, chromemConfig(t), "handbook", chunks, emb, nil)
	require.NoError(t, err)
	defer idx.Close()

	assert.False(t, idx.Reused())
	assert.Equal(t, len(chunks), idx.Count())
	assert.Equal(t, len(chunks), emb.docTexts)

	results, err := idx.Retrieve(ctx, "What is their vacation policy?", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	top := results[0].Chunk
	assert.Contains(t, top.Text, "vacation policy")
	assert.Equal(t, "3.1", top.Section)
	assert.Equal(t, 2, top.Page)
	assert.Equal(t, 1, top.OriginIndex)
	assert.Equal(t, chunker.ContentID(top.Text), top.ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestOpenChromem_ReusesPersistedIndex(t *testing.T) {
	ctx := context.Background()
	cfg := chromemConfig(t)

	first, err := OpenChromem(ctx, cfg, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	reusedBefore := testutil.ToFloat64(BuildsTotal.WithLabelValues(backendChromem, resultReused))

	emb := newCountingEmbedder()
	second, err := OpenChromem(ctx, cfg, "handbook", handbookChunks(), emb, nil)
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, second.Reused())
	assert.Equal(t, 0, emb.docCalls, "a persisted document must not be embedded again")
	assert.Equal(t, len(handbookChunks()), second.Count())
	assert.Equal(t, reusedBefore+1, testutil.ToFloat64(BuildsTotal.WithLabelValues(backendChromem, resultReused)))

	results, err := second.Retrieve(ctx, "termination notice", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "5.2", results[0].Chunk.Section)
}

func TestChromemIndex_ChunksListsStoredDocuments(t *testing.T) {
	ctx := context.Background()
	cfg := chromemConfig(t)

	first, err := OpenChromem(ctx, cfg, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	edited := []chunker.Chunk{chunker.New("Vacation policy was rewritten in 4.4", 1, 0)}
	second, err := OpenChromem(ctx, cfg, "handbook", edited, newCountingEmbedder(), nil)
	require.NoError(t, err)
	defer second.Close()
	require.True(t, second.Reused())

	stored, err := second.Chunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, handbookChunks(), stored)

	require.NoError(t, second.Close())
	_, err = second.Chunks(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenChromem_ZeroLambdaIsKept(t *testing.T) {
	cfg := chromemConfig(t)
	cfg.Lambda = 0

	idx, err := OpenChromem(context.Background(), cfg, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	require.NoError(t, err)
	defer idx.Close()

	assert.Zero(t, idx.config.Lambda)
}

func TestOpenChromem_DifferentDocumentsDoNotShare(t *testing.T) {
	ctx := context.Background()
	cfg := chromemConfig(t)

	_, err := OpenChromem(ctx, cfg, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	require.NoError(t, err)

	emb := newCountingEmbedder()
	other, err := OpenChromem(ctx, cfg, "benefits", []chunker.Chunk{chunker.New("dental plan", 1, 0)}, emb, nil)
	require.NoError(t, err)

	assert.False(t, other.Reused())
	assert.Equal(t, 1, other.Count())
	assert.Equal(t, 1, emb.docTexts)
	assert.DirExists(t, filepath.Join(cfg.Path, "handbook"))
	assert.DirExists(t, filepath.Join(cfg.Path, "benefits"))
}

func TestOpenChromem_BuildsIntoEmptyDirectory(t *testing.T) {
	cfg := chromemConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Path, "handbook"), 0o700))

	emb := newCountingEmbedder()
	idx, err := OpenChromem(context.Background(), cfg, "handbook", handbookChunks(), emb, nil)
	require.NoError(t, err)

	assert.False(t, idx.Reused())
	assert.Equal(t, len(handbookChunks()), idx.Count())
	assert.Positive(t, emb.docCalls)
}

func TestOpenChromem_EmptyChunks(t *testing.T) {
	cfg := chromemConfig(t)

	_, err := OpenChromem(context.Background(), cfg, "empty", nil, newCountingEmbedder(), nil)

	require.ErrorIs(t, err, ErrEmptyIndex)
	assert.NoDirExists(t, filepath.Join(cfg.Path, "empty"), "failed builds must not leave a reusable directory")
}

func TestOpenChromem_EmbeddingFailure(t *testing.T) {
	cfg := chromemConfig(t)
	emb := newCountingEmbedder()
	emb.failDocs = errEmbedDown

	_, err := OpenChromem(context.Background(), cfg, "handbook", handbookChunks(), emb, nil)

	require.ErrorIs(t, err, errEmbedDown)
	assert.NoDirExists(t, filepath.Join(cfg.Path, "handbook"))
}

func TestOpenChromem_InvalidArguments(t *testing.T) {
	ctx := context.Background()

	_, err := OpenChromem(ctx, chromemConfig(t), "handbook", handbookChunks(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = OpenChromem(ctx, chromemConfig(t), "", handbookChunks(), newCountingEmbedder(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := chromemConfig(t)
	cfg.Lambda = 2
	_, err = OpenChromem(ctx, cfg, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemIndex_RetrieveClampsToCount(t *testing.T) {
	ctx := context.Background()
	cfg := chromemConfig(t)
	cfg.FetchK = 100

	idx, err := OpenChromem(ctx, cfg, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	require.NoError(t, err)

	results, err := idx.Retrieve(ctx, "policy", 50)
	require.NoError(t, err)
	assert.Len(t, results, len(handbookChunks()))

	seen := map[string]bool{}
	for _, r := range results {
		assert.False(t, seen[r.Chunk.ID], "duplicate result")
		seen[r.Chunk.ID] = true
	}

	empty, err := idx.Retrieve(ctx, "policy", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestChromemIndex_Closed(t *testing.T) {
	idx, err := OpenChromem(context.Background(), chromemConfig(t), "handbook", handbookChunks(), newCountingEmbedder(), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = idx.Retrieve(context.Background(), "policy", 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Factory(t *testing.T) {
	ctx := context.Background()

	idx, err := Open(ctx, Config{Chromem: chromemConfig(t)}, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	require.NoError(t, err)
	_, ok := idx.(*ChromemIndex)
	assert.True(t, ok)

	_, err = Open(ctx, Config{Provider: "pinecone"}, "handbook", handbookChunks(), newCountingEmbedder(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
