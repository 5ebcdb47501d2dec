package compression

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/ensemble"
	"github.com/fyrsmithlabs/pdfqa/internal/llm"
)

type scriptedExtractor struct {
	replies map[string]string
	errs    map[string]error
	calls   int
}

func (s *scriptedExtractor) ExtractRelevant(_ context.Context, text, _ string) (string, error) {
	s.calls++
	if err, ok := s.errs[text]; ok {
		return "", err
	}
	return s.replies[text], nil
}

func docs(texts ...string) []ensemble.ScoredChunk {
	out := make([]ensemble.ScoredChunk, len(texts))
	for i, text := range texts {
		c := chunker.New(text, i+1, i)
		out[i] = ensemble.ScoredChunk{Chunk: c, Score: 1}
	}
	return out
}

func TestFilter_Compress(t *testing.T) {
	ex := &scriptedExtractor{replies: map[string]string{
		"3.1 Vacation. Employees accrue 15 days. Parking is free.": "Employees accrue 15 days.",
		"Cafeteria hours are 9 to 5.":                              llm.NoOutput,
		"Welcome aboard.":                                          "",
	}}
	f, err := NewFilter(ex, Config{Enabled: true}, nil)
	require.NoError(t, err)

	in := docs(
		"3.1 Vacation. Employees accrue 15 days. Parking is free.",
		"Cafeteria hours are 9 to 5.",
		"Welcome aboard.",
	)
	out, err := f.Compress(context.Background(), "How many vacation days?", in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Employees accrue 15 days.", out[0].Text)
	assert.Equal(t, "3.1", out[0].Section)
	assert.Equal(t, 1, out[0].Page)
	assert.Equal(t, in[0].Chunk.ID, out[0].ID)

	assert.Equal(t, "Welcome aboard.", out[1].Text)
	assert.Equal(t, 3, out[1].Page)
	assert.Equal(t, 3, ex.calls)
}

func TestFilter_Disabled(t *testing.T) {
	f, err := NewFilter(nil, Config{Enabled: false}, nil)
	require.NoError(t, err)

	in := docs("a", "b")
	out, err := f.Compress(context.Background(), "q", in)
	require.NoError(t, err)
	assert.Equal(t, []chunker.Chunk{in[0].Chunk, in[1].Chunk}, out)
}

func TestFilter_RequiresExtractorWhenEnabled(t *testing.T) {
	_, err := NewFilter(nil, Config{Enabled: true}, nil)
	assert.Error(t, err)
}

func TestFilter_Fallback(t *testing.T) {
	boom := errors.New("upstream 500")

	t.Run("passthrough keeps remaining originals", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		ex := &scriptedExtractor{
			replies: map[string]string{"b": "b-short"},
			errs:    map[string]error{"a": boom},
		}
		f, err := NewFilter(ex, Config{Enabled: true, Fallback: FallbackPassthrough}, zap.New(core))
		require.NoError(t, err)

		out, err := f.Compress(context.Background(), "q", docs("a", "b"))
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].Text)
		assert.Equal(t, "b", out[1].Text)
		assert.Equal(t, 1, ex.calls)
		assert.Equal(t, 1, logs.FilterMessage("compression failed, passing remaining chunks through").Len())
	})

	t.Run("fail aborts", func(t *testing.T) {
		ex := &scriptedExtractor{errs: map[string]error{"a": boom}}
		f, err := NewFilter(ex, Config{Enabled: true, Fallback: FallbackFail}, nil)
		require.NoError(t, err)

		_, err = f.Compress(context.Background(), "q", docs("a", "b"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCompressionFailed)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, ex.calls)
	})
}

func TestFilter_CanceledContext(t *testing.T) {
	ex := &scriptedExtractor{}
	f, err := NewFilter(ex, Config{Enabled: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Compress(ctx, "q", docs("a"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ex.calls)
}

func TestHasNoOutput(t *testing.T) {
	assert.True(t, HasNoOutput("NO_OUTPUT"))
	assert.True(t, HasNoOutput("  NO_OUTPUT\n"))
	assert.False(t, HasNoOutput("NO_OUTPUT but also this"))
	assert.False(t, HasNoOutput(""))
}
