package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

func c(text string, score float64) Candidate {
	return Candidate{Chunk: chunker.New(text, 1, 0), Score: score}
}

func texts(rs []ScoredChunk) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Chunk.Text
	}
	return out
}

func rrf(w float64, rank int) float64 {
	return w / float64(rank+RRFConstant)
}

func TestFuse_SharedChunkRanksFirst(t *testing.T) {
	dense := []Candidate{c("C3", 0.8), c("C1", 0.3)}
	sparse := []Candidate{c("C1", 0.9), c("C2", 0.4)}

	for _, tc := range []struct {
		name          string
		dense, sparse []Candidate
		want          []string
	}{
		{"dense then sparse", dense, sparse, []string{"C1", "C3", "C2"}},
		{"lists swapped", sparse, dense, []string{"C1", "C3", "C2"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := Fuse(tc.dense, tc.sparse, DefaultWeights, 0)

			require.Len(t, got, 3, "C1 appears once")
			assert.Equal(t, tc.want, texts(got))
			assert.Equal(t, SourceBoth, got[0].Source)
			assert.InDelta(t, rrf(0.5, 1)+rrf(0.5, 2), got[0].Score, 1e-12)
			assert.InDelta(t, rrf(0.5, 1), got[1].Score, 1e-12)
			assert.InDelta(t, rrf(0.5, 2), got[2].Score, 1e-12)
		})
	}
}

func TestFuse_SharedLastItemIsNotDemoted(t *testing.T) {
	dense := []Candidate{c("A", 0.9), c("B", 0.1)}
	sparse := []Candidate{c("C", 7.5), c("B", 0.2)}

	got := Fuse(dense, sparse, DefaultWeights, 0)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"B", "A", "C"}, texts(got))
	assert.Equal(t, SourceBoth, got[0].Source)
	assert.Equal(t, SourceDense, got[1].Source)
	assert.Equal(t, SourceSparse, got[2].Source)
}

func TestFuse_FirstAppearanceBreaksTies(t *testing.T) {
	dense := []Candidate{c("C1", 0.9), c("C2", 0.4)}
	sparse := []Candidate{c("C1", 0.3), c("C3", 0.8)}

	got := Fuse(dense, sparse, DefaultWeights, 0)

	assert.Equal(t, []string{"C1", "C2", "C3"}, texts(got))
	assert.Equal(t, got[1].Score, got[2].Score)
}

func TestFuse_Deterministic(t *testing.T) {
	dense := []Candidate{c("C1", 0.9), c("C2", 0.4)}
	sparse := []Candidate{c("C1", 0.3), c("C3", 0.8)}

	first := Fuse(dense, sparse, DefaultWeights, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Fuse(dense, sparse, DefaultWeights, 0))
	}
}

func TestFuse(t *testing.T) {
	tests := []struct {
		name   string
		dense  []Candidate
		sparse []Candidate
		w      Weights
		k      int
		want   []string
	}{
		{
			name: "both empty",
			want: []string{},
		},
		{
			name:  "dense only keeps retriever order",
			dense: []Candidate{c("a", 0.2), c("b", 0.9)},
			w:     DefaultWeights,
			want:  []string{"a", "b"},
		},
		{
			name:   "rank one in each list ties",
			dense:  []Candidate{c("a", 0.1)},
			sparse: []Candidate{c("b", 12), c("c", 3)},
			w:      DefaultWeights,
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "truncates to k",
			dense:  []Candidate{c("a", 3), c("b", 2), c("c", 1)},
			sparse: []Candidate{c("d", 5)},
			w:      DefaultWeights,
			k:      2,
			want:   []string{"a", "d"},
		},
		{
			name:   "sparse weight dominates",
			dense:  []Candidate{c("a", 1), c("b", 0)},
			sparse: []Candidate{c("b", 1), c("a", 0)},
			w:      Weights{Dense: 0.2, Sparse: 0.8},
			want:   []string{"b", "a"},
		},
		{
			name:  "duplicate within one list counted once",
			dense: []Candidate{c("a", 1), c("a", 0.5), c("b", 0)},
			w:     DefaultWeights,
			want:  []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, texts(Fuse(tt.dense, tt.sparse, tt.w, tt.k)))
		})
	}
}

func TestFuse_DuplicateWithinListScore(t *testing.T) {
	got := Fuse([]Candidate{c("a", 1), c("a", 0.5), c("b", 0)}, nil, DefaultWeights, 0)
	assert.InDelta(t, rrf(0.5, 1), got[0].Score, 1e-12)
	assert.InDelta(t, rrf(0.5, 3), got[1].Score, 1e-12)
}

func TestFromDense(t *testing.T) {
	got := FromDense([]Candidate{c("a", 0.9), c("b", 0.8), c("c", 0.1)}, 2)

	assert.Equal(t, []string{"a", "b"}, texts(got))
	assert.Equal(t, 0.9, got[0].Score)
	assert.Equal(t, SourceDense, got[1].Source)
}
