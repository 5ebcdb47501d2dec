// Package ensemble fuses dense and sparse retrieval results into one ranked
// list with weighted reciprocal rank fusion.
package ensemble

import (
	"sort"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

// Source records which retriever contributed a fused result.
type Source string

const (
	SourceDense  Source = "dense"
	SourceSparse Source = "sparse"
	SourceBoth   Source = "both"
)

// Candidate is one retriever's result: a chunk and its raw score.
type Candidate struct {
	Chunk chunker.Chunk
	Score float64
}

// ScoredChunk is a fused result.
type ScoredChunk struct {
	Chunk  chunker.Chunk
	Score  float64
	Source Source
}

// Weights are the per-retriever fusion weights.
type Weights struct {
	Dense  float64
	Sparse float64
}

// DefaultWeights weighs both retrievers equally.
var DefaultWeights = Weights{Dense: 0.5, Sparse: 0.5}

// RRFConstant damps the contribution of top ranks in reciprocal rank fusion.
const RRFConstant = 60

// Fuse merges dense and sparse results by weighted reciprocal rank fusion.
//
// Each list is taken in the order its retriever returned it. A chunk at
// 1-based position r contributes weight/(r+RRFConstant), and its fused score
// is the sum over both lists, so a chunk found by both retrievers always
// outranks one found by a single retriever at the same positions. Chunks are
// identified by text; a repeat within one list counts once, at its first
// position. Raw scores only matter through the order the retrievers chose.
// Results are sorted by fused score, descending; equal scores keep
// first-appearance order (dense list first, then sparse). k <= 0 returns
// every result.
func Fuse(dense, sparse []Candidate, w Weights, k int) []ScoredChunk {
	type entry struct {
		chunk  chunker.Chunk
		score  float64
		dense  bool
		sparse bool
	}
	byText := make(map[string]int, len(dense)+len(sparse))
	entries := make([]entry, 0, len(dense)+len(sparse))

	add := func(list []Candidate, weight float64, isDense bool) {
		seen := make(map[string]struct{}, len(list))
		for i, c := range list {
			if _, dup := seen[c.Chunk.Text]; dup {
				continue
			}
			seen[c.Chunk.Text] = struct{}{}

			pos, ok := byText[c.Chunk.Text]
			if !ok {
				pos = len(entries)
				byText[c.Chunk.Text] = pos
				entries = append(entries, entry{chunk: c.Chunk})
			}
			entries[pos].score += weight / float64(i+1+RRFConstant)
			if isDense {
				entries[pos].dense = true
			} else {
				entries[pos].sparse = true
			}
		}
	}
	add(dense, w.Dense, true)
	add(sparse, w.Sparse, false)

	out := make([]ScoredChunk, len(entries))
	for i, e := range entries {
		src := SourceDense
		switch {
		case e.dense && e.sparse:
			src = SourceBoth
		case e.sparse:
			src = SourceSparse
		}
		out[i] = ScoredChunk{Chunk: e.chunk, Score: e.score, Source: src}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// FromDense wraps dense-only results without renormalizing.
func FromDense(list []Candidate, k int) []ScoredChunk {
	out := make([]ScoredChunk, 0, len(list))
	for _, c := range list {
		out = append(out, ScoredChunk{Chunk: c.Chunk, Score: c.Score, Source: SourceDense})
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
