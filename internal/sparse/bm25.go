// Package sparse implements the lexical side of a document index with
// Okapi BM25.
package sparse

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Result is a chunk with its BM25 score.
type Result struct {
	Chunk chunker.Chunk
	Score float64
}

// Config holds BM25 parameters. Values are used as given, so B = 0
// disables length normalization.
type Config struct {
	K1 float64
	B  float64
}

// DefaultConfig returns the Okapi defaults.
func DefaultConfig() Config {
	return Config{K1: DefaultK1, B: DefaultB}
}

// Index is an in-memory BM25 index. It is immutable after Build and safe
// for concurrent use.
type Index struct {
	chunks []chunker.Chunk
	// tf[i] holds term frequencies of chunk i.
	tf     []map[string]int
	docLen []int
	df     map[string]int
	avgLen float64
	k1     float64
	b      float64
}

// Build indexes chunks in order.
func Build(chunks []chunker.Chunk, cfg Config) *Index {
	idx := &Index{
		chunks: append([]chunker.Chunk(nil), chunks...),
		tf:     make([]map[string]int, len(chunks)),
		docLen: make([]int, len(chunks)),
		df:     make(map[string]int),
		k1:     cfg.K1,
		b:      cfg.B,
	}

	total := 0
	for i, c := range chunks {
		terms := Tokenize(c.Text)
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		for t := range freq {
			idx.df[t]++
		}
		idx.tf[i] = freq
		idx.docLen[i] = len(terms)
		total += len(terms)
	}
	if len(chunks) > 0 {
		idx.avgLen = float64(total) / float64(len(chunks))
	}
	return idx
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// idf uses the non-negative BM25 variant ln(1 + (N - df + 0.5)/(df + 0.5)).
func (idx *Index) idf(term string) float64 {
	n := float64(len(idx.chunks))
	df := float64(idx.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// score returns the BM25 score of chunk i for the query terms.
func (idx *Index) score(i int, terms []string) float64 {
	var s float64
	norm := 1.0
	if idx.avgLen > 0 {
		norm = 1 - idx.b + idx.b*float64(idx.docLen[i])/idx.avgLen
	}
	for _, t := range terms {
		f := float64(idx.tf[i][t])
		if f == 0 {
			continue
		}
		s += idx.idf(t) * f * (idx.k1 + 1) / (f + idx.k1*norm)
	}
	return s
}

// Retrieve returns up to k chunks with a positive score, highest first.
// Equal scores keep index order. k <= 0 returns every match.
func (idx *Index) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := Tokenize(query)
	if len(terms) == 0 || len(idx.chunks) == 0 {
		return []Result{}, nil
	}

	out := make([]Result, 0, len(idx.chunks))
	for i, c := range idx.chunks {
		if s := idx.score(i, terms); s > 0 {
			out = append(out, Result{Chunk: c, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Tokenize lowercases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
