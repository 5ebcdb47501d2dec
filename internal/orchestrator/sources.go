package orchestrator

import (
	"github.com/fyrsmithlabs/pdfqa/internal/ensemble"
)

// FormatSources renders citations for the first max retrieved chunks:
// "Section X, Page N" with sections, "Page N" without.
func FormatSources(docs []ensemble.ScoredChunk, withSection bool, max int) []string {
	if max <= 0 || max > len(docs) {
		max = len(docs)
	}
	out := make([]string, 0, max)
	for _, d := range docs[:max] {
		label := "Page " + d.Chunk.PageLabel()
		if withSection {
			label = "Section " + d.Chunk.Section + ", " + label
		}
		out = append(out, label)
	}
	return out
}
