package chunker

import (
	"fmt"

	"go.uber.org/zap"
)

// Dedupe drops chunks whose text equals an earlier chunk's text. Order of the
// surviving chunks is preserved.
func Dedupe(chunks []Chunk) []Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c)
	}
	return out
}

// DedupeStrings is Dedupe for raw text.
func DedupeStrings(texts []string) []string {
	seen := make(map[string]struct{}, len(texts))
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DedupeAny normalizes mixed input into chunks and dedupes them. Chunk,
// *Chunk, string and fmt.Stringer items are accepted; anything else is
// logged and skipped. Raw strings get page 0 and a detected section.
func DedupeAny(items []any, logger *zap.Logger) []Chunk {
	if logger == nil {
		logger = zap.NewNop()
	}
	chunks := make([]Chunk, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case Chunk:
			chunks = append(chunks, v)
		case *Chunk:
			if v == nil {
				logger.Warn("skipping nil chunk", zap.Int("index", i))
				continue
			}
			chunks = append(chunks, *v)
		case string:
			chunks = append(chunks, New(v, 0, i))
		case fmt.Stringer:
			chunks = append(chunks, New(v.String(), 0, i))
		default:
			logger.Warn("skipping non-text input",
				zap.Int("index", i),
				zap.String("type", fmt.Sprintf("%T", item)))
		}
	}
	return Dedupe(chunks)
}
