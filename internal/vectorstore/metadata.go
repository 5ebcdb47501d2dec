package vectorstore

import (
	"sort"
	"strconv"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

const (
	metaPage        = "page"
	metaSection     = "section"
	metaOriginIndex = "origin_index"
	metaText        = "text"
)

func chunkMetadata(c chunker.Chunk) map[string]string {
	return map[string]string{
		metaPage:        strconv.Itoa(c.Page),
		metaSection:     c.Section,
		metaOriginIndex: strconv.Itoa(c.OriginIndex),
	}
}

// chunkFromMetadata rebuilds a chunk from stored fields. Missing or
// malformed numbers decode as zero.
func chunkFromMetadata(id, text string, md map[string]string) chunker.Chunk {
	page, _ := strconv.Atoi(md[metaPage])
	origin, _ := strconv.Atoi(md[metaOriginIndex])
	section := md[metaSection]
	if section == "" {
		section = chunker.NoSection
	}
	if id == "" {
		id = chunker.ContentID(text)
	}
	return chunker.Chunk{
		ID:          id,
		Text:        text,
		Page:        page,
		Section:     section,
		OriginIndex: origin,
	}
}

// sortByOrigin orders stored chunks as they were produced, breaking ties
// by ID so listings are deterministic.
func sortByOrigin(chunks []chunker.Chunk) {
	sort.SliceStable(chunks, func(a, b int) bool {
		if chunks[a].OriginIndex != chunks[b].OriginIndex {
			return chunks[a].OriginIndex < chunks[b].OriginIndex
		}
		return chunks[a].ID < chunks[b].ID
	})
}
