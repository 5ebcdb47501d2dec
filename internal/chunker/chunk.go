// Package chunker splits page text into overlapping, section-tagged chunks
// and removes duplicate chunks before indexing.
package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strconv"
)

// NoSection marks a chunk without a detected section identifier.
const NoSection = "N/A"

var sectionPattern = regexp.MustCompile(`\b(\d+\.\d+)\b`)

// Chunk is an immutable excerpt of page text.
//
// ID is derived from Text, so two chunks with identical text share an ID in
// every index built from them.
type Chunk struct {
	ID          string
	Text        string
	Page        int
	Section     string
	OriginIndex int
}

// New builds a chunk, deriving its ID and section from text.
func New(text string, page, originIndex int) Chunk {
	return Chunk{
		ID:          ContentID(text),
		Text:        text,
		Page:        page,
		Section:     DetectSection(text),
		OriginIndex: originIndex,
	}
}

// PageLabel renders the page number, or "N/A" when unknown.
func (c Chunk) PageLabel() string {
	if c.Page <= 0 {
		return NoSection
	}
	return strconv.Itoa(c.Page)
}

// ContentID returns the hex md5 of text.
func ContentID(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// DetectSection returns the first "<int>.<int>" token in text, or NoSection.
func DetectSection(text string) string {
	if m := sectionPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return NoSection
}
