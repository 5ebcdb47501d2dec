package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
)

func TestBuildPrompt(t *testing.T) {
	docs := []chunker.Chunk{
		{Text: "3.1 Vacation. Employees accrue 15 days.", Section: "3.1", Page: 2},
		{Text: "Welcome to the company.", Section: chunker.NoSection, Page: 1},
	}

	t.Run("plain", func(t *testing.T) {
		p := BuildPrompt("How many vacation days?", docs, false)
		assert.True(t, strings.HasPrefix(p, "Given the following context:\n\n3.1 Vacation."))
		assert.Contains(t, p, "Employees accrue 15 days.\n\nWelcome to the company.")
		assert.Contains(t, p, "Answer the following question: How many vacation days?")
		assert.True(t, strings.HasSuffix(p, "say 'Data Not Available'."))
		assert.NotContains(t, p, "[Section")
	})

	t.Run("with sections", func(t *testing.T) {
		p := BuildPrompt("How many vacation days?", docs, true)
		assert.Contains(t, p, "[Section 3.1] 3.1 Vacation.")
		assert.Contains(t, p, "[Section N/A] Welcome to the company.")
		assert.True(t, strings.HasSuffix(p, "Include the section number in your response when possible."))
	})

	t.Run("no documents", func(t *testing.T) {
		p := BuildPrompt("q", nil, false)
		assert.Contains(t, p, "Given the following context:\n\n\n\nAnswer the following question: q")
	})
}

func TestBuildExtractionPrompt(t *testing.T) {
	p := BuildExtractionPrompt("some context", "a question")
	assert.Contains(t, p, "return NO_OUTPUT.")
	assert.Contains(t, p, "> Question: a question\n> Context:\n>>>\nsome context\n>>>\nExtracted relevant parts:")
}
