package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type label string

func (l label) String() string { return string(l) }

func texts(chunks []Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDedupe(t *testing.T) {
	in := []Chunk{
		New("a", 1, 0),
		New("b", 1, 1),
		New("a", 2, 2),
		New("c", 2, 3),
		New("b", 3, 4),
	}

	got := Dedupe(in)

	assert.Equal(t, []string{"a", "b", "c"}, texts(got))
	assert.Equal(t, 1, got[0].Page, "first occurrence wins")
	assert.Equal(t, 3, got[2].OriginIndex)
}

func TestDedupe_ExactMatchOnly(t *testing.T) {
	got := DedupeStrings([]string{"a", "A", "a ", "a"})
	assert.Equal(t, []string{"a", "A", "a "}, got)
}

func TestDedupe_Empty(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
	assert.NotNil(t, Dedupe(nil))
}

func TestDedupeAny(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := New("b", 4, 0)
	items := []any{"a", c, &c, 42, label("c"), nil, "a"}

	got := DedupeAny(items, zap.New(core))

	assert.Equal(t, []string{"a", "b", "c"}, texts(got))
	assert.Equal(t, 4, got[1].Page)
	assert.Equal(t, 2, logs.FilterMessage("skipping non-text input").Len())
}
