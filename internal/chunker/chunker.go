package chunker

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/pdf"
)

// ErrNoChunks is returned when no page produced any chunk.
var ErrNoChunks = errors.New("chunker: no chunks produced")

// Defaults match the window used for the handbook corpus.
const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 400
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Config controls the splitting window.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// splitter is satisfied by langchaingo text splitters.
type splitter interface {
	SplitText(text string) ([]string, error)
}

// Chunker turns pages into chunks with a recursive character splitter.
type Chunker struct {
	splitter splitter
	logger   *zap.Logger
}

// NewChunker creates a Chunker. Zero sizes fall back to the defaults.
func NewChunker(cfg Config, logger *zap.Logger) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = min(DefaultChunkOverlap, cfg.ChunkSize/2)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators(defaultSeparators),
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		logger: logger,
	}
}

// Split chunks every page in order. A page that fails to split is logged and
// skipped; the remaining pages are still processed.
func (c *Chunker) Split(ctx context.Context, pages []pdf.Page) ([]Chunk, error) {
	chunks := make([]Chunk, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts, err := c.splitPage(page)
		if err != nil {
			c.logger.Warn("skipping page",
				zap.Int("page", page.Number),
				zap.Error(err))
			continue
		}
		for _, text := range texts {
			if text == "" {
				continue
			}
			chunks = append(chunks, New(text, page.Number, len(chunks)))
		}
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	c.logger.Debug("pages chunked",
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

func (c *Chunker) splitPage(page pdf.Page) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("splitter panic: %v", r)
		}
	}()
	return c.splitter.SplitText(page.Text)
}
