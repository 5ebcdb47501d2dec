// Package pdf extracts per-page plain text from PDF files.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrNoPages is returned when a document yields no extractable text.
var ErrNoPages = errors.New("pdf: no extractable pages")

var tracer = otel.Tracer("pdfqa.pdf")

// Page is the plain text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// pageSource abstracts the parsed document so extraction can be tested
// without real PDF bytes.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
	Close() error
}

type openFunc func(path string) (pageSource, error)

// Loader reads PDF documents page by page.
type Loader struct {
	logger *zap.Logger
	open   openFunc
}

// NewLoader creates a Loader. A nil logger disables logging.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger, open: openFile}
}

// Load returns the non-empty pages of the document at path in page order.
//
// A page whose extraction fails is logged and skipped. When the file cannot
// be opened or no page has text, Load returns an empty slice and ErrNoPages.
func (l *Loader) Load(ctx context.Context, path string) ([]Page, error) {
	ctx, span := tracer.Start(ctx, "pdf.Load")
	defer span.End()
	span.SetAttributes(attribute.String("pdf.path", path))

	src, err := l.open(path)
	if err != nil {
		l.logger.Error("failed to open pdf", zap.String("path", path), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return []Page{}, fmt.Errorf("%w: %s: %w", ErrNoPages, path, err)
	}
	defer src.Close()

	total, err := countPages(src)
	if err != nil {
		l.logger.Error("failed to read page tree", zap.String("path", path), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "page count failed")
		return []Page{}, fmt.Errorf("%w: %s: %w", ErrNoPages, path, err)
	}
	pages := make([]Page, 0, total)
	for num := 1; num <= total; num++ {
		if err := ctx.Err(); err != nil {
			return []Page{}, err
		}
		text, err := extract(src, num)
		if err != nil {
			l.logger.Warn("skipping page",
				zap.String("path", path),
				zap.Int("page", num),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: num, Text: text})
	}

	span.SetAttributes(
		attribute.Int("pdf.pages_total", total),
		attribute.Int("pdf.pages_loaded", len(pages)),
	)
	if len(pages) == 0 {
		span.SetStatus(codes.Error, "no pages")
		return []Page{}, fmt.Errorf("%w: %s", ErrNoPages, path)
	}

	l.logger.Debug("pdf loaded",
		zap.String("path", path),
		zap.Int("pages_total", total),
		zap.Int("pages_loaded", len(pages)))
	return pages, nil
}

// extract converts a parser panic on a malformed page into an error.
func extract(src pageSource, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: parser panic: %v", num, r)
		}
	}()
	return src.PageText(num)
}

// countPages converts a parser panic on a broken page tree into an error.
func countPages(src pageSource) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page count: parser panic: %v", r)
		}
	}()
	return src.NumPage(), nil
}

type fileSource struct {
	closer io.Closer
	reader *pdf.Reader
}

type readerFunc func(f io.ReaderAt, size int64) (*pdf.Reader, error)

func openFile(path string) (pageSource, error) {
	return openWith(path, pdf.NewReader)
}

// openWith opens path and parses its trailer with newReader. The file is
// closed on any error, including a parser panic.
func openWith(path string, newReader readerFunc) (src pageSource, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
		if err != nil {
			_ = f.Close()
			src = nil
		}
	}()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r, err := newReader(f, fi.Size())
	if err != nil {
		return nil, err
	}
	return &fileSource{closer: f, reader: r}, nil
}

func (s *fileSource) NumPage() int { return s.reader.NumPage() }

func (s *fileSource) PageText(num int) (string, error) {
	p := s.reader.Page(num)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

func (s *fileSource) Close() error { return s.closer.Close() }
