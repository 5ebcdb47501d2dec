package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/cache"
	"github.com/fyrsmithlabs/pdfqa/internal/chunker"
	"github.com/fyrsmithlabs/pdfqa/internal/ensemble"
	"github.com/fyrsmithlabs/pdfqa/internal/llm"
	"github.com/fyrsmithlabs/pdfqa/internal/logging"
	"github.com/fyrsmithlabs/pdfqa/internal/notify"
	"github.com/fyrsmithlabs/pdfqa/internal/pdf"
	"github.com/fyrsmithlabs/pdfqa/internal/retrieval"
	"github.com/fyrsmithlabs/pdfqa/internal/vectorstore"
)

var tracer = otel.Tracer("pdfqa.orchestrator")

// Loader reads the pages of a PDF.
type Loader interface {
	Load(ctx context.Context, path string) ([]pdf.Page, error)
}

// Splitter chunks pages.
type Splitter interface {
	Split(ctx context.Context, pages []pdf.Page) ([]chunker.Chunk, error)
}

// Indexer builds or reopens the document index.
type Indexer interface {
	Index(ctx context.Context, docID string, chunks []chunker.Chunk) (*retrieval.DocumentIndex, error)
}

// Compressor shrinks retrieved chunks to their relevant passages.
type Compressor interface {
	Compress(ctx context.Context, question string, docs []ensemble.ScoredChunk) ([]chunker.Chunk, error)
}

// Generator answers a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Deps are the collaborators of a Pipeline. Notifier may be nil.
type Deps struct {
	Loader     Loader
	Splitter   Splitter
	Indexer    Indexer
	Compressor Compressor
	Generator  Generator
	Cache      cache.Cache
	Notifier   notify.Notifier
}

// Config tunes a Pipeline.
type Config struct {
	Retrieval retrieval.Config
	// IncludeSection adds sections to prompts and sources.
	IncludeSection bool
	MaxSources     int
	// CallTimeout bounds each retrieval and notification call.
	CallTimeout time.Duration
	Channel     string
}

// Pipeline answers batches of questions about one PDF at a time.
type Pipeline struct {
	deps     Deps
	config   Config
	logger   *logging.Logger
	progress ProgressCallback
}

// NewPipeline validates deps and returns a pipeline.
func NewPipeline(deps Deps, cfg Config, logger *logging.Logger) (*Pipeline, error) {
	switch {
	case deps.Loader == nil:
		return nil, errors.New("orchestrator: loader is required")
	case deps.Splitter == nil:
		return nil, errors.New("orchestrator: splitter is required")
	case deps.Indexer == nil:
		return nil, errors.New("orchestrator: indexer is required")
	case deps.Compressor == nil:
		return nil, errors.New("orchestrator: compressor is required")
	case deps.Generator == nil:
		return nil, errors.New("orchestrator: generator is required")
	case deps.Cache == nil:
		return nil, errors.New("orchestrator: cache is required")
	}
	if _, err := retrieval.ParseStrategy(string(cfg.Retrieval.Strategy)); err != nil {
		return nil, err
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 10
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{deps: deps, config: cfg, logger: logger}, nil
}

// OnProgress sets the progress callback.
func (p *Pipeline) OnProgress(cb ProgressCallback) {
	p.progress = cb
}

func (p *Pipeline) report(stage Stage, status Status, question int, msg string) {
	if p.progress != nil {
		p.progress(Progress{Stage: stage, Status: status, QuestionIndex: question, Message: msg})
	}
}

// Run answers questions about the PDF at pdfPath. It returns a *StageError
// when a prerequisite stage fails; otherwise every question has an entry in
// the result, possibly SentinelAnswer.
func (p *Pipeline) Run(ctx context.Context, pdfPath string, questions []string) (*BatchResult, error) {
	docID := vectorstore.DocumentID(pdfPath)
	ctx = logging.WithDocumentID(ctx, docID)
	ctx, span := tracer.Start(ctx, "pdfqa.batch", trace.WithAttributes(
		attribute.String("document.id", docID),
		attribute.Int("questions", len(questions)),
		attribute.String("strategy", string(p.config.Retrieval.Strategy)),
	))
	defer span.End()

	retriever, closeIndex, err := p.prepare(ctx, pdfPath, docID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch aborted")
		BatchesTotal.WithLabelValues("aborted").Inc()
		p.report(StageFailed, StatusFailed, -1, err.Error())
		p.logger.Error(ctx, "batch aborted", zap.Error(err))
		return nil, err
	}
	defer closeIndex()

	result := NewBatchResult()
	for i, q := range questions {
		result.Set(q, p.answer(ctx, retriever, i, q))
	}
	BatchesTotal.WithLabelValues("completed").Inc()

	p.publish(ctx, result)
	return result, nil
}

// prepare runs the prerequisite stages and returns a retriever over the
// document index.
func (p *Pipeline) prepare(ctx context.Context, pdfPath, docID string) (*retrieval.Retriever, func(), error) {
	pages, err := p.deps.Loader.Load(ctx, pdfPath)
	if err == nil && len(pages) == 0 {
		err = pdf.ErrNoPages
	}
	if err != nil {
		return nil, nil, &StageError{Stage: StagePDFLoaded, Err: err}
	}
	p.report(StagePDFLoaded, StatusCompleted, -1, fmt.Sprintf("%d pages", len(pages)))

	chunks, err := p.deps.Splitter.Split(ctx, pages)
	if err == nil {
		chunks = chunker.Dedupe(chunks)
		if len(chunks) == 0 {
			err = chunker.ErrNoChunks
		}
	}
	if err != nil {
		return nil, nil, &StageError{Stage: StageChunked, Err: err}
	}
	p.report(StageChunked, StatusCompleted, -1, fmt.Sprintf("%d chunks", len(chunks)))

	index, err := p.deps.Indexer.Index(ctx, docID, chunks)
	if err == nil && index.Dense.Count() == 0 {
		_ = index.Close()
		err = vectorstore.ErrEmptyIndex
	}
	if err != nil {
		return nil, nil, &StageError{Stage: StageIndexed, Err: err}
	}
	closeIndex := func() {
		if err := index.Close(); err != nil {
			p.logger.Warn(ctx, "closing index", zap.Error(err))
		}
	}

	retriever, err := retrieval.NewRetriever(index, p.config.Retrieval, p.logger.Underlying())
	if err != nil {
		closeIndex()
		return nil, nil, &StageError{Stage: StageIndexed, Err: err}
	}
	p.report(StageIndexed, StatusCompleted, -1, fmt.Sprintf("%d indexed chunks", index.Dense.Count()))
	p.logger.Info(ctx, "document indexed",
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)),
		zap.Bool("reused", index.Dense.Reused()))
	return retriever, closeIndex, nil
}

// answer runs the per-question stages. It never fails: a stage error yields
// SentinelAnswer with empty sources.
func (p *Pipeline) answer(ctx context.Context, retriever *retrieval.Retriever, idx int, question string) Answer {
	ctx = logging.WithQuestionIndex(ctx, idx)
	ctx, span := tracer.Start(ctx, "pdfqa.question", trace.WithAttributes(
		attribute.Int("question.index", idx),
	))
	defer span.End()
	start := time.Now()

	a, outcome, stage, err := p.process(ctx, retriever, idx, question)
	QuestionsTotal.WithLabelValues(outcome).Inc()
	QuestionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage)+" failed")
		p.report(stage, StatusFailed, idx, err.Error())
		p.logger.Error(ctx, "question failed",
			zap.String("stage", string(stage)),
			zap.Error(err))
		return Answer{Answer: SentinelAnswer, Sources: []string{}}
	}
	p.report(StageDone, StatusCompleted, idx, outcome)
	return a
}

func (p *Pipeline) process(ctx context.Context, retriever *retrieval.Retriever, idx int, question string) (Answer, string, Stage, error) {
	p.report(StageCacheCheck, StatusInProgress, idx, "")
	entry, err := p.deps.Cache.Get(ctx, question)
	switch {
	case err == nil:
		p.report(StageCacheHit, StatusCompleted, idx, "")
		p.logger.Debug(ctx, "cache hit")
		return Answer{Answer: entry.Answer, Sources: entry.Sources}, OutcomeHit, StageCacheHit, nil
	case !errors.Is(err, cache.ErrNotFound):
		p.logger.Warn(ctx, "cache read failed, treating as miss", zap.Error(err))
	}
	p.report(StageCacheMiss, StatusCompleted, idx, "")

	p.report(StageRetrieve, StatusInProgress, idx, "")
	docs, err := p.retrieve(ctx, retriever, question)
	if err != nil {
		return Answer{}, OutcomeFailed, StageRetrieve, err
	}
	sources := FormatSources(docs, p.config.IncludeSection, p.config.MaxSources)

	p.report(StageCompress, StatusInProgress, idx, "")
	compressed, err := p.deps.Compressor.Compress(ctx, question, docs)
	if err != nil {
		return Answer{}, OutcomeFailed, StageCompress, err
	}

	p.report(StageGenerate, StatusInProgress, idx, "")
	prompt := llm.BuildPrompt(question, compressed, p.config.IncludeSection)
	text, err := p.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, OutcomeFailed, StageGenerate, err
	}

	p.report(StageCacheWrite, StatusInProgress, idx, "")
	if err := p.deps.Cache.Put(ctx, question, text, sources); err != nil {
		p.logger.Warn(ctx, "cache write failed", zap.Error(err))
	}
	p.logger.Info(ctx, "question answered",
		zap.Int("retrieved", len(docs)),
		zap.Int("context_documents", len(compressed)))
	return Answer{Answer: text, Sources: sources}, OutcomeMiss, StageDone, nil
}

func (p *Pipeline) retrieve(ctx context.Context, retriever *retrieval.Retriever, question string) ([]ensemble.ScoredChunk, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	return retriever.Retrieve(ctx, question)
}

func (p *Pipeline) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.config.CallTimeout)
}

// publish posts the rendered result to the notifier. Failures are logged.
func (p *Pipeline) publish(ctx context.Context, result *BatchResult) {
	if p.deps.Notifier == nil {
		return
	}
	body, err := result.Indented()
	if err != nil {
		p.logger.Warn(ctx, "rendering notification", zap.Error(err))
		return
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()
	text := "AI Agent Results:\n```" + body + "```"
	delivery, err := p.deps.Notifier.Post(ctx, p.config.Channel, text)
	if err != nil {
		p.report(StageNotify, StatusFailed, -1, err.Error())
		p.logger.Warn(ctx, "notification failed", zap.String("channel", p.config.Channel), zap.Error(err))
		return
	}
	p.report(StageNotify, StatusCompleted, -1, delivery.Timestamp)
}
