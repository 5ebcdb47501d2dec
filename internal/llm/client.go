// Package llm wraps the chat model used to compress context and generate
// answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyResponse is returned when the model produced no answer text.
	ErrEmptyResponse = errors.New("llm: empty response")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("llm: invalid configuration")
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-3.5-turbo-0125"

var tracer = otel.Tracer("pdfqa.llm")

// Client is the language-model collaborator.
type Client interface {
	// Generate answers a fully rendered prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// ExtractRelevant returns the parts of text relevant to question, NoOutput
	// when nothing is relevant, or an empty string when the model gave no
	// reduction.
	ExtractRelevant(ctx context.Context, text, question string) (string, error)
}

// Config configures the OpenAI client.
type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	// RequestsPerSecond limits outgoing calls; 0 disables limiting.
	RequestsPerSecond float64
	// Timeout bounds each call; 0 leaves the caller's deadline in charge.
	Timeout time.Duration
}

// OpenAIClient implements Client with langchaingo.
type OpenAIClient struct {
	model       llms.Model
	name        string
	temperature float64
	limiter     *rate.Limiter
	timeout     time.Duration
	logger      *zap.Logger
}

// NewOpenAIClient creates a client for the OpenAI chat API.
func NewOpenAIClient(cfg Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return NewClient(model, cfg, logger), nil
}

// NewClient wraps any langchaingo model.
func NewClient(model llms.Model, cfg Config, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	c := &OpenAIClient{
		model:       model,
		name:        cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Generate sends prompt and returns the trimmed answer.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.Generate")
	defer span.End()

	out, err := c.call(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		span.SetStatus(codes.Error, "empty response")
		return "", ErrEmptyResponse
	}
	span.SetAttributes(attribute.Int("response_length", len(out)))
	return out, nil
}

// ExtractRelevant asks the model to keep only the question-relevant parts of
// text.
func (c *OpenAIClient) ExtractRelevant(ctx context.Context, text, question string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.ExtractRelevant")
	defer span.End()

	out, err := c.call(ctx, BuildExtractionPrompt(text, question))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *OpenAIClient) call(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(c.temperature))
	c.logger.Debug("llm call",
		zap.String("model", c.name),
		zap.Int("prompt_length", len(prompt)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	if err != nil {
		return "", fmt.Errorf("llm call (%s): %w", c.name, err)
	}
	return out, nil
}
