package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type documentCtxKey struct{}
type questionCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 5)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := DocumentIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("document.id", id))
	}
	if idx, ok := QuestionIndexFromContext(ctx); ok {
		fields = append(fields, zap.Int("question.index", idx))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

// WithDocumentID tags ctx with the document being processed.
func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, id)
}

// DocumentIDFromContext returns the document id, or "".
func DocumentIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(documentCtxKey{}).(string)
	return id
}

// WithQuestionIndex tags ctx with the zero-based position of the question in its batch.
func WithQuestionIndex(ctx context.Context, idx int) context.Context {
	return context.WithValue(ctx, questionCtxKey{}, idx)
}

// QuestionIndexFromContext returns the question index if set.
func QuestionIndexFromContext(ctx context.Context) (int, bool) {
	idx, ok := ctx.Value(questionCtxKey{}).(int)
	return idx, ok
}

// WithRequestID tags ctx with an HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
