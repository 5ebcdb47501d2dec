// Package logging provides structured logging for pdfqa on top of zap.
//
// The Logger adds context-aware methods that pull correlation fields
// (trace_id, span_id, document.id, question.index, request.id) out of the
// context, a Trace level below Debug, optional teeing into the
// OpenTelemetry log bridge, and an encoder that redacts credentials.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithDocumentID(ctx, "handbook")
//	logger.Info(ctx, "index ready", zap.Int("chunks", n))
//
// Components that only need a plain *zap.Logger receive Underlying().
package logging
