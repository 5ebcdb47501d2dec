// Package orchestrator runs a batch of questions against one PDF.
//
// # Stages
//
// The batch moves through prerequisite stages once:
//
//	pdf_loaded -> chunked -> indexed
//
// and then through a per-question sequence:
//
//	cache_check -> cache_hit -> done
//	cache_check -> cache_miss -> retrieve -> compress -> generate -> cache_write -> done
//
// An empty or failed prerequisite stage aborts the batch with a *StageError
// before any question is attempted. A failure inside the per-question
// sequence is recorded as SentinelAnswer for that question only; the loop
// continues with the next question.
//
// After the loop the result mapping is posted to the notifier. Delivery
// failures are logged and never change the returned result.
package orchestrator
