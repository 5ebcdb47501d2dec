package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Question outcomes.
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeFailed = "failed"
)

var (
	// QuestionsTotal counts answered questions by outcome.
	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Name:      "questions_total",
			Help:      "Questions processed by outcome (hit, miss, failed).",
		},
		[]string{"outcome"},
	)

	// QuestionDuration tracks per-question latency by outcome.
	QuestionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Name:      "question_duration_seconds",
			Help:      "Time to answer one question.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	// BatchesTotal counts batches by result (completed, aborted).
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Name:      "batches_total",
			Help:      "Question batches by result.",
		},
		[]string{"result"},
	)
)
