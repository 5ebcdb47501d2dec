package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Build results.
const (
	resultBuilt  = "built"
	resultReused = "reused"
	resultFailed = "failed"
)

var (
	// BuildsTotal counts index opens.
	// Labels: backend (chromem, qdrant), result (built, reused, failed)
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfqa",
			Subsystem: "vectorstore",
			Name:      "builds_total",
			Help:      "Total number of dense index opens by backend and result",
		},
		[]string{"backend", "result"},
	)

	// RetrieveDuration tracks dense retrieval latency including the query
	// embedding.
	RetrieveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfqa",
			Subsystem: "vectorstore",
			Name:      "retrieve_duration_seconds",
			Help:      "Duration of dense retrieval in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// IndexedChunks reports the chunk count of the most recently opened index.
	IndexedChunks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pdfqa",
			Subsystem: "vectorstore",
			Name:      "indexed_chunks",
			Help:      "Number of chunks in the most recently opened index",
		},
		[]string{"backend"},
	)
)
