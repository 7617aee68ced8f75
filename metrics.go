package notegraph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("notegraph")

var (
	// materializeDuration measures one Materialize call.
	// Labels: status (success, error)
	materializeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notegraph",
		Subsystem: "materialize",
		Name:      "duration_seconds",
		Help:      "Materialization latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"status"})

	// nodesWritten counts node upserts by outcome.
	// Labels: kind (created, merged)
	nodesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notegraph",
		Subsystem: "materialize",
		Name:      "nodes_total",
		Help:      "Total nodes written by materialization",
	}, []string{"kind"})

	edgesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notegraph",
		Subsystem: "materialize",
		Name:      "edges_total",
		Help:      "Total edges written by materialization",
	})

	droppedRelationships = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notegraph",
		Subsystem: "materialize",
		Name:      "dropped_relationships_total",
		Help:      "Relationships dropped because an endpoint did not resolve",
	})

	promotions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notegraph",
		Subsystem: "evolution",
		Name:      "promotions_total",
		Help:      "Nodes promoted to level 0 by the evolution pass",
	})

	// analyses counts Analyze calls.
	// Labels: model (model that produced the extraction, or none), status
	analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notegraph",
		Subsystem: "analyze",
		Name:      "requests_total",
		Help:      "Total text analyses",
	}, []string{"model", "status"})

	injectionsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notegraph",
		Subsystem: "analyze",
		Name:      "injections_detected_total",
		Help:      "Texts flagged by the prompt injection filter",
	})
)

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
