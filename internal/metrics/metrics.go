package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters and histograms. Registered on the default registry and
// served from /metrics.
var (
	DecisionsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_engine_decisions_total",
		Help: "Market decisions computed, by sport, market type, and tier",
	}, []string{"sport", "market_type", "classification"})

	DecisionsBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_engine_blocked_total",
		Help: "Decisions blocked before release, by release status",
	}, []string{"sport", "release_status"})

	SimulationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_engine_backpressure_dropped_total",
		Help: "Simulation requests dropped under backpressure",
	}, []string{"sport"})

	RealityCheckClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_engine_reality_clamps_total",
		Help: "Reality-check outcomes, by disposition (pass, flag, clamp)",
	}, []string{"sport", "disposition"})

	Publications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_engine_publications_total",
		Help: "Predictions published, by sport and channel",
	}, []string{"sport", "channel"})

	PublishReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decision_engine_publish_replays_total",
		Help: "Publish attempts collapsed onto an existing record",
	})

	GradedOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_engine_graded_total",
		Help: "Graded predictions, by sport and outcome",
	}, []string{"sport", "outcome"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "decision_engine_pipeline_seconds",
		Help:    "End-to-end decision pipeline latency per game",
		Buckets: prometheus.DefBuckets,
	}, []string{"sport"})

	OddsFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_engine_odds_fetch_errors_total",
		Help: "Odds provider fetch failures",
	}, []string{"sport"})
)
