// Package observability wires OpenTelemetry tracing and Prometheus metrics.
//
// This file exposes pipeline-level Prometheus instrumentation, complementing
// the HTTP metrics emitted by the middleware layer. Labels are drawn from
// small closed sets (validator rejection reasons, audit outcomes) so
// cardinality stays bounded:
//
//   - reason:  validator rejection reason (NOT_SELECT, FORBIDDEN_KEYWORD, …)
//   - outcome: terminal request outcome (ok, validation_failed, timeout, …)
//
// All collectors are safe for concurrent use.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// genAttempts counts generation attempts across all requests. Divided by
	// request count it yields the average repair-loop depth.
	genAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_generation_attempts_total",
			Help: "Total number of SQL generation attempts.",
		},
	)

	// genRejections counts safety-gate rejections by reason.
	genRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_validation_rejections_total",
			Help: "Total number of generated statements rejected by the safety gate.",
		},
		[]string{"reason"},
	)

	// queryOutcomes counts finished requests by terminal outcome.
	queryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_queries_total",
			Help: "Total number of answered questions by terminal outcome.",
		},
		[]string{"outcome"},
	)

	// queryDuration records end-to-end pipeline latency in seconds. Buckets
	// skew high because a request may span several model round-trips.
	queryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_query_duration_seconds",
			Help:    "End-to-end duration of the generate-validate-execute pipeline in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(genAttempts, genRejections, queryOutcomes, queryDuration)
}

// CountGenerationAttempt records one call to the intent generator.
func CountGenerationAttempt() {
	genAttempts.Inc()
}

// CountValidationRejection records one safety-gate rejection with its reason.
func CountValidationRejection(reason string) {
	genRejections.WithLabelValues(reason).Inc()
}

// CountQueryOutcome records one finished request with its terminal outcome
// and end-to-end duration in seconds.
func CountQueryOutcome(outcome string, seconds float64) {
	queryOutcomes.WithLabelValues(outcome).Inc()
	queryDuration.Observe(seconds)
}
