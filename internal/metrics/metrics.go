// Package metrics holds the prometheus collectors of a member. Every Metrics owns its registry, nothing is
// registered globally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

const namespace = "exthashdb"

// Metrics - Collectors for coordination and index activity
type Metrics struct {
	registry *prometheus.Registry

	// OperationsSent counts operations logged and broadcast by the coordinator.
	// Labels: database
	OperationsSent *prometheus.CounterVec

	// QuorumOutcomes counts finished request contexts.
	// Labels: database, status (quorum_ok, quorum_ko)
	QuorumOutcomes *prometheus.CounterVec

	// Timeouts counts timeout checks that found a request context unfinished.
	// Labels: database
	Timeouts *prometheus.CounterVec

	// InFlight is the number of request contexts waiting for responses.
	// Labels: database
	InFlight *prometheus.GaugeVec

	// QuorumLatency is the time from broadcast to a finished request context.
	// Labels: database
	QuorumLatency *prometheus.HistogramVec

	// Received counts log entries received by the executor.
	// Labels: database, status (appended, duplicate, gap, term_mismatch)
	Received *prometheus.CounterVec

	// Resyncs counts resync requests.
	// Labels: database, side (requested, served)
	Resyncs *prometheus.CounterVec

	// IndexOperations counts hash table operations applied by replicated requests.
	// Labels: database, operation (put, delete), outcome (ok, exists, missing, error)
	IndexOperations *prometheus.CounterVec

	// IndexEntries is the number of entries of a database table.
	// Labels: database
	IndexEntries *prometheus.GaugeVec
}

// New - Returns a pointer to a new Metrics with its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		OperationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "operations_sent_total",
			Help:      "Total operations logged and sent to members",
		}, []string{"database"}),
		QuorumOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "quorum_outcomes_total",
			Help:      "Total finished requests by outcome",
		}, []string{"database", "status"}),
		Timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "timeouts_total",
			Help:      "Total timeout checks on unfinished requests",
		}, []string{"database"}),
		InFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "requests_in_flight",
			Help:      "Requests waiting for responses",
		}, []string{"database"}),
		QuorumLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "quorum_latency_seconds",
			Help:      "Time from broadcast to a finished request",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"database"}),
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "received_total",
			Help:      "Total log entries received by status",
		}, []string{"database", "status"}),
		Resyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "resyncs_total",
			Help:      "Total resync requests",
		}, []string{"database", "side"}),
		IndexOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Total hash table operations applied",
		}, []string{"database", "operation", "outcome"}),
		IndexEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "entries",
			Help:      "Entries in the database table",
		}, []string{"database"}),
	}
}

// Registry - Returns the registry the collectors are registered with
func (M *Metrics) Registry() *prometheus.Registry {
	return M.registry
}

// Handler - Returns an http handler exposing the registry
func (M *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(M.registry, promhttp.HandlerOpts{Registry: M.registry})
}
