// ABOUTME: Prometheus metrics for the sync engine and daemon
// ABOUTME: Tracks queue backlog, flush throughput, pull counts, and breaker state
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsFlushed counts queue tasks successfully applied to the remote,
	// labeled by task type (SAVE/DELETE)
	MutationsFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coldflow_mutations_flushed_total",
		Help: "Total number of mutation queue tasks applied to the remote store",
	}, []string{"type"})

	// EventsFlushed counts domain events delivered to the remote events table
	EventsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coldflow_events_flushed_total",
		Help: "Total number of domain events delivered to the remote store",
	})

	// RemotePulls counts reconciliation pulls by kind (full/incremental)
	RemotePulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coldflow_remote_pulls_total",
		Help: "Total number of completed reconciliation pulls",
	}, []string{"kind"})

	// QueueBacklog is the primary indicator of sync lag: pending tasks plus
	// pending events still waiting for the remote
	QueueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coldflow_queue_backlog",
		Help: "Current number of pending mutation tasks and domain events",
	})

	// BackendDisabled is 1 while the circuit breaker holds the engine in
	// local-only mode
	BackendDisabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coldflow_backend_disabled",
		Help: "Whether remote sync is disabled by the circuit breaker (1) or not (0)",
	})
)
