// Package metrics holds the Prometheus collectors of the broker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts created sessions by provider.
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_sessions_created_total",
			Help: "Total number of sessions created",
		},
		[]string{"provider"},
	)

	// SessionJoins counts successful joins by provider and result (new|rejoin).
	SessionJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_session_joins_total",
			Help: "Total number of successful session joins",
		},
		[]string{"provider", "result"},
	)

	// SessionsEnded counts active→ended transitions.
	SessionsEnded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_sessions_ended_total",
			Help: "Total number of sessions ended",
		},
	)

	// TokensIssued counts issued provider tokens by kind (media|messaging).
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_tokens_issued_total",
			Help: "Total number of provider tokens issued",
		},
		[]string{"provider", "kind"},
	)

	// SecondaryTokenFailures counts absorbed messaging token failures.
	SecondaryTokenFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_secondary_token_failures_total",
			Help: "Total number of messaging token failures",
		},
		[]string{"provider"},
	)

	// OperationErrors counts failed lifecycle operations by error kind.
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_operation_errors_total",
			Help: "Total number of failed session operations",
		},
		[]string{"operation", "kind"},
	)

	// RealtimeConnections tracks open WebSocket connections on this instance.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// RealtimeBroadcasts counts room broadcasts by event.
	RealtimeBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_realtime_broadcasts_total",
			Help: "Total number of realtime room broadcasts",
		},
		[]string{"event"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
