// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync run results
const (
	ResultSuccess  = "success"
	ResultSoftFail = "soft_fail"
	ResultHardFail = "hard_fail"
)

var (
	// Sync Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_sync_runs_total",
			Help: "Total number of finished sync runs by result",
		},
		[]string{"result"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consolesync_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	AppsSyncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_apps_synced_total",
			Help: "Total number of apps processed by outcome",
		},
		[]string{"outcome"}, // "created", "updated", "failed"
	)

	SyncErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_sync_errors_total",
			Help: "Total number of sync errors by kind",
		},
		[]string{"kind"},
	)

	DSLVersionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consolesync_dsl_versions_created_total",
			Help: "Total number of DSL versions appended",
		},
	)

	// Auth Metrics
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_token_refresh_total",
			Help: "Total number of account logins by result",
		},
		[]string{"result"},
	)

	// Console Client Metrics
	ConsoleRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_console_requests_total",
			Help: "Total number of remote console requests",
		},
		[]string{"endpoint", "status"},
	)

	ConsoleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consolesync_console_request_duration_seconds",
			Help:    "Duration of remote console requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consolesync_circuit_breaker_state",
			Help: "Circuit breaker state per instance (0=closed, 1=half-open, 2=open)",
		},
		[]string{"instance"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"instance", "from", "to"},
	)

	// Queue Metrics
	QueueMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_queue_messages_total",
			Help: "Total number of queued sync messages handled by result",
		},
		[]string{"result"}, // "processed", "partial", "failed", "rejected"
	)

	// HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolesync_api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consolesync_api_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consolesync_api_active_requests",
			Help: "Number of HTTP API requests in flight",
		},
	)
)

// RecordSyncRun records the outcome of one finished sync run.
func RecordSyncRun(duration time.Duration, errorCount int, hardErr error) {
	SyncDuration.Observe(duration.Seconds())
	switch {
	case hardErr != nil:
		SyncRunsTotal.WithLabelValues(ResultHardFail).Inc()
	case errorCount > 0:
		SyncRunsTotal.WithLabelValues(ResultSoftFail).Inc()
	default:
		SyncRunsTotal.WithLabelValues(ResultSuccess).Inc()
	}
}

// RecordAppOutcome counts one processed app.
func RecordAppOutcome(outcome string) {
	AppsSyncedTotal.WithLabelValues(outcome).Inc()
}

// RecordSyncError counts one error folded into statistics.
func RecordSyncError(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	SyncErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordDSLVersionCreated counts one appended DSL version.
func RecordDSLVersionCreated() {
	DSLVersionsCreatedTotal.Inc()
}

// RecordTokenRefresh counts one login attempt.
func RecordTokenRefresh(success bool) {
	if success {
		TokenRefreshTotal.WithLabelValues("success").Inc()
		return
	}
	TokenRefreshTotal.WithLabelValues("failure").Inc()
}

// RecordConsoleRequest records one remote call. status 0 means no response.
func RecordConsoleRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ConsoleRequestsTotal.WithLabelValues(endpoint, label).Inc()
	ConsoleRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the breaker gauge of an instance.
func SetCircuitBreakerState(instance string, state float64) {
	CircuitBreakerState.WithLabelValues(instance).Set(state)
}

// RecordCircuitBreakerTransition counts a breaker state change.
func RecordCircuitBreakerTransition(instance, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(instance, from, to).Inc()
}

// RecordQueueMessage counts one handled queue message.
func RecordQueueMessage(result string) {
	QueueMessagesTotal.WithLabelValues(result).Inc()
}

// RecordAPIRequest records a finished HTTP request. route is the matched
// route pattern, not the raw path.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
