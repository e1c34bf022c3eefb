// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package console

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/metrics"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

// BreakerSettings configures the per-instance circuit breaker.
type BreakerSettings struct {
	FailureRatio float64
	MinRequests  uint32
	Interval     time.Duration // reset counts after this long in closed state
	Timeout      time.Duration // open -> half-open delay
}

// newBreaker builds a breaker that opens when the ratio of InstanceUnavailable
// failures reaches FailureRatio over at least MinRequests calls. Authentication,
// rate limit and generic API errors are successes from the breaker's view.
func newBreaker(instanceID string, s BreakerSettings) *gobreaker.CircuitBreaker[*response] {
	metrics.SetCircuitBreakerState(instanceID, 0)

	return gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        instanceID,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailureRatio
			if shouldTrip {
				logging.Warn().
					Str("instance_id", instanceID).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			var unavailable *syncerr.InstanceUnavailableError
			return err == nil || !errors.As(err, &unavailable)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("instance_id", name).Str("from", fromStr).Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.SetCircuitBreakerState(name, stateToFloat(to))
			metrics.RecordCircuitBreakerTransition(name, fromStr, toStr)
		},
	})
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
