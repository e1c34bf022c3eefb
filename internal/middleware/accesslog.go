// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package middleware

import (
	"net/http"
	"time"

	"github.com/tomtom215/consolesync/internal/logging"
)

// AccessLog logs every request at debug level and requests slower than
// slowThreshold at warn level. A zero threshold disables the warning.
// It must run after RequestID so the log line carries the request id.
func AccessLog(slowThreshold time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
			log := logging.Ctx(r.Context())
			event := log.Debug()
			msg := "HTTP request"
			if slowThreshold > 0 && duration > slowThreshold {
				event = log.Warn()
				msg = "Slow request detected"
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapper.statusCode).
				Int64("duration_ms", duration.Milliseconds()).
				Msg(msg)
		})
	}
}
