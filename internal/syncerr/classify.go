// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package syncerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxBodyInError bounds the raw body retained on classified errors.
const maxBodyInError = 4096

// ClassifyHTTP maps a non-2xx console response onto the error taxonomy:
//
//	401      -> AuthenticationError (token_invalid)
//	403      -> AuthenticationError (insufficient_permission)
//	429      -> RateLimitError with Retry-After / X-RateLimit-* hints
//	500-504  -> InstanceUnavailableError carrying the instance URL and body
//	other    -> APIError with a message taken from the body
//
// It returns nil for 2xx statuses.
func ClassifyHTTP(instanceURL string, status int, header http.Header, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	raw := truncate(string(body))
	msg := extractMessage(body, status)

	switch {
	case status == http.StatusUnauthorized:
		return &AuthenticationError{Reason: ReasonTokenInvalid, Message: msg, Status: status, Body: raw}
	case status == http.StatusForbidden:
		return &AuthenticationError{Reason: ReasonInsufficientPermission, Message: msg, Status: status, Body: raw}
	case status == http.StatusTooManyRequests:
		return newRateLimitError(msg, header, raw)
	case status >= 500 && status <= 504:
		reason := ReasonServerError
		if status == http.StatusServiceUnavailable {
			reason = ReasonMaintenance
		}
		return &InstanceUnavailableError{InstanceURL: instanceURL, Reason: reason, Status: status, Body: raw}
	default:
		return &APIError{Status: status, Message: msg, Body: raw}
	}
}

// ClassifyTransport maps an error returned by the HTTP client (no response)
// onto InstanceUnavailableError. Context cancellation by the caller is returned as is.
func ClassifyTransport(instanceURL string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	reason := ReasonNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		reason = ReasonTimeout
	}
	return &InstanceUnavailableError{InstanceURL: instanceURL, Reason: reason, Err: err}
}

func newRateLimitError(msg string, header http.Header, raw string) *RateLimitError {
	e := &RateLimitError{Message: msg, Body: raw}
	if header == nil {
		return e
	}
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			e.RetryAfter = &d
		} else if at, err := http.ParseTime(v); err == nil {
			d := time.Until(at)
			if d < 0 {
				d = 0
			}
			e.RetryAfter = &d
		}
	}
	if v := strings.TrimSpace(header.Get("X-RateLimit-Remaining")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			e.Remaining = &n
		}
	}
	if v := strings.TrimSpace(header.Get("X-RateLimit-Reset")); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			at := time.Unix(unix, 0).UTC()
			e.ResetAt = &at
		}
	}
	return e
}

// extractMessage looks for message, error or detail in a JSON body.
func extractMessage(body []byte, status int) string {
	fallback := fmt.Sprintf("HTTP %d", status)
	if len(body) == 0 {
		return fallback
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func truncate(s string) string {
	if len(s) <= maxBodyInError {
		return s
	}
	return s[:maxBodyInError] + "...(truncated)"
}
