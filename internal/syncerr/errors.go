// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

// Package syncerr defines the error taxonomy used across the sync engine.
//
// Every failure that crosses a component boundary is one of:
//
//   - AuthenticationError: login or token failures, HTTP 401/403
//   - RateLimitError: HTTP 429 with retry hints
//   - InstanceUnavailableError: HTTP 5xx, network failure, open circuit breaker
//   - APIError: any other remote failure (the "generic" kind)
//   - ValidationError: locally detected bad or missing fields
//   - SyncError: a tagged wrapper naming the sync phase that failed
//
// KindOf resolves the kind of any (possibly wrapped) error.
package syncerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies an error class in the taxonomy.
type Kind string

const (
	KindAuthentication      Kind = "authentication"
	KindRateLimit           Kind = "rate_limit"
	KindInstanceUnavailable Kind = "instance_unavailable"
	KindGeneric             Kind = "generic"
	KindValidation          Kind = "validation"
	KindSync                Kind = "sync"
	KindUnknown             Kind = "unknown"
)

// Authentication failure reasons.
const (
	ReasonLoginFailed            = "login_failed"
	ReasonTokenInvalid           = "token_invalid"
	ReasonInsufficientPermission = "insufficient_permission"
)

// Instance unavailability reasons.
const (
	ReasonServerError = "server_error"
	ReasonNetwork     = "network"
	ReasonTimeout     = "timeout"
	ReasonMaintenance = "maintenance"
	ReasonCircuitOpen = "circuit_open"
)

// AuthenticationError reports a login or token failure.
type AuthenticationError struct {
	Reason  string
	Message string
	Status  int
	Body    string
}

func (e *AuthenticationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed (%s, HTTP %d): %s", e.Reason, e.Status, e.Message)
	}
	return fmt.Sprintf("authentication failed (%s): %s", e.Reason, e.Message)
}

// RateLimitError reports HTTP 429. Optional hints are nil when the headers were absent.
type RateLimitError struct {
	Message    string
	RetryAfter *time.Duration
	Remaining  *int
	ResetAt    *time.Time
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("rate limited: %s (retry after %s)", e.Message, e.RetryAfter.String())
	}
	return "rate limited: " + e.Message
}

// InstanceUnavailableError reports a console instance that cannot serve requests.
type InstanceUnavailableError struct {
	InstanceURL string
	Reason      string
	Status      int
	Body        string
	Err         error
}

func (e *InstanceUnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "instance %s unavailable (%s", e.InstanceURL, e.Reason)
	if e.Status != 0 {
		fmt.Fprintf(&b, ", HTTP %d", e.Status)
	}
	b.WriteString(")")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InstanceUnavailableError) Unwrap() error { return e.Err }

// APIError is the generic remote failure: any HTTP/API error not covered by a
// more specific kind.
type APIError struct {
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("console API error (HTTP %d): %s", e.Status, e.Message)
}

// ValidationError reports a locally detected bad or missing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Phase names the sync scope a SyncError belongs to.
type Phase string

const (
	PhaseApp      Phase = "app"
	PhaseAccount  Phase = "account"
	PhaseInstance Phase = "instance"
)

// SyncError tags an underlying failure with the phase and entity it happened in.
type SyncError struct {
	Phase    Phase
	EntityID string
	Context  map[string]string
	Err      error
}

func (e *SyncError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s sync failed", e.Phase, e.EntityID)
	for _, k := range sortedKeys(e.Context) {
		fmt.Fprintf(&b, " %s=%s", k, e.Context[k])
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SyncError) Unwrap() error { return e.Err }

// Wrap tags err with a sync phase. It returns nil for a nil err.
func Wrap(phase Phase, entityID string, err error, kv ...string) error {
	if err == nil {
		return nil
	}
	var ctx map[string]string
	if len(kv) > 1 {
		ctx = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			ctx[kv[i]] = kv[i+1]
		}
	}
	return &SyncError{Phase: phase, EntityID: entityID, Context: ctx, Err: err}
}

// Validation is a shorthand constructor for ValidationError.
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the most specific taxonomy kind in err's chain. A SyncError
// reports the kind of the error it wraps, falling back to KindSync.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var authErr *AuthenticationError
	var rateErr *RateLimitError
	var unavailErr *InstanceUnavailableError
	var apiErr *APIError
	var valErr *ValidationError
	var syncErr *SyncError

	switch {
	case errors.As(err, &authErr):
		return KindAuthentication
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &unavailErr):
		return KindInstanceUnavailable
	case errors.As(err, &apiErr):
		return KindGeneric
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &syncErr):
		return KindSync
	default:
		return KindUnknown
	}
}

// IsHardFailure reports whether err is one the caller must treat as a failed
// run (authentication or transport), rather than a per-item soft failure.
func IsHardFailure(err error) bool {
	switch KindOf(err) {
	case KindAuthentication, KindRateLimit, KindInstanceUnavailable:
		return true
	default:
		return false
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
