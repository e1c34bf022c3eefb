// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/syncerr"
	"github.com/tomtom215/consolesync/internal/validation"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Kind   string       `json:"kind"`
	Fields []FieldIssue `json:"fields,omitempty"`
}

// FieldIssue describes one rejected request field.
type FieldIssue struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func fieldIssues(verr *validation.RequestValidationError) []FieldIssue {
	errs := verr.Errors()
	out := make([]FieldIssue, 0, len(errs))
	for i := range errs {
		out = append(out, FieldIssue{
			Field:   errs[i].Field(),
			Tag:     errs[i].Tag(),
			Message: errs[i].Error(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	w.Write(body)
}

// writeSyncError maps err onto a status code:
//
//	validation (bad scope, unknown instance or account) -> 400
//	authentication, rate limit, instance unavailable    -> 502
//	client went away                                    -> 499 (logged only)
//	anything else                                       -> 500
func writeSyncError(w http.ResponseWriter, r *http.Request, err error) {
	kind := syncerr.KindOf(err)
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		status = statusClientClosedRequest
	case kind == syncerr.KindValidation:
		status = http.StatusBadRequest
	case syncerr.IsHardFailure(err):
		status = http.StatusBadGateway
	}

	var rateErr *syncerr.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
	}

	log := logging.Ctx(r.Context())
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("kind", string(kind)).Int("status", status).Msg("Sync request failed")

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

// statusClientClosedRequest is the nginx convention for a client that
// disconnected before the response.
const statusClientClosedRequest = 499
