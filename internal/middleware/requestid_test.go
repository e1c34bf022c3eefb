// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/consolesync/internal/logging"
)

func serveRequestID(t *testing.T, header string) (responseID, contextID, correlationID string) {
	t.Helper()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = GetRequestID(r.Context())
		correlationID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec.Header().Get(RequestIDHeader), contextID, correlationID
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	responseID, contextID, correlationID := serveRequestID(t, "")

	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("response X-Request-ID %q is not a UUID: %v", responseID, err)
	}
	if contextID != responseID {
		t.Errorf("context id %q != response id %q", contextID, responseID)
	}
	if correlationID == "" {
		t.Error("expected a correlation id in context")
	}
}

func TestRequestID_PreservesExistingID(t *testing.T) {
	responseID, contextID, _ := serveRequestID(t, "upstream-42")

	if responseID != "upstream-42" || contextID != "upstream-42" {
		t.Errorf("ids = %q / %q, want upstream-42", responseID, contextID)
	}
}

func TestRequestID_ReplacesMalformedID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"too long", strings.Repeat("x", maxRequestIDLength+1)},
		{"contains space", "two words"},
		{"control char", "id\x01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responseID, _, _ := serveRequestID(t, tt.header)
			if responseID == tt.header {
				t.Errorf("malformed id %q was kept", tt.header)
			}
			if _, err := uuid.Parse(responseID); err != nil {
				t.Errorf("replacement %q is not a UUID", responseID)
			}
		})
	}
}
