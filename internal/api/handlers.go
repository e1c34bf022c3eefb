// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/models"
	appsync "github.com/tomtom215/consolesync/internal/sync"
	"github.com/tomtom215/consolesync/internal/validation"
)

// maxRequestBody bounds POST bodies; a sync request is a handful of ids.
const maxRequestBody = 64 << 10

// Syncer runs a sync inline. *sync.Engine implements it.
type Syncer interface {
	SyncApps(ctx context.Context, req appsync.SyncRequest) (appsync.Stats, error)
}

// Enqueuer publishes a sync request. *taskqueue.Enqueuer implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req appsync.SyncRequest) (string, error)
}

// HealthCheck reports whether one dependency is serving.
type HealthCheck func(ctx context.Context) error

// SyncRequestBody is the POST /api/v1/sync payload.
type SyncRequestBody struct {
	InstanceID string         `json:"instance_id,omitempty" validate:"omitempty,max=128"`
	AccountID  string         `json:"account_id,omitempty" validate:"omitempty,max=128"`
	AppType    models.AppType `json:"app_type,omitempty" validate:"omitempty,app_type"`
	Async      bool           `json:"async,omitempty"`
}

// EnqueueResponse is returned with 202 for async requests.
type EnqueueResponse struct {
	Identity  string `json:"identity"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status        string            `json:"status"` // "healthy" or "degraded"
	QueueEnabled  bool              `json:"queue_enabled"`
	Checks        map[string]string `json:"checks,omitempty"`
	UptimeSeconds float64           `json:"uptime_seconds"`
}

// Handler serves the trigger API.
type Handler struct {
	syncer    Syncer
	enqueuer  Enqueuer
	checks    map[string]HealthCheck
	startTime time.Time
}

// NewHandler creates a handler. A nil enqueuer makes async requests fail
// with 503.
func NewHandler(syncer Syncer, enqueuer Enqueuer) *Handler {
	return &Handler{
		syncer:    syncer,
		enqueuer:  enqueuer,
		checks:    make(map[string]HealthCheck),
		startTime: time.Now(),
	}
}

// AddHealthCheck registers a named dependency check for GET /health.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Sync handles POST /api/v1/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeSyncBody(w, r)
	if !ok {
		return
	}

	req := appsync.SyncRequest{
		InstanceID: body.InstanceID,
		AccountID:  body.AccountID,
		AppType:    body.AppType,
	}

	if body.Async {
		h.enqueue(w, r, req)
		return
	}

	stats, err := h.syncer.SyncApps(r.Context(), req)
	if err != nil {
		writeSyncError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, req appsync.SyncRequest) {
	if h.enqueuer == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "queued sync is not enabled",
			Kind:  "unavailable",
		})
		return
	}

	identity, err := h.enqueuer.Enqueue(r.Context(), req)
	if err != nil {
		writeSyncError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, EnqueueResponse{
		Identity:  identity,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

// decodeSyncBody reads and validates the request body. An empty body is a
// request to sync everything.
func decodeSyncBody(w http.ResponseWriter, r *http.Request) (SyncRequestBody, bool) {
	var body SyncRequestBody

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  "validation",
		})
		return body, false
	}

	if verr := validation.ValidateStruct(&body); verr != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  verr.Error(),
			Kind:   "validation",
			Fields: fieldIssues(verr),
		})
		return body, false
	}
	return body, true
}

// Health handles GET /health. It answers 503 when any check fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "healthy",
		QueueEnabled:  h.enqueuer != nil,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := h.checks[name](ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				logging.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("Health check failed")
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
