// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package api provides the HTTP trigger surface on a chi router.

Endpoints:

	POST /api/v1/sync   run a sync inline, or enqueue it with "async": true
	GET  /health        dependency checks; 503 when any fails
	GET  /metrics       Prometheus exposition

Request body (all fields optional; an empty body syncs everything):

	{"instance_id": "prod", "account_id": "ops", "app_type": "workflow", "async": false}

An inline sync answers 200 with the statistics record, even when individual
apps failed; callers inspect "errors" and "error_details". Failures that abort
the run answer with {"error": ..., "kind": ...}:

	400  validation: malformed body, unknown instance or account
	502  authentication, rate_limit, instance_unavailable
	500  anything else

An async request answers 202 with the message identity, or 503 when the
queue is disabled.

The /api/v1 group is rate limited per client IP via httprate and instrumented
by middleware.PrometheusMetrics. CORS is global so preflights are answered
before rate limiting.
*/
package api
