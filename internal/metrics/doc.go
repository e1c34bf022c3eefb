// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package metrics provides Prometheus metrics for sync runs, remote calls and
the queued transport.

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format when running
`consolesync serve`.

# Available Metrics

Sync Metrics:
  - consolesync_sync_runs_total: finished runs (counter)
    Labels: result (success, soft_fail, hard_fail)
  - consolesync_sync_duration_seconds: run duration (histogram)
  - consolesync_apps_synced_total: apps processed (counter)
    Labels: outcome (created, updated, failed)
  - consolesync_sync_errors_total: errors folded into statistics (counter)
    Labels: kind (syncerr kind)
  - consolesync_dsl_versions_created_total: DSL versions appended (counter)

Auth Metrics:
  - consolesync_token_refresh_total: logins performed (counter)
    Labels: result (success, failure)

Console Client Metrics:
  - consolesync_console_requests_total (counter)
    Labels: endpoint, status
  - consolesync_console_request_duration_seconds (histogram)
    Labels: endpoint
  - consolesync_circuit_breaker_state (gauge)
    Labels: instance. Values: 0=closed, 1=half-open, 2=open

Queue Metrics:
  - consolesync_queue_messages_total (counter)
    Labels: result (processed, failed, rejected)
*/
package metrics
