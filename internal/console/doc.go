// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package console is the HTTP gateway to a remote console instance.

It issues the four remote calls the sync engine needs:

	POST /console/api/login                              email/password -> bearer token
	GET  /console/api/apps?page=&limit=&mode=            paginated app list
	GET  /console/api/apps/{id}                          app detail
	GET  /console/api/apps/{id}/export?include_secret=false   DSL export

and normalizes every response into typed results or syncerr errors. Non-2xx
statuses go through syncerr.ClassifyHTTP; transport failures become
InstanceUnavailable errors. Calls use a fixed per-call timeout and are never
retried in process.

Each Client guards its instance with a gobreaker circuit breaker (only
InstanceUnavailable failures count against it) and an optional token bucket
limiter from golang.org/x/time/rate.
*/
package console
