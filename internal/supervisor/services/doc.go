// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

// Package services adapts serve-mode components to suture.Service.
//
// Every Serve blocks until its context is canceled and then returns
// ctx.Err(); any other return is treated by suture as a crash and restarted.
package services
