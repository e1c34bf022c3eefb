// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package models

import "time"

// DSLVersion is an immutable DSL snapshot. Version starts at 1 per app and
// Hash is the sha256 of the canonical JSON encoding of Content.
type DSLVersion struct {
	ID         string                 `json:"id"`
	AppID      string                 `json:"app_id"`
	Version    int                    `json:"version"`
	Content    map[string]interface{} `json:"content"`
	RawContent string                 `json:"raw_content"`
	Hash       string                 `json:"hash"`
	SyncedAt   time.Time              `json:"synced_at"`
}
