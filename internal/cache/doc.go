// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package cache provides a bounded, expiring key set used to deduplicate queued
sync messages.

LRUCache keeps at most a fixed number of keys, evicting the least recently
used one when full, and forgets each key after a TTL:

	seen := cache.NewLRUCache(10000, 5*time.Minute)
	if seen.IsDuplicate(identity) {
	    return // already handled within the window
	}

All operations are O(1) except CleanupExpired, which walks the whole list.
*/
package cache
