// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package sync mirrors console apps, their sites and DSL history into the local store.

Key Components:

  - Engine: runs a sync over the selected (instance, account) scopes
  - Reconciler: resolves a remote app id to its local record, keyed by
    (instance, remote id) only, so ownership may move between accounts
  - MapAppFields: copies remote fields onto an app, dispatching on the variant
  - SiteMerger: creates or updates the published site of an app
  - DSLManager: appends a DSL version when the content hash changes
  - Stats: value-returning accumulator merged across parallel scopes

Idempotence:

Re-running a sync against unchanged remote data writes no DSL version and
leaves app and site content untouched; only last-sync timestamps move. An app's
UpdatedAt changes only when its synced content does.

Usage:

	engine := sync.NewEngine(st, authMgr, sync.NewClientFactory(consoleOpts), sync.OptionsFromConfig(cfg))
	stats, err := engine.SyncApps(ctx, sync.SyncRequest{AppType: models.AppTypeWorkflow})
	if err != nil {
	    // hard failure: authentication, listing or transport
	}
	if stats.HasErrors() {
	    // soft failure: stats.ErrorDetails lists the apps that failed
	}
*/
package sync
