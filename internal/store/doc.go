// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package store persists mirrored console entities.

The sync engine depends only on the repository operations exposed here
(find-by-id, find-by-criteria, persist, flush); the storage engine is a
Backend, either the in-memory map used in tests and one-shot runs or BadgerDB
for durable deployments.

Layout:

  - Backend: namespaced key/value storage with atomic multi-key Commit
  - Repository[T]: typed access to one namespace, JSON encoded via goccy/go-json
  - Store: the repositories for instances, accounts, sites, DSL versions and
    one app repository per variant, selected by models.AppType
  - Session: a unit of work; Persist stages writes, Flush commits them atomically,
    Detach and Discard drop staged writes

Key Prefixes (badger):

	instance:<id>
	account:<id>
	app_chat_assistant:<id>, app_chatflow:<id>, app_workflow:<id>
	app_remote:<instance id>|<remote app id>   -> "<type>|<app id>"
	site:<site id>
	dsl:<app id>/<zero padded version>

Account passwords and access tokens pass through a Sealer before they are
encoded, so they are encrypted at rest when a secret key is configured.
*/
package store
