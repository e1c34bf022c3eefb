// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package models defines the entities mirrored from remote console instances.

Key Components:

  - Instance: a remote console deployment (base URL, enabled flag)
  - Account: credentials for one Instance plus the cached bearer token
  - App: a synced application; a tagged union over ChatAssistant, Chatflow
    and Workflow with the variant configuration held in App.Config
  - Site: published access-point metadata for an App, keyed by its site id
  - DSLVersion: an immutable, content-addressed DSL snapshot

Variant Dispatch:

App.Type is the discriminant. ResolveAppType maps the remote "mode" string
onto it (chat, agent-chat, advanced-chat and completion are chat assistants).
App.Config always holds the config struct matching App.Type; NewApp enforces
this and App's JSON codec round-trips it.

Thread Safety:

Models are plain values with no internal locking. Callers that share them
across goroutines must copy or synchronize.
*/
package models
