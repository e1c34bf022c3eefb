// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

// Package main is the consolesync command line.
//
// Consolesync mirrors the applications of remote console deployments into a
// local store and keeps a version history of each application's exported DSL.
//
// # Commands
//
//	consolesync sync [--instance ID] [--account ID] [--app-type TYPE]
//	consolesync serve
//	consolesync enqueue [--instance ID] [--account ID] [--app-type TYPE]
//	consolesync prune-dsl [--keep N]
//
// sync runs once in the foreground and prints the run statistics as JSON.
// serve starts the HTTP trigger surface under a supervisor tree, plus the
// NATS queue consumer when NATS_ENABLED=true and the periodic scheduler when
// SYNC_INTERVAL is set. enqueue publishes a request to the queue for a serve
// process to pick up.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (--config, CONFIG_PATH, or config.yaml)
//   - Built-in defaults
//
// Instances and accounts listed in the config file are registered in the
// store on every start.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the running command. An inline sync stops at the
// next remote call; serve drains the HTTP server and queue consumer.
package main

import "os"

func main() {
	os.Exit(Execute())
}
