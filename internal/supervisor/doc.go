// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package supervisor runs the long-lived parts of serve mode under suture v4.

The tree has two layers so a failing queue consumer cannot take the HTTP
trigger down with it:

	RootSupervisor ("consolesync")
	├── WorkerSupervisor ("worker-layer")
	│   ├── QueueService      (if NATS_ENABLED)
	│   └── SchedulerService  (if SYNC_INTERVAL > 0)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's failure decay and backoff.
Supervisor events are logged through sutureslog on the zerolog-backed slog
logger from the logging package.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddWorkerService(services.NewQueueService(buildRouter))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)

Service implementations live in the services subpackage.
*/
package supervisor
