// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package taskqueue carries sync requests over a message bus.

A SyncMessage is the queued form of a sync.SyncRequest. Its Identity hashes
the request scope together with the caller's request id, so the same trigger
published twice is processed once within the deduplication window.

Components:

  - SyncMessage: payload, identity and watermill message construction
  - Handler: runs the engine for one message and decides ack or redelivery
  - Router: watermill router with Recoverer, Deduplicator, PoisonQueue and Retry
  - NewPublisher / NewSubscriber: NATS JetStream transport from config.NATSConfig
  - EnsureStream / ProvisionStream: create or update the stream both topics live on
  - EmbeddedServer: in-process JetStream server for single-node deployments
  - Enqueuer: publishes SyncMessages for the HTTP trigger and the CLI

Delivery:

Authentication, rate-limit and transport failures are returned to watermill and
retried, then routed to the poison topic. A message whose payload is malformed
or names an unknown instance or account is logged and acknowledged, since
redelivery cannot succeed.

Usage:

	_ = taskqueue.ProvisionStream(ctx, cfg.NATS)
	pub, _ := taskqueue.NewPublisher(cfg.NATS, logger)
	sub, _ := taskqueue.NewSubscriber(cfg.NATS, logger)
	rcfg := taskqueue.RouterConfigFromNATS(cfg.NATS)
	router, _ := taskqueue.NewRouter(&rcfg, pub, logger)
	router.AddConsumerHandler("sync", cfg.NATS.Topic, sub, taskqueue.NewHandler(engine).Handle)
	go router.Run(ctx)
*/
package taskqueue
