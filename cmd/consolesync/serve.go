// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/consolesync/internal/api"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/supervisor"
	"github.com/tomtom215/consolesync/internal/supervisor/services"
	"github.com/tomtom215/consolesync/internal/taskqueue"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger API and queue consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

//nolint:gocyclo // sequential wiring of optional components
func serve(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	logging.Info().Msg("Starting consolesync with supervisor tree")

	app, err := openApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	var enqueuer api.Enqueuer
	var consumer *queueConsumer
	var embedded *taskqueue.EmbeddedServer
	if cfg.NATS.Enabled {
		natsCfg := cfg.NATS
		if natsCfg.EmbeddedServer {
			embedded, err = taskqueue.NewEmbeddedServer(taskqueue.EmbeddedServerConfig{
				Port:     natsCfg.EmbeddedPort,
				StoreDir: natsCfg.StoreDir,
			})
			if err != nil {
				return err
			}
			defer embedded.Shutdown()
			natsCfg.URL = embedded.ClientURL()
			logging.Info().Str("url", natsCfg.URL).Str("store_dir", natsCfg.StoreDir).Msg("Embedded NATS server started")
		}

		if err := taskqueue.ProvisionStream(ctx, natsCfg); err != nil {
			return err
		}

		wmLogger := logging.NewWatermillLogger()
		publisher, err := taskqueue.NewPublisher(natsCfg, wmLogger)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing NATS publisher")
			}
		}()

		enqueuer = taskqueue.NewEnqueuer(publisher, natsCfg.Topic)
		consumer = newQueueConsumer(natsCfg, publisher, taskqueue.NewHandler(app.engine), wmLogger)
		tree.AddWorkerService(services.NewQueueService(consumer.build))
		logging.Info().
			Str("url", natsCfg.URL).
			Str("stream", natsCfg.StreamName).
			Str("topic", natsCfg.Topic).
			Str("queue_group", natsCfg.QueueGroup).
			Msg("Queue consumer added to supervisor tree")
	} else {
		logging.Info().Msg("Queue disabled (NATS_ENABLED=false), async sync requests will be refused")
	}

	if cfg.Sync.Interval > 0 {
		tree.AddWorkerService(services.NewSchedulerService(app.engine, cfg.Sync.Interval))
		logging.Info().Dur("interval", cfg.Sync.Interval).Msg("Sync scheduler added to supervisor tree")
	}

	handler := api.NewHandler(app.engine, enqueuer)
	handler.AddHealthCheck("store", app.store.Ping)
	if consumer != nil {
		handler.AddHealthCheck("queue", consumer.check)
	}
	if embedded != nil {
		handler.AddHealthCheck("nats", embedded.Check)
	}

	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server))
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
	return nil
}
