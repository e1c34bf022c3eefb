// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package main

import (
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/taskqueue"
)

// enqueueResult is the enqueue output.
type enqueueResult struct {
	Identity  string `json:"identity"`
	RequestID string `json:"request_id"`
}

func newEnqueueCmd(opts *rootOptions) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish a sync request to the NATS queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if !cfg.NATS.Enabled {
				return errors.New("queue disabled: set NATS_ENABLED=true")
			}

			if err := taskqueue.ProvisionStream(cmd.Context(), cfg.NATS); err != nil {
				return err
			}

			publisher, err := taskqueue.NewPublisher(cfg.NATS, logging.NewWatermillLogger())
			if err != nil {
				return err
			}
			defer func() {
				if err := publisher.Close(); err != nil {
					logging.Warn().Err(err).Msg("Error closing publisher")
				}
			}()

			requestID := uuid.NewString()
			ctx := logging.ContextWithRequestID(cmd.Context(), requestID)

			identity, err := taskqueue.NewEnqueuer(publisher, cfg.NATS.Topic).Enqueue(ctx, flags.request())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), enqueueResult{Identity: identity, RequestID: requestID})
		},
	}
	flags.bind(cmd)
	return cmd
}
