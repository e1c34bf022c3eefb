// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync in the foreground",
		Long: `Pulls apps from every enabled instance and account, or the subset selected by flags,
and prints the run statistics as JSON. Per-app failures are counted in the statistics;
the command fails only when the run itself aborts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApplication(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, runErr := app.engine.SyncApps(cmd.Context(), flags.request())
			if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("sync failed: %w", runErr)
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
