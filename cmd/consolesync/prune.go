// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/consolesync/internal/logging"
)

// pruneResult is the prune-dsl output.
type pruneResult struct {
	Keep    int `json:"keep"`
	Removed int `json:"removed"`
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune-dsl",
		Short: "Trim each app's DSL history to the newest versions",
		Long: `Deletes all but the newest --keep DSL versions of every app. Without --keep the
SYNC_DSL_RETENTION setting is used. Sync runs never prune on their own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = opts.cfg.Sync.DSLRetention
			}
			if keep < 1 {
				return errors.New("nothing to prune: --keep (or SYNC_DSL_RETENTION) must be at least 1")
			}

			app, err := openApplication(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			removed, err := app.engine.PruneDSL(cmd.Context(), keep)
			if err != nil {
				return fmt.Errorf("prune dsl: %w", err)
			}
			logging.Info().Int("keep", keep).Int("removed", removed).Msg("DSL history pruned")
			return printJSON(cmd.OutOrStdout(), pruneResult{Keep: keep, Removed: removed})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "number of newest versions to keep per app")
	return cmd
}
