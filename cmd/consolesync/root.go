// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/consolesync/internal/config"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/models"
	appsync "github.com/tomtom215/consolesync/internal/sync"
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "consolesync",
		Short:         "Mirror console apps and version their DSL",
		Long:          `Consolesync pulls applications from remote console deployments into a local store and keeps a deduplicated history of each app's DSL export.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			logging.Init(logging.Config{
				Level:     cfg.Logging.Level,
				Format:    cfg.Logging.Format,
				Caller:    cfg.Logging.Caller,
				Timestamp: true,
				Output:    cmd.ErrOrStderr(),
			})
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newSyncCmd(opts),
		newServeCmd(opts),
		newEnqueueCmd(opts),
		newPruneCmd(opts),
	)
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadWithKoanf()
}

// requestFlags binds the scope selectors shared by sync and enqueue.
type requestFlags struct {
	instanceID string
	accountID  string
	appType    string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.instanceID, "instance", "", "limit the run to one instance id")
	cmd.Flags().StringVar(&f.accountID, "account", "", "limit the run to one account id")
	cmd.Flags().StringVar(&f.appType, "app-type", "", "limit the run to one app type")
}

func (f *requestFlags) request() appsync.SyncRequest {
	return appsync.SyncRequest{
		InstanceID: f.instanceID,
		AccountID:  f.accountID,
		AppType:    models.AppType(f.appType),
	}
}
