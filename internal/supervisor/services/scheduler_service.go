// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/consolesync/internal/logging"
	appsync "github.com/tomtom215/consolesync/internal/sync"
)

// Syncer runs a sync. *sync.Engine implements it.
type Syncer interface {
	SyncApps(ctx context.Context, req appsync.SyncRequest) (appsync.Stats, error)
}

// SchedulerService runs a full sync every interval. Runs never overlap: a
// tick that fires during a run is dropped.
type SchedulerService struct {
	syncer   Syncer
	interval time.Duration
}

// NewSchedulerService creates the service. The first run starts one
// interval after Serve.
func NewSchedulerService(syncer Syncer, interval time.Duration) *SchedulerService {
	return &SchedulerService{syncer: syncer, interval: interval}
}

// Serve implements suture.Service. A failed run is logged by the engine and
// does not stop the schedule.
func (s *SchedulerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("Sync scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runCtx := logging.ContextWithNewCorrelationID(ctx)
			//nolint:errcheck // the engine logs and records metrics for failed runs
			s.syncer.SyncApps(runCtx, appsync.SyncRequest{})
		}
	}
}

func (s *SchedulerService) String() string {
	return "sync-scheduler"
}
