// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"time"

	"github.com/tomtom215/consolesync/internal/models"
)

// Stats is the additive result of a sync run.
//
// Every method takes the current value and returns a new one; the receiver's
// map and slice are never written, so values from parallel scopes can be
// folded with Merge without locking.
type Stats struct {
	InstancesProcessed int            `json:"instances_processed"`
	AccountsProcessed  int            `json:"accounts_processed"`
	SyncedApps         int            `json:"synced_apps"`
	CreatedApps        int            `json:"created_apps"`
	UpdatedApps        int            `json:"updated_apps"`
	SyncedSites        int            `json:"synced_sites"`
	CreatedSites       int            `json:"created_sites"`
	UpdatedSites       int            `json:"updated_sites"`
	DSLVersionsCreated int            `json:"dsl_versions_created"`
	DSLFailures        int            `json:"dsl_failures"`
	Errors             int            `json:"errors"`
	AppTypes           map[string]int `json:"app_types"`
	ErrorDetails       []string       `json:"error_details"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	FinishedAt         *time.Time     `json:"finished_at,omitempty"`
	DurationMs         int64          `json:"duration_ms"`
}

// NewStats returns an empty accumulator.
func NewStats() Stats {
	return Stats{AppTypes: map[string]int{}, ErrorDetails: []string{}}
}

func (s Stats) RecordInstanceProcessed() Stats {
	s.InstancesProcessed++
	return s
}

func (s Stats) RecordAccountProcessed() Stats {
	s.AccountsProcessed++
	return s
}

// RecordAppCreated counts a newly created app as synced and created.
func (s Stats) RecordAppCreated() Stats {
	s.SyncedApps++
	s.CreatedApps++
	return s
}

// RecordAppUpdated counts an existing app as synced and updated.
func (s Stats) RecordAppUpdated() Stats {
	s.SyncedApps++
	s.UpdatedApps++
	return s
}

func (s Stats) RecordSiteCreated() Stats {
	s.SyncedSites++
	s.CreatedSites++
	return s
}

func (s Stats) RecordSiteUpdated() Stats {
	s.SyncedSites++
	s.UpdatedSites++
	return s
}

func (s Stats) RecordDSLVersionCreated() Stats {
	s.DSLVersionsCreated++
	return s
}

// RecordDSLFailure counts an export that could not be parsed. It is not an error.
func (s Stats) RecordDSLFailure() Stats {
	s.DSLFailures++
	return s
}

// UpdateAppTypeStats bumps the per-variant counter.
func (s Stats) UpdateAppTypeStats(t models.AppType) Stats {
	s.AppTypes = copyCounts(s.AppTypes, 1)
	s.AppTypes[string(t)]++
	return s
}

// AddSyncError records one failure.
func (s Stats) AddSyncError(detail string) Stats {
	return s.MergeSyncErrors([]string{detail})
}

// MergeSyncErrors records several failures at once.
func (s Stats) MergeSyncErrors(details []string) Stats {
	if len(details) == 0 {
		return s
	}
	s.Errors += len(details)
	s.ErrorDetails = appendDetails(s.ErrorDetails, details)
	return s
}

// Merge folds other into s by summing counters and concatenating details.
// Timing fields of s are kept.
func (s Stats) Merge(other Stats) Stats {
	s.InstancesProcessed += other.InstancesProcessed
	s.AccountsProcessed += other.AccountsProcessed
	s.SyncedApps += other.SyncedApps
	s.CreatedApps += other.CreatedApps
	s.UpdatedApps += other.UpdatedApps
	s.SyncedSites += other.SyncedSites
	s.CreatedSites += other.CreatedSites
	s.UpdatedSites += other.UpdatedSites
	s.DSLVersionsCreated += other.DSLVersionsCreated
	s.DSLFailures += other.DSLFailures

	s.AppTypes = copyCounts(s.AppTypes, len(other.AppTypes))
	for t, n := range other.AppTypes {
		s.AppTypes[t] += n
	}

	s.Errors += other.Errors
	s.ErrorDetails = appendDetails(s.ErrorDetails, other.ErrorDetails)
	return s
}

// Finish stamps the run timing.
func (s Stats) Finish(started, finished time.Time) Stats {
	s.StartedAt = &started
	s.FinishedAt = &finished
	s.DurationMs = finished.Sub(started).Milliseconds()
	return s
}

// HasErrors reports a soft failure: the run finished but some items failed.
func (s Stats) HasErrors() bool {
	return s.Errors > 0
}

func copyCounts(m map[string]int, extra int) map[string]int {
	out := make(map[string]int, len(m)+extra)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func appendDetails(dst, src []string) []string {
	out := make([]string, 0, len(dst)+len(src))
	out = append(out, dst...)
	return append(out, src...)
}
