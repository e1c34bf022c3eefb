// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consolesync/internal/models"
)

func TestStats_Recorders(t *testing.T) {
	s := NewStats().
		RecordInstanceProcessed().
		RecordAccountProcessed().
		RecordAppCreated().
		RecordAppUpdated().
		RecordAppUpdated().
		RecordSiteCreated().
		RecordSiteUpdated().
		RecordDSLVersionCreated().
		RecordDSLFailure().
		UpdateAppTypeStats(models.AppTypeWorkflow).
		UpdateAppTypeStats(models.AppTypeWorkflow).
		AddSyncError("boom")

	checks := []struct {
		name string
		got  int
		want int
	}{
		{"instances", s.InstancesProcessed, 1},
		{"accounts", s.AccountsProcessed, 1},
		{"synced apps", s.SyncedApps, 3},
		{"created apps", s.CreatedApps, 1},
		{"updated apps", s.UpdatedApps, 2},
		{"synced sites", s.SyncedSites, 2},
		{"created sites", s.CreatedSites, 1},
		{"updated sites", s.UpdatedSites, 1},
		{"dsl versions", s.DSLVersionsCreated, 1},
		{"dsl failures", s.DSLFailures, 1},
		{"errors", s.Errors, 1},
		{"workflow count", s.AppTypes["workflow"], 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if !s.HasErrors() {
		t.Error("HasErrors() = false")
	}
	if NewStats().HasErrors() {
		t.Error("empty stats report errors")
	}
}

func TestStats_ValueSemantics(t *testing.T) {
	base := NewStats().UpdateAppTypeStats(models.AppTypeChatflow).AddSyncError("first")

	a := base.UpdateAppTypeStats(models.AppTypeChatflow).AddSyncError("a")
	b := base.AddSyncError("b")

	if base.AppTypes["chatflow"] != 1 || len(base.ErrorDetails) != 1 {
		t.Fatalf("base mutated: %+v", base)
	}
	if a.AppTypes["chatflow"] != 2 {
		t.Errorf("a chatflow = %d, want 2", a.AppTypes["chatflow"])
	}
	if a.ErrorDetails[1] != "a" || b.ErrorDetails[1] != "b" {
		t.Errorf("detail slices alias: a=%v b=%v", a.ErrorDetails, b.ErrorDetails)
	}
}

func TestStats_Merge(t *testing.T) {
	parent := NewStats().RecordInstanceProcessed().UpdateAppTypeStats(models.AppTypeWorkflow).AddSyncError("p")
	child1 := NewStats().RecordAccountProcessed().RecordAppCreated().UpdateAppTypeStats(models.AppTypeWorkflow)
	child2 := NewStats().RecordAccountProcessed().RecordAppUpdated().UpdateAppTypeStats(models.AppTypeChatAssistant).
		MergeSyncErrors([]string{"c1", "c2"})

	merged := parent.Merge(child1).Merge(child2)

	if merged.AccountsProcessed != 2 || merged.SyncedApps != 2 || merged.CreatedApps != 1 || merged.UpdatedApps != 1 {
		t.Errorf("counters = %+v", merged)
	}
	if merged.Errors != 3 {
		t.Errorf("Errors = %d, want 3", merged.Errors)
	}
	want := []string{"p", "c1", "c2"}
	for i, d := range want {
		if merged.ErrorDetails[i] != d {
			t.Errorf("ErrorDetails[%d] = %q, want %q", i, merged.ErrorDetails[i], d)
		}
	}
	if merged.AppTypes["workflow"] != 2 || merged.AppTypes["chat_assistant"] != 1 {
		t.Errorf("AppTypes = %v", merged.AppTypes)
	}
	if parent.AppTypes["workflow"] != 1 {
		t.Error("Merge mutated the receiver's map")
	}
}

func TestStats_FinishAndJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStats().RecordAppCreated().Finish(start, start.Add(1500*time.Millisecond))
	if s.DurationMs != 1500 {
		t.Errorf("DurationMs = %d", s.DurationMs)
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"synced_apps", "created_apps", "error_details", "app_types", "dsl_versions_created", "duration_ms", "started_at"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q: %s", key, b)
		}
	}
	if details, ok := decoded["error_details"].([]interface{}); !ok || len(details) != 0 {
		t.Errorf("error_details = %v, want empty list", decoded["error_details"])
	}
}
