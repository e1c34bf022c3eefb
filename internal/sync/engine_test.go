// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/consolesync/internal/auth"
	"github.com/tomtom215/consolesync/internal/console"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

func TestSyncApps_CreatesThenIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, nil, newFakeConsole(chatApp("c1"), workflowApp("w1"), chatApp("c2")))
	ctx := context.Background()

	first := f.sync(t, SyncRequest{AccountID: "a1"})
	if first.CreatedApps != 3 || first.UpdatedApps != 0 || first.SyncedApps != 3 {
		t.Errorf("first run apps = %+v", first)
	}
	if first.DSLVersionsCreated != 3 || first.CreatedSites != 3 || first.Errors != 0 {
		t.Errorf("first run = %+v", first)
	}
	if first.AppTypes["chat_assistant"] != 2 || first.AppTypes["workflow"] != 1 {
		t.Errorf("AppTypes = %v", first.AppTypes)
	}
	if first.InstancesProcessed != 1 || first.AccountsProcessed != 1 {
		t.Errorf("scopes = %d instances, %d accounts", first.InstancesProcessed, first.AccountsProcessed)
	}

	before := map[string]*models.App{}
	for _, id := range []string{"c1", "w1", "c2"} {
		before[id] = f.app(t, id)
	}
	siteBefore, _ := f.store.Sites.FindByID(ctx, "code-c1")

	f.clock.Advance(time.Hour)
	second := f.sync(t, SyncRequest{AccountID: "a1"})

	if second.CreatedApps != 0 || second.UpdatedApps != 3 || second.DSLVersionsCreated != 0 {
		t.Errorf("second run = %+v", second)
	}
	if second.CreatedSites != 0 || second.UpdatedSites != 3 {
		t.Errorf("second run sites = %+v", second)
	}

	for id, old := range before {
		now := f.app(t, id)
		if now.ID != old.ID {
			t.Errorf("%s: local id changed %s -> %s", id, old.ID, now.ID)
		}
		if !now.UpdatedAt.Equal(old.UpdatedAt) {
			t.Errorf("%s: UpdatedAt moved without a content change", id)
		}
		if !now.LastSyncedAt.After(*old.LastSyncedAt) {
			t.Errorf("%s: LastSyncedAt not advanced", id)
		}
		fpOld, _ := appFingerprint(old)
		fpNew, _ := appFingerprint(now)
		if fpOld != fpNew {
			t.Errorf("%s: content changed on re-run:\n%s\n%s", id, fpOld, fpNew)
		}
		versions, _ := f.store.DSLVersionsOf(ctx, now.ID)
		if len(versions) != 1 {
			t.Errorf("%s: %d DSL versions, want 1", id, len(versions))
		}
	}

	siteAfter, _ := f.store.Sites.FindByID(ctx, "code-c1")
	if siteAfter.Title != siteBefore.Title || siteAfter.URL != siteBefore.URL {
		t.Errorf("site changed: %+v -> %+v", siteBefore, siteAfter)
	}
	if f.api.logins != 1 {
		t.Errorf("logins = %d, want 1 (token reused)", f.api.logins)
	}
}

func TestSyncApps_MapsContent(t *testing.T) {
	f := newEngineFixture(t, nil, newFakeConsole(chatApp("c1"), workflowApp("w1")))
	f.sync(t, SyncRequest{AccountID: "a1"})

	chat := f.app(t, "c1")
	if chat.Name != "Chat c1" || chat.RemoteCreatedBy != "owner" || chat.RemoteCreatedAt == nil {
		t.Errorf("chat app = %+v", chat)
	}
	cfg, ok := chat.ChatAssistant()
	if !ok || cfg.AssistantConfig["opening_statement"] != "hello" {
		t.Errorf("chat config = %+v", chat.Config)
	}
	if chat.SiteID == nil || *chat.SiteID != "code-c1" {
		t.Errorf("chat SiteID = %v", chat.SiteID)
	}

	site, err := f.store.Sites.FindByID(context.Background(), "code-w1")
	if err != nil {
		t.Fatalf("workflow site: %v", err)
	}
	if site.URL != "https://h.example/workflow/code-w1" {
		t.Errorf("workflow site URL = %q", site.URL)
	}

	flow := f.app(t, "w1")
	wcfg, _ := flow.Workflow()
	if wcfg.InputSchema == nil || wcfg.OutputSchema == nil {
		t.Errorf("workflow schemas not derived: %+v", wcfg)
	}

	latest, err := f.store.LatestDSLVersion(context.Background(), flow.ID)
	if err != nil {
		t.Fatalf("LatestDSLVersion: %v", err)
	}
	if latest.Version != 1 || !strings.Contains(latest.RawContent, "name: w1") || latest.Hash == "" {
		t.Errorf("dsl version = %+v", latest)
	}
}

func TestSyncApps_DSLChangeAppendsVersion(t *testing.T) {
	api := newFakeConsole(chatApp("c1"))
	f := newEngineFixture(t, nil, api)
	f.sync(t, SyncRequest{AccountID: "a1"})

	api.exports["c1"] = &console.DSLExport{Success: true, Content: map[string]interface{}{"app": map[string]interface{}{"name": "renamed"}}, Raw: "app:\n  name: renamed\n"}
	stats := f.sync(t, SyncRequest{AccountID: "a1"})
	if stats.DSLVersionsCreated != 1 {
		t.Errorf("DSLVersionsCreated = %d, want 1", stats.DSLVersionsCreated)
	}

	latest, _ := f.store.LatestDSLVersion(context.Background(), f.app(t, "c1").ID)
	if latest.Version != 2 || latest.RawContent != "app:\n  name: renamed\n" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestSyncApps_ContentChangeBumpsUpdatedAt(t *testing.T) {
	api := newFakeConsole(chatApp("c1"))
	f := newEngineFixture(t, nil, api)
	f.sync(t, SyncRequest{AccountID: "a1"})
	old := f.app(t, "c1")

	changed := chatApp("c1")
	changed["name"] = "Renamed"
	api.setApps(changed)
	f.clock.Advance(time.Minute)
	f.sync(t, SyncRequest{AccountID: "a1"})

	now := f.app(t, "c1")
	if now.Name != "Renamed" {
		t.Errorf("Name = %q", now.Name)
	}
	if !now.UpdatedAt.After(old.UpdatedAt) {
		t.Error("UpdatedAt not bumped on content change")
	}
}

func TestSyncApps_ErrorIsolation(t *testing.T) {
	backend := &failingBackend{MemoryBackend: store.NewMemoryBackend(), marker: []byte(`"remote_app_id":"bad"`)}
	f := newEngineFixture(t, backend, newFakeConsole(chatApp("c1"), chatApp("bad"), workflowApp("w1")))

	stats := f.sync(t, SyncRequest{AccountID: "a1"})

	if stats.Errors != 1 || len(stats.ErrorDetails) != 1 {
		t.Fatalf("errors = %d %v, want 1", stats.Errors, stats.ErrorDetails)
	}
	if !strings.Contains(stats.ErrorDetails[0], "bad") {
		t.Errorf("error detail %q does not name the app", stats.ErrorDetails[0])
	}
	if stats.CreatedApps != 2 {
		t.Errorf("CreatedApps = %d, want 2", stats.CreatedApps)
	}
	f.app(t, "c1")
	f.app(t, "w1")
	if _, err := f.store.FindAppByRemote(context.Background(), "i1", "bad"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("failed app persisted: %v", err)
	}
	if _, err := f.store.Sites.FindByID(context.Background(), "code-bad"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("site of failed app persisted: %v", err)
	}
}

func TestSyncApps_ClearsStaleSite(t *testing.T) {
	tests := []struct {
		name  string
		block map[string]interface{}
	}{
		{name: "empty block", block: map[string]interface{}{}},
		{name: "block without key", block: map[string]interface{}{"title": "unpublished"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeConsole(chatApp("c1"))
			f := newEngineFixture(t, nil, api)
			f.sync(t, SyncRequest{AccountID: "a1"})
			if f.app(t, "c1").SiteID == nil {
				t.Fatal("site not linked on first run")
			}

			noSite := chatApp("c1")
			noSite["site"] = tt.block
			api.setApps(noSite)
			f.sync(t, SyncRequest{AccountID: "a1"})

			if id := f.app(t, "c1").SiteID; id != nil {
				t.Errorf("SiteID = %q, want cleared", *id)
			}
		})
	}
}

func TestSyncApps_ReassignsAccount(t *testing.T) {
	f := newEngineFixture(t, nil, newFakeConsole(chatApp("c1")))
	f.sync(t, SyncRequest{AccountID: "a1"})
	first := f.app(t, "c1")

	stats := f.sync(t, SyncRequest{AccountID: "a2"})
	if stats.CreatedApps != 0 || stats.UpdatedApps != 1 {
		t.Errorf("second account run = %+v", stats)
	}
	second := f.app(t, "c1")
	if second.ID != first.ID {
		t.Errorf("remote app resolved to a new record: %s vs %s", second.ID, first.ID)
	}
	if second.AccountID != "a2" {
		t.Errorf("AccountID = %q, want a2", second.AccountID)
	}
}

func TestSyncApps_AllAccountsConcurrently(t *testing.T) {
	f := newEngineFixture(t, nil, newFakeConsole(chatApp("c1"), chatApp("c2"), workflowApp("w1")))

	stats := f.sync(t, SyncRequest{})
	if stats.InstancesProcessed != 1 || stats.AccountsProcessed != 2 {
		t.Errorf("scopes = %+v", stats)
	}
	if stats.SyncedApps != 6 || stats.CreatedApps != 3 || stats.UpdatedApps != 3 {
		t.Errorf("apps = synced %d created %d updated %d", stats.SyncedApps, stats.CreatedApps, stats.UpdatedApps)
	}

	apps, err := f.store.ListApps(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListApps: %v", err)
	}
	if len(apps) != 3 {
		t.Errorf("stored %d apps, want 3", len(apps))
	}
}

func TestSyncApps_AppTypeFilter(t *testing.T) {
	api := newFakeConsole(chatApp("c1"), workflowApp("w1"))
	f := newEngineFixture(t, nil, api)

	stats := f.sync(t, SyncRequest{AccountID: "a1", AppType: models.AppTypeWorkflow})
	if stats.SyncedApps != 1 || stats.AppTypes["workflow"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
	for _, l := range api.lists {
		if l.Mode != "workflow" {
			t.Errorf("listed with mode %q", l.Mode)
		}
	}
	if _, err := f.store.FindAppByRemote(context.Background(), "i1", "c1"); !errors.Is(err, store.ErrNotFound) {
		t.Error("chat app synced under a workflow filter")
	}
}

func TestSyncApps_PagingGuards(t *testing.T) {
	api := newFakeConsole(chatApp("c1"), chatApp("c2"), chatApp("c3"))
	f := newEngineFixture(t, nil, api)

	stats := f.sync(t, SyncRequest{AccountID: "a1"})
	if stats.SyncedApps != 3 || len(api.lists) != 2 {
		t.Errorf("paged sync: apps %d, list calls %d", stats.SyncedApps, len(api.lists))
	}

	// A server that ignores ?page= and always claims more.
	api2 := newFakeConsole(chatApp("c1"), chatApp("c2"), chatApp("c3"))
	api2.ignorePage = true
	f2 := newEngineFixture(t, nil, api2)
	stats = f2.sync(t, SyncRequest{AccountID: "a1"})
	if stats.SyncedApps != 2 {
		t.Errorf("SyncedApps = %d, want 2", stats.SyncedApps)
	}
	if len(api2.lists) != 2 {
		t.Errorf("list calls = %d, want 2", len(api2.lists))
	}
	if api2.detailCalls("c1") != 1 {
		t.Errorf("c1 detail fetched %d times", api2.detailCalls("c1"))
	}
}

func TestSyncApps_DetailOnlyWhenNeeded(t *testing.T) {
	bare := chatApp("bare")
	delete(bare, "model_config")
	api := newFakeConsole(chatApp("full"), bare)
	f := newEngineFixture(t, nil, api)
	f.engine.opts.FetchDetail = false

	f.sync(t, SyncRequest{AccountID: "a1"})
	if api.detailCalls("full") != 0 {
		t.Errorf("detail fetched for a complete list entry")
	}
	if api.detailCalls("bare") != 1 {
		t.Errorf("detail not fetched for an entry missing model_config")
	}
}

func TestSyncApps_PerAppFailuresAreSoft(t *testing.T) {
	odd := chatApp("odd")
	odd["mode"] = "agent-x"
	api := newFakeConsole(chatApp("c1"), odd, chatApp("down"))
	api.detailErr["down"] = &syncerr.InstanceUnavailableError{InstanceURL: "https://console.example", Reason: syncerr.ReasonServerError, Status: 502}
	f := newEngineFixture(t, nil, api)

	stats, err := f.engine.SyncApps(context.Background(), SyncRequest{AccountID: "a1"})
	if err != nil {
		t.Fatalf("SyncApps() error = %v, want soft failure", err)
	}
	if stats.Errors != 2 || stats.SyncedApps != 1 {
		t.Errorf("stats = errors %d synced %d", stats.Errors, stats.SyncedApps)
	}
	joined := strings.Join(stats.ErrorDetails, "\n")
	if !strings.Contains(joined, "agent-x") || !strings.Contains(joined, "down") {
		t.Errorf("details = %q", joined)
	}
}

func TestSyncApps_DSLFailureIsNotAnError(t *testing.T) {
	api := newFakeConsole(chatApp("c1"))
	api.exports["c1"] = &console.DSLExport{Success: false, Message: "export is not a mapping"}
	f := newEngineFixture(t, nil, api)

	stats := f.sync(t, SyncRequest{AccountID: "a1"})
	if stats.Errors != 0 || stats.DSLFailures != 1 || stats.CreatedApps != 1 {
		t.Errorf("stats = %+v", stats)
	}
	versions, _ := f.store.DSLVersionsOf(context.Background(), f.app(t, "c1").ID)
	if len(versions) != 0 {
		t.Errorf("versions = %d, want 0", len(versions))
	}
}

func TestSyncApps_HardFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeConsole)
		req      SyncRequest
		wantKind syncerr.Kind
	}{
		{
			name:     "login rejected",
			setup:    func(f *fakeConsole) { f.loginErr = &syncerr.AuthenticationError{Reason: syncerr.ReasonLoginFailed} },
			req:      SyncRequest{AccountID: "a1"},
			wantKind: syncerr.KindAuthentication,
		},
		{
			name: "list rate limited",
			setup: func(f *fakeConsole) {
				retry := 30 * time.Second
				f.listErr = &syncerr.RateLimitError{RetryAfter: &retry}
			},
			req:      SyncRequest{AccountID: "a1"},
			wantKind: syncerr.KindRateLimit,
		},
		{
			name: "list unavailable",
			setup: func(f *fakeConsole) {
				f.listErr = &syncerr.InstanceUnavailableError{InstanceURL: "https://console.example", Status: 503}
			},
			req:      SyncRequest{},
			wantKind: syncerr.KindInstanceUnavailable,
		},
		{
			name:     "unknown instance",
			req:      SyncRequest{InstanceID: "nope"},
			wantKind: syncerr.KindValidation,
		},
		{
			name:     "account of another instance",
			req:      SyncRequest{InstanceID: "i2", AccountID: "a1"},
			wantKind: syncerr.KindValidation,
		},
		{
			name:     "invalid app type",
			req:      SyncRequest{AppType: "assistant"},
			wantKind: syncerr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeConsole(chatApp("c1"))
			if tt.setup != nil {
				tt.setup(api)
			}
			f := newEngineFixture(t, nil, api)

			stats, err := f.engine.SyncApps(context.Background(), tt.req)
			if err == nil {
				t.Fatal("SyncApps() error = nil")
			}
			if got := syncerr.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf = %q, want %q (err %v)", got, tt.wantKind, err)
			}
			if stats.FinishedAt == nil {
				t.Error("stats not finished on hard failure")
			}
			if stats.SyncedApps != 0 {
				t.Errorf("SyncedApps = %d", stats.SyncedApps)
			}
		})
	}
}

func TestSyncApps_CanceledContext(t *testing.T) {
	f := newEngineFixture(t, nil, newFakeConsole(chatApp("c1")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.SyncApps(ctx, SyncRequest{AccountID: "a1"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestEngine_PruneDSL(t *testing.T) {
	api := newFakeConsole(chatApp("c1"))
	f := newEngineFixture(t, nil, api)
	for i := 0; i < 4; i++ {
		api.exports["c1"] = &console.DSLExport{Success: true, Content: map[string]interface{}{"rev": i}, Raw: "rev"}
		f.sync(t, SyncRequest{AccountID: "a1"})
	}

	removed, err := f.engine.PruneDSL(context.Background(), 1)
	if err != nil {
		t.Fatalf("PruneDSL: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	latest, _ := f.store.LatestDSLVersion(context.Background(), f.app(t, "c1").ID)
	if latest.Version != 4 {
		t.Errorf("latest version = %d, want 4", latest.Version)
	}
}

func TestSyncApps_FailedScopeDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryBackend(), nil)
	for _, id := range []string{"i1", "i2"} {
		inst := &models.Instance{ID: id, Name: id, URL: "https://" + id + ".example", Enabled: true}
		if err := st.Instances.Save(ctx, inst); err != nil {
			t.Fatalf("seed instance: %v", err)
		}
		acc := &models.Account{ID: "acc-" + id, InstanceID: id, Email: id + "@example.com", Password: "pw", Enabled: true}
		if err := st.Accounts.Save(ctx, acc); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	broken := newFakeConsole(chatApp("c1"))
	broken.loginErr = &syncerr.AuthenticationError{Reason: syncerr.ReasonLoginFailed}
	healthy := newFakeConsole(chatApp("c2"))
	consoles := map[string]console.API{"i1": broken, "i2": healthy}

	engine := NewEngine(st, auth.NewManager(st.Accounts), func(i *models.Instance) console.API { return consoles[i.ID] }, Options{
		Concurrency: 1,
		PageSize:    10,
	})

	stats, err := engine.SyncApps(ctx, SyncRequest{})
	if got := syncerr.KindOf(err); got != syncerr.KindAuthentication {
		t.Fatalf("KindOf(err) = %q, want authentication (err %v)", got, err)
	}
	if stats.AccountsProcessed != 2 {
		t.Errorf("AccountsProcessed = %d, want 2", stats.AccountsProcessed)
	}
	if stats.SyncedApps != 1 || stats.Errors != 1 {
		t.Errorf("SyncedApps = %d, Errors = %d; want 1 and 1", stats.SyncedApps, stats.Errors)
	}
	if _, err := st.FindAppByRemote(ctx, "i2", "c2"); err != nil {
		t.Errorf("healthy instance app not stored: %v", err)
	}
}
