// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consolesync/internal/auth"
	"github.com/tomtom215/consolesync/internal/console"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

const exportYAML = "app:\n  mode: workflow\n  name: Flow\nversion: 0.1.5\n"

func newConsoleServer(t *testing.T, listStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer live-token"
	}

	mux.HandleFunc("/console/api/login", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]interface{}{"result": "success", "data": map[string]interface{}{"access_token": "live-token"}})
	})
	mux.HandleFunc("/console/api/apps", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			write(w, http.StatusUnauthorized, map[string]interface{}{"message": "unauthorized"})
			return
		}
		if listStatus != http.StatusOK {
			w.Header().Set("Retry-After", "12")
			write(w, listStatus, map[string]interface{}{"message": "slow down"})
			return
		}
		write(w, http.StatusOK, map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{"id": "wf-1", "name": "Flow", "mode": "workflow"},
				"garbage",
			},
			"has_more": false,
			"page":     1,
			"limit":    100,
			"total":    1,
		})
	})
	mux.HandleFunc("/console/api/apps/wf-1", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			write(w, http.StatusUnauthorized, nil)
			return
		}
		write(w, http.StatusOK, map[string]interface{}{
			"id":       "wf-1",
			"name":     "Flow",
			"mode":     "workflow",
			"workflow": workflowGraph(),
			"site":     map[string]interface{}{"code": "abc", "title": "Flow site"},
		})
	})
	mux.HandleFunc("/console/api/apps/wf-1/export", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include_secret") != "false" {
			t.Errorf("export query = %s", r.URL.RawQuery)
		}
		write(w, http.StatusOK, map[string]interface{}{"data": exportYAML})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newHTTPEngine(t *testing.T, serverURL string) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(store.NewMemoryBackend(), nil)
	ctx := context.Background()
	_ = st.Instances.Save(ctx, &models.Instance{ID: "i1", URL: serverURL, Enabled: true})
	_ = st.Accounts.Save(ctx, &models.Account{ID: "a1", InstanceID: "i1", Email: "ops@example.com", Password: "pw", Enabled: true})

	clients := NewClientFactory(console.Options{Timeout: 5 * time.Second, UserAgent: "consolesync-test"})
	return NewEngine(st, auth.NewManager(st.Accounts), clients, Options{PageSize: 100, FetchDetail: true}), st
}

func TestSyncApps_OverHTTP(t *testing.T) {
	server := newConsoleServer(t, http.StatusOK)
	engine, st := newHTTPEngine(t, server.URL)
	ctx := context.Background()

	stats, err := engine.SyncApps(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("SyncApps() error = %v", err)
	}
	if stats.CreatedApps != 1 || stats.DSLVersionsCreated != 1 || stats.CreatedSites != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}

	app, err := st.FindAppByRemote(ctx, "i1", "wf-1")
	if err != nil {
		t.Fatalf("FindAppByRemote: %v", err)
	}
	if app.Type != models.AppTypeWorkflow {
		t.Errorf("Type = %s", app.Type)
	}

	site, err := st.Sites.FindByID(ctx, "abc")
	if err != nil {
		t.Fatalf("site: %v", err)
	}
	if want := strings.TrimRight(server.URL, "/") + "/workflow/abc"; site.URL != want {
		t.Errorf("site URL = %q, want %q", site.URL, want)
	}

	version, err := st.LatestDSLVersion(ctx, app.ID)
	if err != nil {
		t.Fatalf("LatestDSLVersion: %v", err)
	}
	if version.RawContent != exportYAML {
		t.Errorf("RawContent = %q", version.RawContent)
	}
	appBlock, _ := version.Content["app"].(map[string]interface{})
	if appBlock["name"] != "Flow" {
		t.Errorf("Content = %v", version.Content)
	}

	account, _ := st.Accounts.FindByID(ctx, "a1")
	if account.AccessToken != "live-token" || account.ExpiresAt == nil || account.LastLoginAt == nil {
		t.Errorf("account token state = %+v", account)
	}

	again, err := engine.SyncApps(ctx, SyncRequest{})
	if err != nil || again.DSLVersionsCreated != 0 || again.UpdatedApps != 1 {
		t.Errorf("second run = %+v, %v", again, err)
	}
}

func TestSyncApps_OverHTTPRateLimited(t *testing.T) {
	server := newConsoleServer(t, http.StatusTooManyRequests)
	engine, _ := newHTTPEngine(t, server.URL)

	_, err := engine.SyncApps(context.Background(), SyncRequest{InstanceID: "i1"})
	if syncerr.KindOf(err) != syncerr.KindRateLimit {
		t.Fatalf("error = %v, want rate limit", err)
	}
	var rl *syncerr.RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter == nil || *rl.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %v", rl)
	}
}
