// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consolesync/internal/auth"
	"github.com/tomtom215/consolesync/internal/console"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
)

// fakeConsole is an in-memory console.API.
type fakeConsole struct {
	mu         sync.Mutex
	apps       []map[string]interface{}
	exports    map[string]*console.DSLExport
	loginErr   error
	listErr    error
	detailErr  map[string]error
	ignorePage bool

	logins  int
	lists   []console.ListOptions
	details map[string]int
}

var _ console.API = (*fakeConsole)(nil)

func newFakeConsole(apps ...map[string]interface{}) *fakeConsole {
	return &fakeConsole{
		apps:      apps,
		exports:   map[string]*console.DSLExport{},
		detailErr: map[string]error{},
		details:   map[string]int{},
	}
}

func (f *fakeConsole) Login(ctx context.Context, email, password string) (*console.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &console.LoginResult{AccessToken: "token-" + email}, nil
}

func (f *fakeConsole) ListApps(ctx context.Context, token string, opts console.ListOptions) (*console.AppPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, opts)
	if f.listErr != nil {
		return nil, f.listErr
	}

	var matched []map[string]interface{}
	for _, app := range f.apps {
		if opts.Mode == "" || app["mode"] == opts.Mode {
			matched = append(matched, app)
		}
	}

	page := opts.Page
	if f.ignorePage {
		page = 1
	}
	start := (page - 1) * opts.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}

	items := make([]map[string]interface{}, 0, end-start)
	for _, app := range matched[start:end] {
		items = append(items, clonePayload(app))
	}
	return &console.AppPage{
		Items:   items,
		HasMore: f.ignorePage || end < len(matched),
		Page:    page,
		Limit:   opts.Limit,
		Total:   len(matched),
	}, nil
}

func (f *fakeConsole) GetApp(ctx context.Context, token, appID string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[appID]++
	if err := f.detailErr[appID]; err != nil {
		return nil, err
	}
	for _, app := range f.apps {
		if app["id"] == appID {
			return clonePayload(app), nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeConsole) ExportDSL(ctx context.Context, token, appID string) (*console.DSLExport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if export, ok := f.exports[appID]; ok {
		c := *export
		return &c, nil
	}
	return &console.DSLExport{
		Success: true,
		Content: map[string]interface{}{"app": map[string]interface{}{"name": appID}, "version": "0.1.0"},
		Raw:     fmt.Sprintf("app:\n  name: %s\nversion: 0.1.0\n", appID),
	}, nil
}

func (f *fakeConsole) setApps(apps ...map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = apps
}

func (f *fakeConsole) detailCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details[id]
}

// clonePayload deep-copies through JSON, so numbers arrive as float64 the way
// the real client decodes them.
func clonePayload(m map[string]interface{}) map[string]interface{} {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}

func chatApp(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"name":        "Chat " + id,
		"mode":        "chat",
		"description": "assistant",
		"icon":        "robot",
		"created_by":  "owner",
		"created_at":  1700000000,
		"updated_at":  1700000100,
		"model_config": map[string]interface{}{
			"opening_statement": "hello",
			"dataset_configs":   map[string]interface{}{"retrieval_model": "single"},
		},
		"site": map[string]interface{}{"code": "code-" + id, "title": "Site " + id, "app_base_url": "https://h.example/"},
	}
}

func workflowApp(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"name":       "Flow " + id,
		"mode":       "workflow",
		"created_at": "2024-01-01T00:00:00Z",
		"workflow":   workflowGraph(),
		"site":       map[string]interface{}{"code": "code-" + id, "app_base_url": "https://h.example"},
	}
}

// testClock is a settable clock shared by the engine and the auth manager.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingBackend rejects any commit whose values contain marker.
type failingBackend struct {
	*store.MemoryBackend
	marker []byte
}

func (b *failingBackend) Commit(ctx context.Context, ops []store.Op) error {
	for _, op := range ops {
		if bytes.Contains(op.Value, b.marker) {
			return errors.New("write rejected")
		}
	}
	return b.MemoryBackend.Commit(ctx, ops)
}

type engineFixture struct {
	engine *Engine
	store  *store.Store
	api    *fakeConsole
	clock  *testClock
}

func newEngineFixture(t *testing.T, backend store.Backend, api *fakeConsole) *engineFixture {
	t.Helper()
	if backend == nil {
		backend = store.NewMemoryBackend()
	}
	st := store.New(backend, nil)
	clock := &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	if err := st.Instances.Save(ctx, &models.Instance{ID: "i1", Name: "main", URL: "https://console.example", Enabled: true}); err != nil {
		t.Fatalf("seed instance: %v", err)
	}
	for _, id := range []string{"a1", "a2"} {
		acc := &models.Account{ID: id, InstanceID: "i1", Email: id + "@example.com", Password: "pw", Enabled: true}
		if err := st.Accounts.Save(ctx, acc); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	n := 0
	var idMu sync.Mutex
	newID := func() string {
		idMu.Lock()
		defer idMu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}

	authMgr := auth.NewManager(st.Accounts, auth.WithClock(clock.Now))
	engine := NewEngine(st, authMgr, func(*models.Instance) console.API { return api }, Options{
		Concurrency: 2,
		PageSize:    2,
		FetchDetail: true,
		Now:         clock.Now,
		NewID:       newID,
	})
	return &engineFixture{engine: engine, store: st, api: api, clock: clock}
}

func (f *engineFixture) sync(t *testing.T, req SyncRequest) Stats {
	t.Helper()
	stats, err := f.engine.SyncApps(context.Background(), req)
	if err != nil {
		t.Fatalf("SyncApps(%+v) error = %v", req, err)
	}
	return stats
}

func (f *engineFixture) app(t *testing.T, remoteID string) *models.App {
	t.Helper()
	app, err := f.store.FindAppByRemote(context.Background(), "i1", remoteID)
	if err != nil {
		t.Fatalf("FindAppByRemote(%s) error = %v", remoteID, err)
	}
	return app
}
