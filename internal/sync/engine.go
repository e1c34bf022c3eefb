// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
engine.go - App Sync Orchestration

Engine runs one bounded sync over the (instance, account) scopes selected by a
SyncRequest. Scopes run in parallel up to Options.Concurrency; inside a scope
the remote calls are strictly ordered:

	ensure token -> list page -> app detail -> DSL export -> persist

Failure policy:
  - token refresh and list failures abort their own scope; the other scopes
    still run, the failure is counted in Stats.Errors and every such failure
    is returned joined once all scopes are done
  - any failure while processing one app is folded into Stats.Errors and
    the scope moves on to the next app
  - every app is persisted in its own session; a failed flush detaches a
    newly created app before the session is discarded
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/consolesync/internal/auth"
	"github.com/tomtom215/consolesync/internal/config"
	"github.com/tomtom215/consolesync/internal/console"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/metrics"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
	"github.com/tomtom215/consolesync/internal/syncerr"
	"github.com/tomtom215/consolesync/internal/validation"
)

// SyncRequest selects what a run covers. Empty fields match everything.
type SyncRequest struct {
	InstanceID string         `json:"instance_id,omitempty"`
	AccountID  string         `json:"account_id,omitempty"`
	AppType    models.AppType `json:"app_type,omitempty" validate:"omitempty,app_type"`
}

// ClientFactory returns the console API for an instance.
type ClientFactory func(instance *models.Instance) console.API

// NewClientFactory returns a factory that keeps one client per instance, so
// breaker and limiter state carry over between runs.
func NewClientFactory(opts console.Options) ClientFactory {
	var mu sync.Mutex
	clients := make(map[string]console.API)
	return func(instance *models.Instance) console.API {
		key := instance.ID + "|" + instance.URL
		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[key]; ok {
			return c
		}
		c := console.NewClient(instance.ID, instance.URL, opts)
		clients[key] = c
		return c
	}
}

// Options tunes an Engine.
type Options struct {
	Concurrency int
	PageSize    int
	FetchDetail bool
	Now         func() time.Time
	NewID       func() string
}

// OptionsFromConfig maps the sync and console config sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Concurrency: cfg.Sync.Concurrency,
		PageSize:    cfg.Console.PageSize,
		FetchDetail: cfg.Sync.FetchDetail,
	}
}

// Engine reconciles remote console apps into the local store.
type Engine struct {
	store      *store.Store
	auth       *auth.Manager
	clients    ClientFactory
	opts       Options
	reconciler *Reconciler
	sites      *SiteMerger
	dsl        *DSLManager
	appLocks   keyedMutex
}

// NewEngine wires an Engine over st.
func NewEngine(st *store.Store, authMgr *auth.Manager, clients ClientFactory, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Engine{
		store:      st,
		auth:       authMgr,
		clients:    clients,
		opts:       opts,
		reconciler: NewReconciler(st, opts.Now, opts.NewID),
		sites:      NewSiteMerger(st.Sites, opts.Now),
		dsl:        NewDSLManager(st, opts.Now, opts.NewID),
	}
}

// DSL returns the engine's DSL version manager.
func (e *Engine) DSL() *DSLManager { return e.dsl }

type scope struct {
	instance *models.Instance
	account  *models.Account
}

// SyncApps runs one sync. The returned Stats are valid even when err is
// non-nil; err is set for validation failures, failed scopes and
// cancellation.
func (e *Engine) SyncApps(ctx context.Context, req SyncRequest) (Stats, error) {
	started := e.opts.Now()
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	log := logging.Ctx(ctx)

	stats, err := e.run(ctx, req)
	stats = stats.Finish(started, e.opts.Now())

	metrics.RecordSyncRun(time.Duration(stats.DurationMs)*time.Millisecond, stats.Errors, err)
	if err != nil {
		metrics.RecordSyncError(string(syncerr.KindOf(err)))
		log.Error().Err(err).
			Str("kind", string(syncerr.KindOf(err))).
			Int("synced_apps", stats.SyncedApps).
			Msg("Sync run failed")
		return stats, err
	}

	event := log.Info()
	if stats.HasErrors() {
		event = log.Warn()
	}
	event.
		Int("instances", stats.InstancesProcessed).
		Int("accounts", stats.AccountsProcessed).
		Int("synced_apps", stats.SyncedApps).
		Int("created_apps", stats.CreatedApps).
		Int("dsl_versions_created", stats.DSLVersionsCreated).
		Int("errors", stats.Errors).
		Int64("duration_ms", stats.DurationMs).
		Msg("Sync run completed")
	return stats, nil
}

func (e *Engine) run(ctx context.Context, req SyncRequest) (Stats, error) {
	if err := validation.Validate(&req); err != nil {
		return NewStats(), err
	}

	scopes, stats, err := e.resolveScopes(ctx, req)
	if err != nil {
		return stats, err
	}

	// A failed scope never cancels its siblings; only ctx does.
	results := make([]Stats, len(scopes))
	errs := make([]error, len(scopes))
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, sc := range scopes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = e.syncScope(ctx, sc, req.AppType)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		stats = stats.Merge(r)
		if errs[i] != nil && ctx.Err() == nil {
			stats = stats.AddSyncError(errs[i].Error())
		}
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, errors.Join(errs...)
}

// resolveScopes expands req into (instance, account) pairs and counts the
// instances it touches.
func (e *Engine) resolveScopes(ctx context.Context, req SyncRequest) ([]scope, Stats, error) {
	stats := NewStats()

	if req.AccountID != "" {
		account, err := e.store.Accounts.FindByID(ctx, req.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, stats, syncerr.Validation("account_id", "account %s not found", req.AccountID)
		}
		if err != nil {
			return nil, stats, fmt.Errorf("load account %s: %w", req.AccountID, err)
		}
		if req.InstanceID != "" && account.InstanceID != req.InstanceID {
			return nil, stats, syncerr.Validation("account_id", "account %s does not belong to instance %s", account.ID, req.InstanceID)
		}
		instance, err := e.loadInstance(ctx, account.InstanceID)
		if err != nil {
			return nil, stats, err
		}
		return []scope{{instance: instance, account: account}}, stats.RecordInstanceProcessed(), nil
	}

	var instances []*models.Instance
	if req.InstanceID != "" {
		instance, err := e.loadInstance(ctx, req.InstanceID)
		if err != nil {
			return nil, stats, err
		}
		instances = []*models.Instance{instance}
	} else {
		all, err := e.store.Instances.FindBy(ctx, func(i *models.Instance) bool { return i.Enabled })
		if err != nil {
			return nil, stats, fmt.Errorf("list instances: %w", err)
		}
		instances = all
	}

	var scopes []scope
	for _, instance := range instances {
		stats = stats.RecordInstanceProcessed()
		accounts, err := e.store.AccountsOf(ctx, instance.ID)
		if err != nil {
			return nil, stats, fmt.Errorf("list accounts of instance %s: %w", instance.ID, err)
		}
		for _, account := range accounts {
			if account.Enabled {
				scopes = append(scopes, scope{instance: instance, account: account})
			}
		}
	}
	return scopes, stats, nil
}

func (e *Engine) loadInstance(ctx context.Context, id string) (*models.Instance, error) {
	instance, err := e.store.Instances.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, syncerr.Validation("instance_id", "instance %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load instance %s: %w", id, err)
	}
	return instance, nil
}

// syncScope lists and processes every app visible to one account.
func (e *Engine) syncScope(ctx context.Context, sc scope, filter models.AppType) (Stats, error) {
	stats := NewStats().RecordAccountProcessed()
	logger := logging.Ctx(ctx).With().
		Str("instance_id", sc.instance.ID).
		Str("account_id", sc.account.ID).
		Logger()
	ctx = logging.ContextWithLogger(ctx, logger)

	api := e.clients(sc.instance)
	token, err := e.auth.EnsureValidToken(ctx, sc.account, auth.LoginWith(api))
	if err != nil {
		return stats, syncerr.Wrap(syncerr.PhaseAccount, sc.account.ID, err, "instance", sc.instance.ID)
	}

	modes := []string{""}
	if filter != "" {
		modes = models.ModesFor(filter)
	}

	seen := make(map[string]struct{})
	for _, mode := range modes {
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			res, err := api.ListApps(ctx, token, console.ListOptions{Page: page, Limit: e.opts.PageSize, Mode: mode})
			if err != nil {
				return stats, syncerr.Wrap(syncerr.PhaseInstance, sc.instance.ID, err,
					"account", sc.account.ID, "page", strconv.Itoa(page), "mode", mode)
			}
			if res.Dropped > 0 {
				logger.Warn().Int("page", page).Int("dropped", res.Dropped).Msg("Dropped malformed app list entries")
			}

			fresh := 0
			for _, item := range res.Items {
				id := stringField(item, "id")
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				fresh++

				if stats, err = e.syncApp(ctx, api, token, sc, item, filter, stats); err != nil {
					return stats, err
				}
			}

			// fresh == 0 guards against a server that ignores the page parameter.
			if !res.HasMore || len(res.Items) == 0 || fresh == 0 {
				break
			}
		}
	}

	logger.Debug().Int("apps", len(seen)).Msg("Account scope synced")
	return stats, nil
}

type appResult struct {
	app     *models.App
	created bool
	site    SiteOutcome
	dsl     DSLResult
}

// syncApp folds one app into stats. The returned error is non-nil only when
// ctx is done.
func (e *Engine) syncApp(ctx context.Context, api console.API, token string, sc scope, item map[string]interface{}, filter models.AppType, stats Stats) (Stats, error) {
	remoteID := stringField(item, "id")
	mode := stringField(item, "mode")
	if t, ok := models.ResolveAppType(mode); ok && filter != "" && t != filter {
		return stats, nil
	}

	res, err := e.processApp(ctx, api, token, sc, remoteID, mode, item)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}
		err = syncerr.Wrap(syncerr.PhaseApp, remoteID, err, "instance", sc.instance.ID, "account", sc.account.ID, "mode", mode)
		kind := syncerr.KindOf(err)
		metrics.RecordSyncError(string(kind))
		metrics.RecordAppOutcome("failed")
		logging.Ctx(ctx).Warn().Err(err).
			Str("remote_app_id", remoteID).
			Str("kind", string(kind)).
			Str("phase", string(syncerr.PhaseApp)).
			Msg("App sync failed")
		return stats.AddSyncError(err.Error()), nil
	}

	if res.created {
		stats = stats.RecordAppCreated()
		metrics.RecordAppOutcome("created")
	} else {
		stats = stats.RecordAppUpdated()
		metrics.RecordAppOutcome("updated")
	}
	stats = stats.UpdateAppTypeStats(res.app.Type)

	switch res.site {
	case SiteCreated:
		stats = stats.RecordSiteCreated()
	case SiteUpdated:
		stats = stats.RecordSiteUpdated()
	}

	switch {
	case !res.dsl.Success:
		stats = stats.RecordDSLFailure()
		logging.Ctx(ctx).Warn().
			Str("remote_app_id", remoteID).
			Str("reason", res.dsl.Message).
			Msg("DSL export unusable; version history unchanged")
	case res.dsl.Changed:
		stats = stats.RecordDSLVersionCreated()
		metrics.RecordDSLVersionCreated()
	}
	return stats, nil
}

func (e *Engine) processApp(ctx context.Context, api console.API, token string, sc scope, remoteID, mode string, item map[string]interface{}) (*appResult, error) {
	// Two accounts of one instance may see the same app concurrently.
	unlock := e.appLocks.Lock(sc.instance.ID + "|" + remoteID)
	defer unlock()

	app, created, err := e.reconciler.FindOrCreate(ctx, sc.instance, sc.account, remoteID, mode)
	if err != nil {
		return nil, err
	}

	payload := item
	if needsDetail(e.opts.FetchDetail, item, app.Type) {
		detail, err := api.GetApp(ctx, token, remoteID)
		if err != nil {
			return nil, fmt.Errorf("fetch detail: %w", err)
		}
		payload = mergePayload(item, detail)
	}

	export, err := api.ExportDSL(ctx, token, remoteID)
	if err != nil {
		return nil, fmt.Errorf("export dsl: %w", err)
	}

	var before string
	if !created {
		if before, err = appFingerprint(app); err != nil {
			return nil, err
		}
	}

	app.AccountID = sc.account.ID
	MapAppFields(ctx, app, payload)

	sess := e.store.NewSession()
	res := &appResult{app: app, created: created}

	if res.site, err = e.sites.Merge(ctx, sess, sc.instance, app, payload); err != nil {
		sess.Discard()
		return nil, err
	}
	if res.dsl, err = e.dsl.Sync(ctx, sess, app, export); err != nil {
		sess.Discard()
		return nil, err
	}

	after, err := appFingerprint(app)
	if err != nil {
		sess.Discard()
		return nil, err
	}
	now := e.opts.Now()
	if created || after != before {
		app.UpdatedAt = now
	}
	app.LastSyncedAt = &now

	if err := e.store.PersistApp(sess, app); err != nil {
		sess.Discard()
		return nil, err
	}
	if err := sess.Flush(ctx); err != nil {
		if created {
			e.store.DetachApp(sess, app)
		}
		sess.Discard()
		return nil, fmt.Errorf("persist: %w", err)
	}
	return res, nil
}

// needsDetail reports whether the list entry lacks data the mapper needs.
func needsDetail(always bool, item map[string]interface{}, t models.AppType) bool {
	if always {
		return true
	}
	if _, ok := mapField(item, "site"); !ok {
		return true
	}
	block := "model_config"
	if t == models.AppTypeWorkflow || t == models.AppTypeChatflow {
		block = "workflow"
	}
	_, ok := mapField(item, block)
	return !ok
}

// mergePayload overlays detail onto the list entry.
func mergePayload(item, detail map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(item)+len(detail))
	for k, v := range item {
		out[k] = v
	}
	for k, v := range detail {
		out[k] = v
	}
	return out
}

// appFingerprint encodes the synced content of app, ignoring bookkeeping timestamps.
func appFingerprint(app *models.App) (string, error) {
	c := *app
	c.UpdatedAt = time.Time{}
	c.LastSyncedAt = nil
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("fingerprint app %s: %w", app.ID, err)
	}
	return string(b), nil
}

// PruneDSL trims the DSL history of every app to the newest keep versions.
func (e *Engine) PruneDSL(ctx context.Context, keep int) (int, error) {
	apps, err := e.store.ListApps(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("list apps: %w", err)
	}
	total := 0
	for _, app := range apps {
		n, err := e.dsl.PruneVersions(ctx, app.ID, keep)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// keyedMutex serializes work per key; entries are freed when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
