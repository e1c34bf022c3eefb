// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consolesync/internal/models"
)

// Namespaces
const (
	nsInstance  = "instance"
	nsAccount   = "account"
	nsSite      = "site"
	nsDSL       = "dsl"
	nsAppRemote = "app_remote"
	nsAppPrefix = "app_"
)

// Sealer protects account secrets at rest. config.SecretSealer satisfies it.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

type plainSealer struct{}

func (plainSealer) Seal(s string) (string, error) { return s, nil }
func (plainSealer) Open(s string) (string, error) { return s, nil }

// Store holds the repositories of every entity type.
type Store struct {
	backend Backend

	Instances   *Repository[models.Instance]
	Accounts    *Repository[models.Account]
	Sites       *Repository[models.Site]
	DSLVersions *Repository[models.DSLVersion]

	apps      map[models.AppType]*Repository[models.App]
	appRemote *Repository[appRemoteEntry]
}

// appRemoteEntry indexes an app by (instance, remote app id).
type appRemoteEntry struct {
	InstanceID  string         `json:"instance_id"`
	RemoteAppID string         `json:"remote_app_id"`
	AppID       string         `json:"app_id"`
	Type        models.AppType `json:"type"`
}

// New builds a Store over backend. A nil sealer stores secrets as plaintext.
func New(backend Backend, sealer Sealer) *Store {
	if sealer == nil {
		sealer = plainSealer{}
	}

	s := &Store{
		backend:     backend,
		Instances:   newRepository(backend, nsInstance, func(v *models.Instance) string { return v.ID }),
		Accounts:    newRepository(backend, nsAccount, func(v *models.Account) string { return v.ID }),
		Sites:       newRepository(backend, nsSite, func(v *models.Site) string { return v.ID }),
		DSLVersions: newRepository(backend, nsDSL, func(v *models.DSLVersion) string { return dslKey(v.AppID, v.Version) }),
		apps:        make(map[models.AppType]*Repository[models.App], len(models.AllAppTypes)),
		appRemote: newRepository(backend, nsAppRemote, func(v *appRemoteEntry) string {
			return remoteKey(v.InstanceID, v.RemoteAppID)
		}),
	}
	for _, t := range models.AllAppTypes {
		s.apps[t] = newRepository(backend, nsAppPrefix+string(t), func(v *models.App) string { return v.ID })
	}

	s.Accounts.encode = func(a *models.Account) ([]byte, error) {
		sealed := *a
		var err error
		if sealed.Password, err = sealer.Seal(a.Password); err != nil {
			return nil, fmt.Errorf("seal password: %w", err)
		}
		if sealed.AccessToken, err = sealer.Seal(a.AccessToken); err != nil {
			return nil, fmt.Errorf("seal access token: %w", err)
		}
		return json.Marshal(&sealed)
	}
	s.Accounts.decode = func(b []byte) (*models.Account, error) {
		var a models.Account
		if err := json.Unmarshal(b, &a); err != nil {
			return nil, err
		}
		var err error
		if a.Password, err = sealer.Open(a.Password); err != nil {
			return nil, fmt.Errorf("open password: %w", err)
		}
		if a.AccessToken, err = sealer.Open(a.AccessToken); err != nil {
			return nil, fmt.Errorf("open access token: %w", err)
		}
		return &a, nil
	}

	return s
}

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

// Ping performs a point read against the backend to confirm it is serving.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.backend.Get(ctx, nsInstance, "")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// NewSession starts a unit of work.
func (s *Store) NewSession() *Session { return newSession(s.backend) }

// Apps returns the repository of one app variant.
func (s *Store) Apps(t models.AppType) (*Repository[models.App], bool) {
	r, ok := s.apps[t]
	return r, ok
}

// FindAppByRemote looks an app up by (instance, remote app id) across variants.
// The owning account is deliberately not part of the key.
func (s *Store) FindAppByRemote(ctx context.Context, instanceID, remoteAppID string) (*models.App, error) {
	entry, err := s.appRemote.FindByID(ctx, remoteKey(instanceID, remoteAppID))
	if err != nil {
		return nil, err
	}
	repo, ok := s.apps[entry.Type]
	if !ok {
		return nil, fmt.Errorf("app index %s/%s: unknown type %q", instanceID, remoteAppID, entry.Type)
	}
	return repo.FindByID(ctx, entry.AppID)
}

// FindAppByID searches every variant for id.
func (s *Store) FindAppByID(ctx context.Context, id string) (*models.App, error) {
	for _, t := range models.AllAppTypes {
		app, err := s.apps[t].FindByID(ctx, id)
		if err == nil {
			return app, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// ListApps returns apps of the given variants (all when none given) matching criteria.
func (s *Store) ListApps(ctx context.Context, criteria func(*models.App) bool, types ...models.AppType) ([]*models.App, error) {
	if len(types) == 0 {
		types = models.AllAppTypes
	}
	var out []*models.App
	for _, t := range types {
		repo, ok := s.apps[t]
		if !ok {
			continue
		}
		apps, err := repo.FindBy(ctx, criteria)
		if err != nil {
			return nil, err
		}
		out = append(out, apps...)
	}
	return out, nil
}

// PersistApp stages app, its remote index entry and removal of the same id
// from the other variants (an app whose remote mode changed moves namespaces).
func (s *Store) PersistApp(sess *Session, app *models.App) error {
	repo, ok := s.apps[app.Type]
	if !ok {
		return fmt.Errorf("persist app %s: unknown type %q", app.ID, app.Type)
	}
	repo.Persist(sess, app)
	s.appRemote.Persist(sess, &appRemoteEntry{
		InstanceID:  app.InstanceID,
		RemoteAppID: app.RemoteAppID,
		AppID:       app.ID,
		Type:        app.Type,
	})
	for t, other := range s.apps {
		if t != app.Type {
			other.Remove(sess, app.ID)
		}
	}
	return nil
}

// DetachApp drops every staged write PersistApp made for app.
func (s *Store) DetachApp(sess *Session, app *models.App) {
	for _, repo := range s.apps {
		sess.unstage(repo.namespace, app.ID)
	}
	sess.unstage(nsAppRemote, remoteKey(app.InstanceID, app.RemoteAppID))
}

// DSLVersionsOf returns an app's versions in ascending version order.
func (s *Store) DSLVersionsOf(ctx context.Context, appID string) ([]*models.DSLVersion, error) {
	return s.DSLVersions.findPrefix(ctx, appID+"/", nil)
}

// LatestDSLVersion returns the highest-numbered version of an app or ErrNotFound.
func (s *Store) LatestDSLVersion(ctx context.Context, appID string) (*models.DSLVersion, error) {
	var latest *models.DSLVersion
	err := s.backend.Scan(ctx, nsDSL, appID+"/", func(key string, value []byte) error {
		v, err := s.DSLVersions.decode(value)
		if err != nil {
			return fmt.Errorf("decode %s %s: %w", nsDSL, key, err)
		}
		if latest == nil || v.Version > latest.Version {
			latest = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// PersistDSLVersion stages a DSL version.
func (s *Store) PersistDSLVersion(sess *Session, v *models.DSLVersion) {
	s.DSLVersions.Persist(sess, v)
}

// RemoveDSLVersion stages deletion of a DSL version.
func (s *Store) RemoveDSLVersion(sess *Session, v *models.DSLVersion) {
	s.DSLVersions.Remove(sess, dslKey(v.AppID, v.Version))
}

// AccountsOf returns the accounts of an instance.
func (s *Store) AccountsOf(ctx context.Context, instanceID string) ([]*models.Account, error) {
	return s.Accounts.FindBy(ctx, func(a *models.Account) bool { return a.InstanceID == instanceID })
}

func remoteKey(instanceID, remoteAppID string) string {
	return instanceID + "|" + remoteAppID
}

// dslKey zero-pads the version so lexical key order is version order.
func dslKey(appID string, version int) string {
	return fmt.Sprintf("%s/%010d", appID, version)
}
