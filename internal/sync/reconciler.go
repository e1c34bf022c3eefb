// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

// AppFinder looks apps up by their remote identity. *store.Store implements it.
type AppFinder interface {
	FindAppByRemote(ctx context.Context, instanceID, remoteAppID string) (*models.App, error)
}

// Reconciler resolves a remote app onto its local record.
type Reconciler struct {
	apps  AppFinder
	now   func() time.Time
	newID func() string
}

// NewReconciler creates a Reconciler. now and newID default to time.Now and uuid.
func NewReconciler(apps AppFinder, now func() time.Time, newID func() string) *Reconciler {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Reconciler{apps: apps, now: now, newID: newID}
}

// FindOrCreate returns the app identified by (instance, remoteAppID), or a new
// unsaved app owned by account. The lookup ignores the account, so an app
// observed through another account resolves to the same record. Unsupported
// modes are rejected before any lookup.
//
// created reports whether the app is new. An existing app whose remote mode now
// maps to a different variant is returned retyped with an empty config.
func (r *Reconciler) FindOrCreate(ctx context.Context, instance *models.Instance, account *models.Account, remoteAppID, mode string) (app *models.App, created bool, err error) {
	appType, ok := models.ResolveAppType(mode)
	if !ok {
		return nil, false, syncerr.Validation("mode", "unsupported app type %q for app %s", mode, remoteAppID)
	}
	if remoteAppID == "" {
		return nil, false, syncerr.Validation("id", "remote app id is empty")
	}

	existing, err := r.apps.FindAppByRemote(ctx, instance.ID, remoteAppID)
	switch {
	case err == nil:
		if existing.Type != appType {
			existing.Type = appType
			existing.Config = models.NewAppConfig(appType)
		}
		return existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, fmt.Errorf("find app %s: %w", remoteAppID, err)
	}

	now := r.now()
	app = models.NewApp(appType)
	app.ID = r.newID()
	app.InstanceID = instance.ID
	app.AccountID = account.ID
	app.RemoteAppID = remoteAppID
	app.Mode = mode
	app.CreatedAt = now
	app.UpdatedAt = now
	return app, true, nil
}
