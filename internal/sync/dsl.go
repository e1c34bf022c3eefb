// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/consolesync/internal/console"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

// DSLStore is the version history the DSL manager reads and writes.
// *store.Store implements it.
type DSLStore interface {
	LatestDSLVersion(ctx context.Context, appID string) (*models.DSLVersion, error)
	DSLVersionsOf(ctx context.Context, appID string) ([]*models.DSLVersion, error)
	NewSession() *store.Session
	PersistDSLVersion(sess *store.Session, v *models.DSLVersion)
	RemoveDSLVersion(sess *store.Session, v *models.DSLVersion)
}

// DSLResult describes one DSL sync.
type DSLResult struct {
	Success bool
	Changed bool
	Version int
	Hash    string
	Message string
}

// DSLManager keeps the append-only DSL history of apps.
type DSLManager struct {
	store DSLStore
	now   func() time.Time
	newID func() string
}

// NewDSLManager creates a DSLManager. now and newID default to time.Now and uuid.
func NewDSLManager(st DSLStore, now func() time.Time, newID func() string) *DSLManager {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &DSLManager{store: st, now: now, newID: newID}
}

// ContentHash is the hex SHA-256 of the canonical JSON encoding of content.
// Map keys are encoded in sorted order, so key order in the source is irrelevant.
func ContentHash(content map[string]interface{}) (string, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode dsl content: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// NextVersionNumber returns the latest version number of the app plus one.
func (m *DSLManager) NextVersionNumber(ctx context.Context, appID string) (int, error) {
	latest, err := m.store.LatestDSLVersion(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Version + 1, nil
}

// Sync stages a new version of the app's DSL into sess when the export differs
// from the latest stored version. A failed export is reported in the result,
// not as an error. Only the latest version is compared: reverting to older
// content still appends a version.
func (m *DSLManager) Sync(ctx context.Context, sess *store.Session, app *models.App, export *console.DSLExport) (DSLResult, error) {
	if export == nil || !export.Success {
		msg := "empty export"
		if export != nil && export.Message != "" {
			msg = export.Message
		}
		return DSLResult{Message: msg}, nil
	}

	hash, err := ContentHash(export.Content)
	if err != nil {
		return DSLResult{Message: err.Error()}, nil
	}

	latest, err := m.store.LatestDSLVersion(ctx, app.ID)
	switch {
	case err == nil:
		if latest.Hash == hash {
			return DSLResult{Success: true, Version: latest.Version, Hash: hash, Message: "no change"}, nil
		}
	case errors.Is(err, store.ErrNotFound):
		latest = nil
	default:
		return DSLResult{}, fmt.Errorf("latest dsl version of app %s: %w", app.ID, err)
	}

	next := 1
	if latest != nil {
		next = latest.Version + 1
	}
	m.store.PersistDSLVersion(sess, &models.DSLVersion{
		ID:         m.newID(),
		AppID:      app.ID,
		Version:    next,
		Content:    export.Content,
		RawContent: export.Raw,
		Hash:       hash,
		SyncedAt:   m.now(),
	})
	return DSLResult{Success: true, Changed: true, Version: next, Hash: hash}, nil
}

// PruneVersions deletes all but the newest keep versions of an app and
// returns how many were removed.
func (m *DSLManager) PruneVersions(ctx context.Context, appID string, keep int) (int, error) {
	if keep < 1 {
		return 0, syncerr.Validation("keep", "must be at least 1, got %d", keep)
	}
	versions, err := m.store.DSLVersionsOf(ctx, appID)
	if err != nil {
		return 0, fmt.Errorf("list dsl versions of app %s: %w", appID, err)
	}
	if len(versions) <= keep {
		return 0, nil
	}

	stale := versions[:len(versions)-keep]
	sess := m.store.NewSession()
	for _, v := range stale {
		m.store.RemoveDSLVersion(sess, v)
	}
	if err := sess.Flush(ctx); err != nil {
		sess.Discard()
		return 0, fmt.Errorf("prune dsl versions of app %s: %w", appID, err)
	}

	logging.Ctx(ctx).Info().
		Str("app_id", appID).
		Int("removed", len(stale)).
		Int("kept", keep).
		Msg("Pruned DSL versions")
	return len(stale), nil
}
