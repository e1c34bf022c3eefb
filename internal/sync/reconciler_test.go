// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package sync

import (
	"context"
	"testing"

	"github.com/tomtom215/consolesync/internal/models"
	"github.com/tomtom215/consolesync/internal/store"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

type countingFinder struct {
	AppFinder
	calls int
}

func (f *countingFinder) FindAppByRemote(ctx context.Context, instanceID, remoteAppID string) (*models.App, error) {
	f.calls++
	return f.AppFinder.FindAppByRemote(ctx, instanceID, remoteAppID)
}

func persistApp(t *testing.T, st *store.Store, app *models.App) {
	t.Helper()
	sess := st.NewSession()
	if err := st.PersistApp(sess, app); err != nil {
		t.Fatalf("PersistApp: %v", err)
	}
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestReconciler_RejectsUnsupportedTypeBeforeLookup(t *testing.T) {
	finder := &countingFinder{AppFinder: store.New(store.NewMemoryBackend(), nil)}
	r := NewReconciler(finder, nil, nil)

	_, _, err := r.FindOrCreate(context.Background(), &models.Instance{ID: "i1"}, &models.Account{ID: "a1"}, "r1", "agent")
	if syncerr.KindOf(err) != syncerr.KindValidation {
		t.Fatalf("error = %v, want validation", err)
	}
	if finder.calls != 0 {
		t.Errorf("lookup ran %d times for an unsupported type", finder.calls)
	}
}

func TestReconciler_CreatesThenFindsAcrossAccounts(t *testing.T) {
	st := store.New(store.NewMemoryBackend(), nil)
	r := NewReconciler(st, nil, func() string { return "local-1" })
	ctx := context.Background()
	instance := &models.Instance{ID: "i1"}

	app, created, err := r.FindOrCreate(ctx, instance, &models.Account{ID: "a1"}, "r1", "advanced-chat")
	if err != nil || !created {
		t.Fatalf("FindOrCreate() = (%v, %v, %v)", app, created, err)
	}
	if app.ID != "local-1" || app.AccountID != "a1" || app.Type != models.AppTypeChatAssistant {
		t.Errorf("new app = %+v", app)
	}
	if _, ok := app.ChatAssistant(); !ok {
		t.Error("new app has no chat assistant config")
	}
	persistApp(t, st, app)

	again, created, err := r.FindOrCreate(ctx, instance, &models.Account{ID: "a2"}, "r1", "chat")
	if err != nil || created {
		t.Fatalf("second FindOrCreate() = (%v, %v)", created, err)
	}
	if again.ID != app.ID {
		t.Errorf("resolved to %s, want %s", again.ID, app.ID)
	}
	if again.AccountID != "a1" {
		t.Errorf("hit modified AccountID to %q", again.AccountID)
	}

	other, created, _ := r.FindOrCreate(ctx, &models.Instance{ID: "i2"}, &models.Account{ID: "a1"}, "r1", "chat")
	if !created || other == nil {
		t.Error("same remote id on another instance resolved to an existing app")
	}
}

func TestReconciler_RetypesOnModeChange(t *testing.T) {
	st := store.New(store.NewMemoryBackend(), nil)
	r := NewReconciler(st, nil, nil)
	ctx := context.Background()
	instance := &models.Instance{ID: "i1"}

	app, _, _ := r.FindOrCreate(ctx, instance, &models.Account{ID: "a1"}, "r1", "chat")
	persistApp(t, st, app)

	moved, created, err := r.FindOrCreate(ctx, instance, &models.Account{ID: "a1"}, "r1", "workflow")
	if err != nil || created {
		t.Fatalf("FindOrCreate() = (%v, %v)", created, err)
	}
	if moved.ID != app.ID || moved.Type != models.AppTypeWorkflow {
		t.Errorf("moved = %+v", moved)
	}
	if _, ok := moved.Workflow(); !ok {
		t.Error("retyped app has no workflow config")
	}
}

func TestReconciler_EmptyRemoteID(t *testing.T) {
	r := NewReconciler(store.New(store.NewMemoryBackend(), nil), nil, nil)
	_, _, err := r.FindOrCreate(context.Background(), &models.Instance{ID: "i1"}, &models.Account{ID: "a1"}, "", "chat")
	if syncerr.KindOf(err) != syncerr.KindValidation {
		t.Errorf("error = %v, want validation", err)
	}
}
