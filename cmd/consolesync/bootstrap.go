// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/consolesync/internal/auth"
	"github.com/tomtom215/consolesync/internal/config"
	"github.com/tomtom215/consolesync/internal/console"
	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/store"
	appsync "github.com/tomtom215/consolesync/internal/sync"
)

// application is the wired core shared by the store-backed commands.
type application struct {
	cfg    *config.Config
	store  *store.Store
	engine *appsync.Engine
}

// openApplication opens the store, registers the configured instances and
// builds the sync engine. Callers must Close the result.
func openApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	sealer, err := config.NewSecretSealer(cfg.Security.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("init secret sealer: %w", err)
	}

	backend, err := openBackend(cfg.Database)
	if err != nil {
		return nil, err
	}
	st := store.New(backend, sealer)

	if err := appsync.RegisterInstances(ctx, st, cfg.Instances, time.Now()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register instances: %w", err)
	}

	authMgr := auth.NewManager(st.Accounts, auth.WithLoginTimeout(cfg.Console.Timeout))
	clients := appsync.NewClientFactory(console.OptionsFromConfig(cfg.Console))
	engine := appsync.NewEngine(st, authMgr, clients, appsync.OptionsFromConfig(cfg))

	logging.Info().
		Bool("in_memory", cfg.Database.InMemory).
		Str("db_path", cfg.Database.Path).
		Int("instances", len(cfg.Instances)).
		Bool("secrets_sealed", cfg.Security.SecretKey != "").
		Msg("Store opened")

	return &application{cfg: cfg, store: st, engine: engine}, nil
}

func openBackend(cfg config.DatabaseConfig) (store.Backend, error) {
	if cfg.InMemory {
		return store.NewMemoryBackend(), nil
	}
	backend, err := store.OpenBadger(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Path, err)
	}
	return backend, nil
}

func (a *application) Close() {
	if err := a.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing store")
	}
}
