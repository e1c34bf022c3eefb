// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/consolesync/internal/config"
	"github.com/tomtom215/consolesync/internal/logging"
)

// Stream defaults not exposed in config.
const (
	streamMaxAge         = 7 * 24 * time.Hour
	streamMinDuplicates  = 2 * time.Minute
	streamProvisionLimit = 30 * time.Second
)

// StreamManager is the subset of jetstream.JetStream used to provision the
// sync stream.
type StreamManager interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamConfigFromNATS builds the stream that carries the sync topic and,
// when set, the poison topic. The duplicate window follows DedupTTL so
// publish retries inside it are dropped by the server.
func StreamConfigFromNATS(cfg config.NATSConfig) jetstream.StreamConfig {
	subjects := []string{cfg.Topic}
	if cfg.PoisonTopic != "" {
		subjects = append(subjects, cfg.PoisonTopic)
	}

	duplicates := cfg.DedupTTL
	if duplicates < streamMinDuplicates {
		duplicates = streamMinDuplicates
	}

	return jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   subjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     streamMaxAge,
		Duplicates: duplicates,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
}

// EnsureStream creates the stream or updates it in place. It is idempotent.
func EnsureStream(ctx context.Context, js StreamManager, cfg jetstream.StreamConfig) error {
	_, err := js.Stream(ctx, cfg.Name)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		return nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logging.Info().Str("stream", cfg.Name).Strs("subjects", cfg.Subjects).Msg("JetStream stream created")
		return nil
	default:
		return fmt.Errorf("check stream %s: %w", cfg.Name, err)
	}
}

// ProvisionStream connects to cfg.URL and ensures the sync stream exists.
func ProvisionStream(ctx context.Context, cfg config.NATSConfig) error {
	nc, err := natsgo.Connect(cfg.URL, natsgo.Name("consolesync-provisioner"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, streamProvisionLimit)
	defer cancel()
	return EnsureStream(ctx, js, StreamConfigFromNATS(cfg))
}
