// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package taskqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/consolesync/internal/cache"
	"github.com/tomtom215/consolesync/internal/config"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	// Retry configuration. RetryMaxRetries 0 leaves redelivery to the broker.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonQueueTopic receives messages that still fail after all retries.
	// Empty disables the poison queue.
	PoisonQueueTopic string

	// DeduplicationTTL is how long an identity is remembered. 0 disables it.
	DeduplicationTTL time.Duration
}

// DefaultRouterConfig returns production defaults for the Router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     "consolesync.sync.poison",
		DeduplicationTTL:     5 * time.Minute,
	}
}

// RouterConfigFromNATS maps the nats config section onto router settings.
func RouterConfigFromNATS(cfg config.NATSConfig) RouterConfig {
	rc := DefaultRouterConfig()
	rc.RetryMaxRetries = cfg.RetryCount
	if cfg.RetryInitialInterval > 0 {
		rc.RetryInitialInterval = cfg.RetryInitialInterval
	}
	if cfg.CloseTimeout > 0 {
		rc.CloseTimeout = cfg.CloseTimeout
	}
	rc.PoisonQueueTopic = cfg.PoisonTopic
	rc.DeduplicationTTL = cfg.DedupTTL
	return rc
}

// IdentityDeduplicator implements middleware.ExpiringKeyRepository over an
// LRU cache bounded to 10000 identities.
type IdentityDeduplicator struct {
	cache *cache.LRUCache
}

// NewIdentityDeduplicator creates a deduplicator remembering keys for ttl.
func NewIdentityDeduplicator(ttl time.Duration) *IdentityDeduplicator {
	return &IdentityDeduplicator{
		cache: cache.NewLRUCache(10000, ttl),
	}
}

// IsDuplicate records key and reports whether it was already present.
func (d *IdentityDeduplicator) IsDuplicate(_ context.Context, key string) (bool, error) {
	return d.cache.IsDuplicate(key), nil
}

// Forget drops key so a redelivery of a failed message is processed again.
func (d *IdentityDeduplicator) Forget(key string) {
	d.cache.Remove(key)
}

// Router wraps the Watermill Router with the queue's middleware stack.
type Router struct {
	router   *message.Router
	config   RouterConfig
	logger   watermill.LoggerAdapter
	handlers map[string]*message.Handler
	dedup    *IdentityDeduplicator
}

// NewRouter creates a Watermill Router. Middleware runs outer to inner:
//  1. Recoverer turns panics into errors
//  2. Deduplicator drops identities seen within DeduplicationTTL
//  3. PoisonQueue publishes messages that exhausted their retries
//  4. Retry backs off exponentially between attempts (if enabled)
func NewRouter(
	cfg *RouterConfig,
	poisonPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:   wmRouter,
		config:   *cfg,
		logger:   logger,
		handlers: make(map[string]*message.Handler),
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	if cfg.DeduplicationTTL > 0 {
		r.dedup = NewIdentityDeduplicator(cfg.DeduplicationTTL)
		dedup := middleware.Deduplicator{
			KeyFactory: func(msg *message.Message) (string, error) {
				return identityOf(msg), nil
			},
			Repository: r.dedup,
		}
		wmRouter.AddMiddleware(dedup.Middleware)
	}

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	if cfg.RetryMaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      cfg.RetryMaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			Multiplier:      cfg.RetryMultiplier,
			Logger:          logger,
		}
		wmRouter.AddMiddleware(retry.Middleware)
	}

	return r, nil
}

// AddConsumerHandler registers a handler that produces no output messages.
// A failed attempt releases the message identity so a later redelivery is
// not mistaken for a duplicate.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	wrapped := handler
	if r.dedup != nil {
		wrapped = func(msg *message.Message) error {
			err := handler(msg)
			if err != nil {
				r.dedup.Forget(identityOf(msg))
			}
			return err
		}
	}

	h := r.router.AddConsumerHandler(name, subscribeTopic, subscriber, wrapped)
	r.handlers[name] = h
	return h
}

// Run starts the router and blocks until ctx is canceled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.router.IsRunning()
}

// Close stops the router, waiting up to CloseTimeout for in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}
