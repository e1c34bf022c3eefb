// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/consolesync/internal/config"
	"github.com/tomtom215/consolesync/internal/supervisor/services"
	"github.com/tomtom215/consolesync/internal/taskqueue"
)

var errQueueNotRunning = errors.New("queue consumer not running")

// queueConsumer builds a fresh subscriber and router for every start of the
// queue service and remembers the live router for health checks.
type queueConsumer struct {
	cfg       config.NATSConfig
	publisher message.Publisher
	handler   *taskqueue.Handler
	logger    watermill.LoggerAdapter
	// newSubscriber is swapped in tests.
	newSubscriber func(config.NATSConfig, watermill.LoggerAdapter) (message.Subscriber, error)

	current atomic.Pointer[taskqueue.Router]
}

func newQueueConsumer(cfg config.NATSConfig, publisher message.Publisher, handler *taskqueue.Handler, logger watermill.LoggerAdapter) *queueConsumer {
	return &queueConsumer{
		cfg:           cfg,
		publisher:     publisher,
		handler:       handler,
		logger:        logger,
		newSubscriber: taskqueue.NewSubscriber,
	}
}

func (q *queueConsumer) build() (services.RouterRunner, error) {
	sub, err := q.newSubscriber(q.cfg, q.logger)
	if err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}

	routerCfg := taskqueue.RouterConfigFromNATS(q.cfg)
	router, err := taskqueue.NewRouter(&routerCfg, q.publisher, q.logger)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	router.AddConsumerHandler("sync-consumer", q.cfg.Topic, sub, q.handler.Handle)

	q.current.Store(router)
	return &queueRun{consumer: q, router: router, sub: sub}, nil
}

// check reports whether the current router is processing messages.
func (q *queueConsumer) check(context.Context) error {
	router := q.current.Load()
	if router == nil || !router.IsRunning() {
		return errQueueNotRunning
	}
	return nil
}

// queueRun is one router lifetime.
type queueRun struct {
	consumer *queueConsumer
	router   *taskqueue.Router
	sub      message.Subscriber
}

func (r *queueRun) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

func (r *queueRun) Close() error {
	r.consumer.current.CompareAndSwap(r.router, nil)
	return errors.Join(r.router.Close(), r.sub.Close())
}
