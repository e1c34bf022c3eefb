// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/consolesync/internal/logging"
)

// RouterRunner is a message router. *taskqueue.Router implements it.
type RouterRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterFactory builds a fresh router. A watermill router cannot be run
// again after it stops, so each restart builds a new one.
type RouterFactory func() (RouterRunner, error)

// QueueService consumes queued sync messages.
type QueueService struct {
	build RouterFactory
}

// NewQueueService creates the service.
func NewQueueService(build RouterFactory) *QueueService {
	return &QueueService{build: build}
}

// Serve implements suture.Service.
func (s *QueueService) Serve(ctx context.Context) error {
	router, err := s.build()
	if err != nil {
		return fmt.Errorf("build queue router: %w", err)
	}
	defer func() {
		if cerr := router.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Queue router close failed")
		}
	}()

	logging.Info().Msg("Queue consumer started")
	err = router.Run(ctx)

	if ctx.Err() != nil {
		logging.Info().Msg("Queue consumer stopped")
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("router stopped unexpectedly")
	}
	return fmt.Errorf("queue router: %w", err)
}

func (s *QueueService) String() string {
	return "queue-consumer"
}
