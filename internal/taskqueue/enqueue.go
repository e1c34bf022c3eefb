// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package taskqueue

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/consolesync/internal/logging"
	appsync "github.com/tomtom215/consolesync/internal/sync"
	"github.com/tomtom215/consolesync/internal/validation"
)

// Enqueuer publishes sync requests to the queue topic.
type Enqueuer struct {
	publisher message.Publisher
	topic     string
}

// NewEnqueuer creates an enqueuer publishing to topic.
func NewEnqueuer(pub message.Publisher, topic string) *Enqueuer {
	return &Enqueuer{publisher: pub, topic: topic}
}

// Enqueue validates req, publishes it and returns the message identity. The
// request id in ctx, if any, becomes part of the identity.
func (e *Enqueuer) Enqueue(ctx context.Context, req appsync.SyncRequest) (string, error) {
	if err := validation.Validate(&req); err != nil {
		return "", err
	}

	m := NewSyncMessage(req, logging.RequestIDFromContext(ctx))
	msg, err := m.ToMessage()
	if err != nil {
		return "", err
	}
	msg.SetContext(ctx)

	if err := e.publisher.Publish(e.topic, msg); err != nil {
		return "", fmt.Errorf("publish sync message: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("identity", m.Identity()).
		Str("instance_id", m.InstanceID).
		Str("account_id", m.AccountID).
		Str("app_type", string(m.AppType)).
		Msg("Sync request enqueued")
	return m.Identity(), nil
}
