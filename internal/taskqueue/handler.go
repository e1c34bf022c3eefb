// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package taskqueue

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/consolesync/internal/logging"
	"github.com/tomtom215/consolesync/internal/metrics"
	appsync "github.com/tomtom215/consolesync/internal/sync"
	"github.com/tomtom215/consolesync/internal/syncerr"
	"github.com/tomtom215/consolesync/internal/validation"
)

// Queue message results reported to metrics.
const (
	ResultProcessed = "processed"
	ResultPartial   = "partial"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
)

// Syncer runs one sync. *sync.Engine implements it.
type Syncer interface {
	SyncApps(ctx context.Context, req appsync.SyncRequest) (appsync.Stats, error)
}

// Handler consumes SyncMessages.
type Handler struct {
	syncer Syncer
}

// NewHandler creates a handler running syncs on s.
func NewHandler(s Syncer) *Handler {
	return &Handler{syncer: s}
}

// Handle implements message.NoPublishHandlerFunc. A nil return acks the
// message; an error hands it back to the router's retry and poison queue.
func (h *Handler) Handle(msg *message.Message) error {
	ctx := logging.ContextWithCorrelationID(msg.Context(), msg.UUID)

	m, err := DecodeSyncMessage(msg.Payload)
	if err == nil {
		err = validation.Validate(&m)
	}
	if err != nil {
		h.reject(ctx, msg, err)
		return nil
	}

	if rid := m.RequestID(); rid != "" {
		ctx = logging.ContextWithRequestID(ctx, rid)
	}
	log := logging.Ctx(ctx)

	stats, err := h.syncer.SyncApps(ctx, m.Request())
	if err != nil {
		if permanent(err) {
			h.reject(ctx, msg, err)
			return nil
		}
		metrics.RecordQueueMessage(ResultFailed)
		log.Warn().Err(err).
			Str("kind", string(syncerr.KindOf(err))).
			Str("instance_id", m.InstanceID).
			Str("account_id", m.AccountID).
			Msg("Queued sync failed, message will be redelivered")
		return err
	}

	result := ResultProcessed
	if stats.HasErrors() {
		result = ResultPartial
	}
	metrics.RecordQueueMessage(result)
	log.Debug().
		Str("result", result).
		Int("synced_apps", stats.SyncedApps).
		Int("errors", stats.Errors).
		Msg("Queued sync handled")
	return nil
}

func (h *Handler) reject(ctx context.Context, msg *message.Message, err error) {
	metrics.RecordQueueMessage(ResultRejected)
	logging.Ctx(ctx).Error().Err(err).
		Str("message_uuid", msg.UUID).
		Msg("Rejected sync message")
}

// permanent reports errors that redelivery cannot fix. A canceled context is
// not one of them: the message goes back to the broker on shutdown.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return syncerr.KindOf(err) == syncerr.KindValidation
}
