// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package taskqueue

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/consolesync/internal/models"
	appsync "github.com/tomtom215/consolesync/internal/sync"
)

// Metadata keys set on every published message.
const (
	MetadataIdentity  = "identity"
	MetadataRequestID = "request_id"
)

// SyncMessage is a queued sync trigger.
type SyncMessage struct {
	InstanceID string            `json:"instance_id,omitempty"`
	AccountID  string            `json:"account_id,omitempty"`
	AppType    models.AppType    `json:"app_type,omitempty" validate:"omitempty,app_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewSyncMessage builds the message for req. An empty requestID leaves the
// metadata unset, which makes identical scopes collapse into one identity.
func NewSyncMessage(req appsync.SyncRequest, requestID string) SyncMessage {
	m := SyncMessage{
		InstanceID: req.InstanceID,
		AccountID:  req.AccountID,
		AppType:    req.AppType,
	}
	if requestID != "" {
		m.Metadata = map[string]string{MetadataRequestID: requestID}
	}
	return m
}

// RequestID returns the caller-supplied request id, if any.
func (m SyncMessage) RequestID() string {
	return m.Metadata[MetadataRequestID]
}

// Identity is the hex sha256 of instance|account|app_type|request_id.
func (m SyncMessage) Identity() string {
	raw := strings.Join([]string{m.InstanceID, m.AccountID, string(m.AppType), m.RequestID()}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Request converts the message back into an engine request.
func (m SyncMessage) Request() appsync.SyncRequest {
	return appsync.SyncRequest{
		InstanceID: m.InstanceID,
		AccountID:  m.AccountID,
		AppType:    m.AppType,
	}
}

// ToMessage encodes m as a watermill message carrying its identity in metadata.
func (m SyncMessage) ToMessage() (*message.Message, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal sync message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataIdentity, m.Identity())
	if rid := m.RequestID(); rid != "" {
		msg.Metadata.Set(MetadataRequestID, rid)
	}
	return msg, nil
}

// DecodeSyncMessage parses a message payload.
func DecodeSyncMessage(payload []byte) (SyncMessage, error) {
	var m SyncMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return SyncMessage{}, fmt.Errorf("unmarshal sync message: %w", err)
	}
	return m, nil
}

// identityOf returns the identity recorded on msg, recomputing it from the
// payload for messages published without metadata. Undecodable payloads are
// keyed by message UUID and left for the handler to reject.
func identityOf(msg *message.Message) string {
	if id := msg.Metadata.Get(MetadataIdentity); id != "" {
		return id
	}
	m, err := DecodeSyncMessage(msg.Payload)
	if err != nil {
		return msg.UUID
	}
	return m.Identity()
}
