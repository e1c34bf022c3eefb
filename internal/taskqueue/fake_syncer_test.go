// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package taskqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/consolesync/internal/logging"
	appsync "github.com/tomtom215/consolesync/internal/sync"
)

type syncCall struct {
	req           appsync.SyncRequest
	requestID     string
	correlationID string
}

// fakeSyncer returns errs in order, then succeeds.
type fakeSyncer struct {
	mu    sync.Mutex
	errs  []error
	stats appsync.Stats
	calls []syncCall
	seen  chan syncCall
}

func newFakeSyncer(errs ...error) *fakeSyncer {
	return &fakeSyncer{
		errs:  errs,
		stats: appsync.NewStats(),
		seen:  make(chan syncCall, 64),
	}
}

func (f *fakeSyncer) SyncApps(ctx context.Context, req appsync.SyncRequest) (appsync.Stats, error) {
	call := syncCall{
		req:           req,
		requestID:     logging.RequestIDFromContext(ctx),
		correlationID: logging.CorrelationIDFromContext(ctx),
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	f.seen <- call
	return f.stats, err
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSyncer) waitCall(t *testing.T) syncCall {
	t.Helper()
	select {
	case c := <-f.seen:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for SyncApps call")
		return syncCall{}
	}
}

func (f *fakeSyncer) expectNoCall(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case c := <-f.seen:
		t.Errorf("unexpected SyncApps call for request %q", c.requestID)
	case <-time.After(within):
	}
}

func newTestPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}
