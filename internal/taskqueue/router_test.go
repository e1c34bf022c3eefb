// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/consolesync/internal/config"
	appsync "github.com/tomtom215/consolesync/internal/sync"
	"github.com/tomtom215/consolesync/internal/syncerr"
)

const testTopic = "consolesync.sync"

func testRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         time.Second,
		RetryMaxRetries:      0,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		RetryMultiplier:      1.0,
		DeduplicationTTL:     time.Minute,
	}
}

func startRouter(t *testing.T, cfg RouterConfig, ps *gochannel.GoChannel, syncer Syncer) *Router {
	t.Helper()

	var poison message.Publisher
	if cfg.PoisonQueueTopic != "" {
		poison = ps
	}
	r, err := NewRouter(&cfg, poison, nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	r.AddConsumerHandler("sync", testTopic, ps, NewHandler(syncer).Handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

func publish(t *testing.T, ps *gochannel.GoChannel, m SyncMessage) {
	t.Helper()
	if err := ps.Publish(testTopic, mustMessage(t, m)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	if cfg.CloseTimeout != 30*time.Second {
		t.Errorf("CloseTimeout = %v, want 30s", cfg.CloseTimeout)
	}
	if cfg.RetryMaxRetries != 3 {
		t.Errorf("RetryMaxRetries = %d, want 3", cfg.RetryMaxRetries)
	}
	if cfg.RetryMultiplier != 2.0 {
		t.Errorf("RetryMultiplier = %f, want 2.0", cfg.RetryMultiplier)
	}
	if cfg.DeduplicationTTL != 5*time.Minute {
		t.Errorf("DeduplicationTTL = %v, want 5m", cfg.DeduplicationTTL)
	}
}

func TestRouterConfigFromNATS(t *testing.T) {
	cfg := RouterConfigFromNATS(config.NATSConfig{
		RetryCount:           7,
		RetryInitialInterval: 3 * time.Second,
		PoisonTopic:          "dlq.sync",
		DedupTTL:             0,
		CloseTimeout:         9 * time.Second,
	})

	if cfg.RetryMaxRetries != 7 {
		t.Errorf("RetryMaxRetries = %d, want 7", cfg.RetryMaxRetries)
	}
	if cfg.RetryInitialInterval != 3*time.Second {
		t.Errorf("RetryInitialInterval = %v, want 3s", cfg.RetryInitialInterval)
	}
	if cfg.PoisonQueueTopic != "dlq.sync" {
		t.Errorf("PoisonQueueTopic = %q, want dlq.sync", cfg.PoisonQueueTopic)
	}
	if cfg.DeduplicationTTL != 0 {
		t.Errorf("DeduplicationTTL = %v, want 0 (disabled)", cfg.DeduplicationTTL)
	}
	if cfg.CloseTimeout != 9*time.Second {
		t.Errorf("CloseTimeout = %v, want 9s", cfg.CloseTimeout)
	}
}

func TestIdentityDeduplicator(t *testing.T) {
	d := NewIdentityDeduplicator(time.Minute)
	ctx := context.Background()

	if dup, _ := d.IsDuplicate(ctx, "k"); dup {
		t.Error("first sighting reported as duplicate")
	}
	if dup, _ := d.IsDuplicate(ctx, "k"); !dup {
		t.Error("second sighting not reported as duplicate")
	}

	d.Forget("k")
	if dup, _ := d.IsDuplicate(ctx, "k"); dup {
		t.Error("forgotten key reported as duplicate")
	}
}

func TestRouter_DropsDuplicateIdentity(t *testing.T) {
	ps := newTestPubSub(t)
	syncer := newFakeSyncer()
	startRouter(t, testRouterConfig(), ps, syncer)

	m := NewSyncMessage(appsync.SyncRequest{InstanceID: "i1"}, "req-1")
	publish(t, ps, m)
	publish(t, ps, m)
	publish(t, ps, NewSyncMessage(appsync.SyncRequest{InstanceID: "i1"}, "req-2"))

	// Delivery order is not guaranteed, so compare the handled set.
	handled := map[string]int{}
	for i := 0; i < 2; i++ {
		handled[syncer.waitCall(t).requestID]++
	}
	syncer.expectNoCall(t, 200*time.Millisecond)

	if handled["req-1"] != 1 || handled["req-2"] != 1 {
		t.Errorf("handled = %v, want req-1 and req-2 once each", handled)
	}
	if n := syncer.callCount(); n != 2 {
		t.Errorf("SyncApps called %d times, want 2", n)
	}
}

func TestRouter_RedeliveryAfterFailureIsProcessed(t *testing.T) {
	ps := newTestPubSub(t)
	syncer := newFakeSyncer(&syncerr.RateLimitError{Message: "slow down"})
	startRouter(t, testRouterConfig(), ps, syncer)

	publish(t, ps, NewSyncMessage(appsync.SyncRequest{AccountID: "a1"}, "req-1"))

	syncer.waitCall(t)
	second := syncer.waitCall(t)
	if second.req.AccountID != "a1" {
		t.Errorf("redelivered request = %+v, want account a1", second.req)
	}
}

func TestRouter_RetriesThenSucceeds(t *testing.T) {
	ps := newTestPubSub(t)
	cfg := testRouterConfig()
	cfg.RetryMaxRetries = 2
	cfg.PoisonQueueTopic = "poison"

	poisoned, err := ps.Subscribe(context.Background(), cfg.PoisonQueueTopic)
	if err != nil {
		t.Fatalf("Subscribe poison: %v", err)
	}

	hard := &syncerr.InstanceUnavailableError{InstanceURL: "https://console.example", Reason: syncerr.ReasonTimeout}
	syncer := newFakeSyncer(hard, hard)
	startRouter(t, cfg, ps, syncer)

	publish(t, ps, SyncMessage{InstanceID: "i1"})

	for i := 0; i < 3; i++ {
		syncer.waitCall(t)
	}

	select {
	case msg := <-poisoned:
		t.Errorf("message %s poisoned after a successful retry", msg.UUID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRouter_PoisonsAfterRetries(t *testing.T) {
	ps := newTestPubSub(t)
	cfg := testRouterConfig()
	cfg.RetryMaxRetries = 1
	cfg.PoisonQueueTopic = "poison"

	poisoned, err := ps.Subscribe(context.Background(), cfg.PoisonQueueTopic)
	if err != nil {
		t.Fatalf("Subscribe poison: %v", err)
	}

	auth := &syncerr.AuthenticationError{Reason: syncerr.ReasonLoginFailed, Message: "bad password"}
	syncer := newFakeSyncer(auth, auth)
	startRouter(t, cfg, ps, syncer)

	m := NewSyncMessage(appsync.SyncRequest{AccountID: "a1"}, "")
	publish(t, ps, m)

	select {
	case msg := <-poisoned:
		msg.Ack()
		if got := msg.Metadata.Get(MetadataIdentity); got != m.Identity() {
			t.Errorf("poisoned identity = %q, want %q", got, m.Identity())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not routed to the poison topic")
	}

	if n := syncer.callCount(); n != 2 {
		t.Errorf("SyncApps called %d times, want 2 (one attempt plus one retry)", n)
	}
}
