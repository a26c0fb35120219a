// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const testTopic = "auth.login_attempts"

func newGoChannel(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	return pubSub
}

func fastRouterConfig() RouterConfig {
	cfg := DefaultRouterConfig()
	cfg.CloseTimeout = time.Second
	cfg.RetryMaxRetries = 1
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	return cfg
}

// startRouter runs r until the test ends.
func startRouter(t *testing.T, r *Router) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	if cfg.RetryMaxRetries != 3 {
		t.Errorf("RetryMaxRetries = %d, want 3", cfg.RetryMaxRetries)
	}
	if cfg.PoisonQueueTopic != DefaultPoisonQueueTopic {
		t.Errorf("PoisonQueueTopic = %q, want %q", cfg.PoisonQueueTopic, DefaultPoisonQueueTopic)
	}
	if !cfg.DeduplicationEnabled {
		t.Error("DeduplicationEnabled should be true by default")
	}
}

func TestInMemoryDeduplicator(t *testing.T) {
	dedup := NewInMemoryDeduplicator(time.Minute)
	ctx := context.Background()

	var _ middleware.ExpiringKeyRepository = dedup

	isDup, err := dedup.IsDuplicate(ctx, "key1")
	if err != nil || isDup {
		t.Errorf("first IsDuplicate = %v, %v", isDup, err)
	}
	isDup, _ = dedup.IsDuplicate(ctx, "key1")
	if !isDup {
		t.Error("second call with same key should be duplicate")
	}
	isDup, _ = dedup.IsDuplicate(ctx, "key2")
	if isDup {
		t.Error("different key should not be duplicate")
	}
	for i := 0; i < 2; i++ {
		if isDup, _ = dedup.IsDuplicate(ctx, ""); isDup {
			t.Errorf("empty key call %d reported as duplicate", i+1)
		}
	}
}

func TestRouter_DeliversToHandler(t *testing.T) {
	pubSub := newGoChannel(t)
	cfg := fastRouterConfig()
	r, err := NewRouter(&cfg, pubSub, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	var handled atomic.Int32
	var payload atomic.Value
	r.AddConsumerHandler(AttemptsHandlerName, testTopic, pubSub, func(msg *message.Message) error {
		payload.Store(string(msg.Payload))
		handled.Add(1)
		return nil
	})
	if r.HandlerCount() != 1 {
		t.Errorf("HandlerCount() = %d, want 1", r.HandlerCount())
	}

	startRouter(t, r)
	if !r.IsRunning() {
		t.Error("IsRunning() = false while running")
	}

	if err := pubSub.Publish(testTopic, message.NewMessage(watermill.NewUUID(), []byte(`{"userId":"alice"}`))); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return handled.Load() == 1 })
	if got := payload.Load(); got != `{"userId":"alice"}` {
		t.Errorf("payload = %v", got)
	}
}

func TestRouter_Deduplicates(t *testing.T) {
	pubSub := newGoChannel(t)
	cfg := fastRouterConfig()
	r, err := NewRouter(&cfg, pubSub, nil)
	if err != nil {
		t.Fatal(err)
	}

	var handled atomic.Int32
	r.AddConsumerHandler(AttemptsHandlerName, testTopic, pubSub, func(msg *message.Message) error {
		handled.Add(1)
		return nil
	})
	startRouter(t, r)

	id := watermill.NewUUID()
	if err := pubSub.Publish(testTopic, message.NewMessage(id, []byte("first"))); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return handled.Load() == 1 })

	if err := pubSub.Publish(testTopic, message.NewMessage(id, []byte("redelivery"))); err != nil {
		t.Fatal(err)
	}
	marker := watermill.NewUUID()
	if err := pubSub.Publish(testTopic, message.NewMessage(marker, []byte("next"))); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return handled.Load() >= 2 })

	time.Sleep(50 * time.Millisecond)
	if got := handled.Load(); got != 2 {
		t.Errorf("handled = %d, want 2 (redelivery dropped)", got)
	}
}

func TestRouter_MessagesWithoutIDAllDelivered(t *testing.T) {
	pubSub := newGoChannel(t)
	cfg := fastRouterConfig()
	r, err := NewRouter(&cfg, pubSub, nil)
	if err != nil {
		t.Fatal(err)
	}

	var handled atomic.Int32
	r.AddConsumerHandler(AttemptsHandlerName, testTopic, pubSub, func(msg *message.Message) error {
		handled.Add(1)
		return nil
	})
	startRouter(t, r)

	// Plain NATS producers publish without a Watermill UUID.
	const attempts = 5
	for i := 0; i < attempts; i++ {
		payload := []byte(fmt.Sprintf(`{"userId":"alice","sourceIp":"198.51.100.%d"}`, i+1))
		if err := pubSub.Publish(testTopic, message.NewMessage("", payload)); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return handled.Load() == attempts })
}

func TestRouter_PoisonQueue(t *testing.T) {
	pubSub := newGoChannel(t)
	cfg := fastRouterConfig()
	cfg.PoisonQueueTopic = "auth.login_attempts.poison"
	r, err := NewRouter(&cfg, pubSub, nil)
	if err != nil {
		t.Fatal(err)
	}

	poisoned, err := pubSub.Subscribe(context.Background(), cfg.PoisonQueueTopic)
	if err != nil {
		t.Fatal(err)
	}

	var attempts atomic.Int32
	r.AddConsumerHandler(AttemptsHandlerName, testTopic, pubSub, func(msg *message.Message) error {
		attempts.Add(1)
		return errors.New("engine unavailable")
	})
	startRouter(t, r)

	id := watermill.NewUUID()
	if err := pubSub.Publish(testTopic, message.NewMessage(id, []byte("attempt"))); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
		if msg.UUID != id {
			t.Errorf("poisoned UUID = %s, want %s", msg.UUID, id)
		}
		if reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey); reason == "" {
			t.Error("poisoned message carries no reason")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message did not reach the poison queue")
	}

	// One initial attempt plus one retry.
	if got := attempts.Load(); got != 2 {
		t.Errorf("handler ran %d times, want 2", got)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	pubSub := newGoChannel(t)
	cfg := fastRouterConfig()
	cfg.RetryMaxRetries = 0
	r, err := NewRouter(&cfg, pubSub, nil)
	if err != nil {
		t.Fatal(err)
	}

	poisoned, err := pubSub.Subscribe(context.Background(), cfg.PoisonQueueTopic)
	if err != nil {
		t.Fatal(err)
	}

	r.AddConsumerHandler(AttemptsHandlerName, testTopic, pubSub, func(msg *message.Message) error {
		panic("boom")
	})
	startRouter(t, r)

	if err := pubSub.Publish(testTopic, message.NewMessage(watermill.NewUUID(), []byte("attempt"))); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("panicking handler's message did not reach the poison queue")
	}
}

func TestRouter_AddHandlerMiddleware_NotFound(t *testing.T) {
	r, err := NewRouter(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.AddHandlerMiddleware("missing"); err == nil {
		t.Error("expected error for unknown handler")
	}
}
