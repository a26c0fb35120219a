// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tree, err := NewSupervisorTree(nil, TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}
	if tree.logger == nil {
		t.Error("nil logger not replaced")
	}
}

func TestSupervisorTree_Lifecycle(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	engineSvc := newMockService("detection-engine")
	pipelineSvc := newMockService("nats-pipeline")
	pipelineSvc.maxFails = 2
	httpSvc := newMockService("http-server")

	tree.AddEngineService(engineSvc)
	tree.AddMessagingService(pipelineSvc)
	tree.AddAPIService(httpSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if engineSvc.startCount.Load() >= 1 && httpSvc.startCount.Load() >= 1 && pipelineSvc.startCount.Load() >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if pipelineSvc.startCount.Load() < 3 {
		t.Errorf("failing service started %d times, want restarts", pipelineSvc.startCount.Load())
	}
	if engineSvc.startCount.Load() != 1 || httpSvc.startCount.Load() != 1 {
		t.Errorf("healthy services restarted: engine %d, http %d",
			engineSvc.startCount.Load(), httpSvc.startCount.Load())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatal(err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}
