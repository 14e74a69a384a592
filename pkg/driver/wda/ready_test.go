package wda

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
)

func TestWaitReady(t *testing.T) {
	var calls int32
	server := mockWDAServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		ready := atomic.AddInt32(&calls, 1) >= 3
		jsonResponse(w, map[string]interface{}{
			"value": map[string]interface{}{"ready": ready, "state": "success"},
		})
	})
	defer server.Close()

	if err := WaitReady(context.Background(), newTestClient(server.URL, ""), 5*time.Second); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 status calls, got %d", got)
	}
}

func TestWaitReadyTimeout(t *testing.T) {
	server := httptest.NewServer(nil)
	url := server.URL
	server.Close()

	start := time.Now()
	err := WaitReady(context.Background(), newTestClient(url, ""), 300*time.Millisecond)
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if !errors.Is(err, core.ErrTimeout) {
		t.Errorf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("WaitReady took %v, expected to give up near the timeout", elapsed)
	}
}

func TestWaitReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(nil)
	url := server.URL
	server.Close()

	err := WaitReady(ctx, newTestClient(url, ""), time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitReadyRejectsNonPositiveTimeout(t *testing.T) {
	server := httptest.NewServer(nil)
	url := server.URL
	server.Close()

	start := time.Now()
	err := WaitReady(context.Background(), newTestClient(url, ""), 0)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("expected invalid config error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitReady retried for %v with a zero timeout", elapsed)
	}
}

func TestWaitReadyHungStatusRespectsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := mockWDAServer(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer server.Close()
	defer close(release)

	start := time.Now()
	err := WaitReady(context.Background(), newTestClient(server.URL, ""), 300*time.Millisecond)
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("WaitReady took %v against a hung server", elapsed)
	}
}
