package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandcastle-dev/sandcastle/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.AnnouncePort = false
	cfg.Server.HeartbeatSecs = 0
	cfg.Store.DataDir = dir
	cfg.Store.Path = filepath.Join(dir, "test.db")
	cfg.Git.Command = "git"
	cfg.Git.TimeoutSeconds = 10
	cfg.Sessions.TranscriptsDir = filepath.Join(dir, "transcripts")
	cfg.Subscriptions.MaxLive = 3
	return cfg
}

func TestApp_StartAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(cfg, "test", logger)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	// Wait for the HTTP server to come up.
	var port int
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if port = a.Port(); port != 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if port == 0 {
		t.Fatal("server did not bind a port")
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/health", port))
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}

func TestApp_DoubleStartRejected(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(cfg, "test", logger)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && a.Port() == 0 {
		time.Sleep(20 * time.Millisecond)
	}

	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start should fail while running")
	}

	cancel()
	<-done
}
