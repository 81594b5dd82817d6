package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestWatch(t *testing.T) {
	path := writeConfig(t, "guard:\n  concurrency: 4\n")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, logger)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is skipped.
	if err := os.WriteFile(path, []byte("server:\n  log_level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-changes:
		t.Fatalf("invalid config delivered: %+v", c.Server)
	case <-time.After(600 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("guard:\n  concurrency: 16\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-changes:
		if c.Guard.Concurrency != 16 {
			t.Errorf("concurrency = %d, want 16", c.Guard.Concurrency)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after valid edit")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := Watch(context.Background(), "/nonexistent/dir/deckguard.yaml", func(*Config) {}, logger)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
