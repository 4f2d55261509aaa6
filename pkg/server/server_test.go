package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/introlix/explorer/pkg/config"
)

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("Expected an error without a config")
	}
}

func TestNewWithoutWatch(t *testing.T) {
	srv, err := New(Options{Config: config.Default()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if srv.watcher != nil {
		t.Error("Expected no watcher without Watch")
	}
}

func TestNewWithWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "explorer.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv, err := New(Options{Config: config.Default(), ConfigPath: path, Watch: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if srv.watcher == nil {
		t.Fatal("Expected a watcher")
	}
	if err := srv.watcher.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestScheduleReloadCoalesces(t *testing.T) {
	srv, err := New(Options{Config: config.Default()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first := config.Default()
	second := config.Default()
	second.Server.Port = 9191

	srv.scheduleReload(first)
	srv.scheduleReload(second)

	if pending := len(srv.reloadChan); pending != 1 {
		t.Errorf("Expected one pending reload, got %d", pending)
	}
	srv.mu.RLock()
	got := srv.nextCfg
	srv.mu.RUnlock()
	if got != second {
		t.Error("Expected the latest config to win")
	}
}
