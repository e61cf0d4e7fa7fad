package runway

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.StoreBackend != "memory" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runway.yaml")
	body := "listen_addr: \":9090\"\nstore_backend: postgres\nconcurrency: 8\nshutdown_timeout: 10s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.StoreBackend != "postgres" {
		t.Errorf("store_backend = %q", cfg.StoreBackend)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("concurrency = %d", cfg.Concurrency)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown_timeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RUNWAY_LISTEN_ADDR", ":7070")
	t.Setenv("RUNWAY_STORE_BACKEND", "redis")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("listen_addr = %q, want env override", cfg.ListenAddr)
	}
	if cfg.StoreBackend != "redis" {
		t.Errorf("store_backend = %q, want env override", cfg.StoreBackend)
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}
