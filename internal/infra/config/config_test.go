package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stream.MaxAttempts != 5 {
		t.Fatalf("max attempts = %d, want 5", cfg.Stream.MaxAttempts)
	}
	if cfg.Stream.BackoffBase != time.Second || cfg.Stream.BackoffMax != 16*time.Second {
		t.Fatalf("backoff defaults wrong: %+v", cfg.Stream)
	}
}

func TestLoadPartialFileBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  base_url: http://example.test:9000
  ws_url: ws://example.test:9000/ws/chat
stream:
  max_attempts: 3
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL != "http://example.test:9000" {
		t.Fatalf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Stream.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.Stream.MaxAttempts)
	}
	// Unset fields come from defaults.
	if cfg.Stream.BackoffBase != time.Second {
		t.Fatalf("backoff base = %v", cfg.Stream.BackoffBase)
	}
	if cfg.Preload.Schedule != "@every 5m" {
		t.Fatalf("schedule = %q", cfg.Preload.Schedule)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvServerURL, "http://override.test")
	t.Setenv(EnvToken, "tok-123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL != "http://override.test" {
		t.Fatalf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.Token != "tok-123" {
		t.Fatalf("token = %q", cfg.Server.Token)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Stream.BackoffBase = 10 * time.Second
	cfg.Stream.BackoffMax = time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected backoff validation error")
	}

	cfg = Default()
	cfg.Logger.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected logger format error")
	}

	cfg = Default()
	cfg.Tracer.Exporter = "jaeger"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected tracer exporter error")
	}
}

func TestStateKey(t *testing.T) {
	cfg := Default()
	cfg.Server.Token = "tok"
	if cfg.StateKey() != "tok" {
		t.Fatalf("state key = %q, want token fallback", cfg.StateKey())
	}
	t.Setenv(EnvStateKey, "explicit")
	if cfg.StateKey() != "explicit" {
		t.Fatalf("state key = %q, want env override", cfg.StateKey())
	}
}
