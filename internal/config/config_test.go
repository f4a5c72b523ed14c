package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadParsesYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: "9090"
quiz:
  attempt_duration: 15m
auth:
  allowed_email_suffix: "@example.edu"
  jwt_secret: from-file
admins:
  - lead@example.edu
timers:
  refresh_schedule: "@every 30s"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORTAL_JWT_SECRET", "from-env")
	t.Setenv("PORTAL_ADMINS", "a@example.edu, b@example.edu,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Auth.AllowedEmailSuffix != "@example.edu" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("env should override jwt secret, got %q", cfg.Auth.JWTSecret)
	}
	if len(cfg.Admins) != 2 || cfg.Admins[1] != "b@example.edu" {
		t.Fatalf("admins from env not applied: %v", cfg.Admins)
	}
	if d := TTLDuration(cfg.Quiz.AttemptDuration, time.Minute); d != 15*time.Minute {
		t.Fatalf("expected 15m attempt, got %v", d)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("PORTAL_REDIS_ADDR", "localhost:6380")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Fatalf("expected redis addr from env, got %q", cfg.Redis.Addr)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if d := TTLDuration("", time.Second); d != time.Second {
		t.Fatalf("empty should fall back")
	}
	if d := TTLDuration("soon", time.Second); d != time.Second {
		t.Fatalf("invalid should fall back")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PORTAL_TEST_KEY=file\nPORTAL_TEST_OTHER=file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("PORTAL_TEST_KEY", "process")
	t.Setenv("PORTAL_TEST_OTHER", "")
	os.Unsetenv("PORTAL_TEST_OTHER")

	LoadDotEnv(path)
	if got := os.Getenv("PORTAL_TEST_KEY"); got != "process" {
		t.Fatalf("existing env overwritten: %q", got)
	}
	if got := os.Getenv("PORTAL_TEST_OTHER"); got != "file" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
