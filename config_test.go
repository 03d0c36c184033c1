package main

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

var configVars = []string{
	"PORT", "GIN_MODE", "LOG_LEVEL", "ANALYTICS_DB", "TRACKING_ENABLED",
	"CARD_IDLE_TTL", "COOKIE_SECURE", "ADMIN_USERNAME", "ADMIN_PASSWORD",
}

// clearConfigEnv unsets every config variable for the test, including any
// picked up from a local .env, and restores them afterwards.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" || cfg.CardIdleTTL != 30*time.Minute || !cfg.TrackingEnabled {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.AdminUsername != "admin" || cfg.AdminPassword != "admin123" {
		t.Fatal("expected development admin credentials")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("CARD_IDLE_TTL", "5m")
	t.Setenv("TRACKING_ENABLED", "false")
	t.Setenv("ADMIN_PASSWORD", "hunter2")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "9000" || cfg.CardIdleTTL != 5*time.Minute || cfg.TrackingEnabled {
		t.Fatalf("env not applied %+v", cfg)
	}
	if cfg.AdminPassword != "hunter2" {
		t.Fatalf("expected admin password from env, got %q", cfg.AdminPassword)
	}
}

func TestLoadConfigError(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CARD_IDLE_TTL", "soon")
	_, err := loadConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadConfigRejectsUnknownGinMode(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GIN_MODE", "prod")

	_, err := loadConfig()
	if !errors.Is(err, ErrInvalidGinMode) {
		t.Fatalf("expected ErrInvalidGinMode, got %v", err)
	}
	if !strings.Contains(err.Error(), "parse env:") || !strings.Contains(err.Error(), `"prod"`) {
		t.Fatalf("unexpected error text %v", err)
	}
}

func TestLoadConfigAcceptsReleaseMode(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GIN_MODE", "release")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected release mode, got %q", cfg.GinMode)
	}
}

func TestSetupLoggingRejectsUnknownLevel(t *testing.T) {
	if err := setupLogging("loud"); err == nil {
		t.Fatal("expected error")
	}
	if err := setupLogging("warn"); err != nil {
		t.Fatalf("setup logging: %v", err)
	}
}
