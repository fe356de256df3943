package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Capacity != DefaultCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultCapacity, cfg.Cache.Capacity)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.Cache.Group != "" {
		t.Errorf("Expected empty metrics group, got %q", cfg.Cache.Group)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	yaml := "log_level: debug\ncache:\n  capacity: 500\n  group: editor\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Capacity != 500 {
		t.Errorf("Expected capacity 500, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.Group != "editor" {
		t.Errorf("Expected group editor, got %q", cfg.Cache.Group)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.LogLevel)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("APP_CACHE_CAPACITY", "123")
	t.Setenv("APP_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Capacity != 123 {
		t.Errorf("Expected env capacity 123, got %d", cfg.Cache.Capacity)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected env log level warn, got %q", cfg.LogLevel)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	cfg := &Config{LogLevel: "error"}
	if got := NewLogger(cfg).GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("Expected error level, got %s", got)
	}

	cfg = &Config{LogLevel: "not-a-level"}
	if got := NewLogger(cfg).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("Expected fallback to info for invalid level, got %s", got)
	}
}
