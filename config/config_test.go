package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btrekkie/file-builder/operation"
)

func TestLoadWithNoFilesReturnsDefaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("Load() = %+v, want %+v", cfg, want)
	}
}

func TestLoadMissingFilesAreNotErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, ".env"), filepath.Join(dir, "filebuild.yaml"))
	if err != nil {
		t.Fatalf("Load with missing files should not error, got: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "filebuild.yaml")
	content := "log_level: debug\ncache_dir: /tmp/cache\ndefault_comparison: HASH\ncolorize: false\n"
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load("", yamlPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.CacheDir != "/tmp/cache" {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, "/tmp/cache")
	}
	if cfg.DefaultComparison != operation.ComparisonHash {
		t.Errorf("DefaultComparison = %q, want %q", cfg.DefaultComparison, operation.ComparisonHash)
	}
	if cfg.Colorize {
		t.Error("expected colorize: false to be honored")
	}
}

func TestLoadEnvOverridesDefaultsAndDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("FILEBUILD_LOG_LEVEL=warn\nFILEBUILD_CACHE_DIR=/from/dotenv\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("FILEBUILD_CACHE_DIR", "/from/environ")

	cfg, err := Load(envPath, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q (from dotenv)", cfg.LogLevel, "warn")
	}
	if cfg.CacheDir != "/from/environ" {
		t.Errorf("CacheDir = %q, want %q (process environment should win over dotenv)", cfg.CacheDir, "/from/environ")
	}
}
