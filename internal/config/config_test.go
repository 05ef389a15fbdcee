package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxParallel != 8 {
		t.Errorf("MaxParallel = %d, want 8", cfg.MaxParallel)
	}
	if cfg.RetryLimit != 3 {
		t.Errorf("RetryLimit = %d, want 3", cfg.RetryLimit)
	}
	if cfg.Claude.Binary != "claude" {
		t.Errorf("Claude.Binary = %q, want claude", cfg.Claude.Binary)
	}
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "max_parallel: 2\nclaude:\n  model: opus\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want 2", cfg.MaxParallel)
	}
	if cfg.Claude.Model != "opus" {
		t.Errorf("Claude.Model = %q, want opus", cfg.Claude.Model)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NGOCLAW_MAX_PARALLEL", "16")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxParallel != 16 {
		t.Errorf("MaxParallel = %d, want 16 from env override", cfg.MaxParallel)
	}
}

func TestBootstrapIsIdempotentAndNeverOverwrites(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	logger := zap.NewNop()
	if err := Bootstrap(logger); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	configPath := filepath.Join(HomeDir(), "config.yaml")
	custom := []byte("# user customized\nmax_parallel: 99\n")
	if err := os.WriteFile(configPath, custom, 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	if err := Bootstrap(logger); err != nil {
		t.Fatalf("Bootstrap() second call error = %v", err)
	}

	got, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if string(got) != string(custom) {
		t.Errorf("Bootstrap overwrote user config.yaml")
	}

	for _, sub := range []string{"state", "workflows", "logs"} {
		if fi, err := os.Stat(filepath.Join(HomeDir(), sub)); err != nil || !fi.IsDir() {
			t.Errorf("expected directory %s to exist", sub)
		}
	}
}
