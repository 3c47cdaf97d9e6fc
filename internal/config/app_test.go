package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestAppConfigParseJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "server_file": "/var/lib/idjc/servers.json",
  "logging": {"level": "debug", "console": true, "file": {"enabled": true, "path": "/tmp/idjc.log"}},
  "storage": {"driver": "sqlite", "path": "/tmp/audit.db", "busy_timeout": "5s", "retention_days": 14},
  "pacing": {"rate_per_sec": 1.5, "burst": 3}
}`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerFilePath() != "/var/lib/idjc/servers.json" {
		t.Fatalf("server file = %q", cfg.ServerFilePath())
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.File.Enabled {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.RetentionDays != 14 {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Pacing.RatePerSec != 1.5 || cfg.Pacing.Burst != 3 {
		t.Fatalf("pacing = %+v", cfg.Pacing)
	}
}

func TestAppConfigParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
  console: true
storage:
  driver: none
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.ServerFilePath() != "./servers.json" {
		t.Fatalf("default server file = %q", cfg.ServerFilePath())
	}
}

func TestAppConfigRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "config.json", `{"logging": {"level": "info", "console": true}, "typo_field": 1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestAppConfigRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json", `{"logging": {"level": "info", "console": true}}{"x":1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("trailing data accepted")
	}
}
