package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.HTTP.Port)
	}
	if cfg.Model.Path != "models/iris_tree.json" {
		t.Fatalf("unexpected model path %q", cfg.Model.Path)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
env: prod
http:
  port: 9000
  timeout: 5s
model:
  path: /srv/model.json
  watch: true
log:
  level: debug
history:
  lru_size: 16
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IRIS_PORT", "9100")
	t.Setenv("IRIS_DB_PATH", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "prod" {
		t.Errorf("env: got %q", cfg.Env)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("port: env override not applied, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("timeout: got %s", cfg.HTTP.Timeout)
	}
	if cfg.Model.Path != "/srv/model.json" || !cfg.Model.Watch {
		t.Errorf("model: got %+v", cfg.Model)
	}
	if cfg.Database.Path != "" {
		t.Errorf("database path should be disabled by empty env, got %q", cfg.Database.Path)
	}
	if cfg.History.LRUSize != 16 {
		t.Errorf("history: got %d", cfg.History.LRUSize)
	}
	if cfg.HTTP.MaxBodyBytes != 1<<20 {
		t.Errorf("defaults should survive partial files, got %d", cfg.HTTP.MaxBodyBytes)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 70000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected invalid port error")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http: [port"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
