package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithSourceAndRuleFields(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	data := []byte(`
server:
  httpAddr: ":8080"
redis:
  addr: "127.0.0.1:6379"
  db: 0
  prefix: "routed"
  updatesChannel: "routed_updates"
source:
  addr: "http://127.0.0.1:8848"
  namespace: "ns"
  group: "DEFAULT_GROUP"
  dataId: "routed-rules"
  pollIntervalMs: 3000
  timeoutMs: 1500
  failPolicy: "fail-closed"
  format: "yaml"
  breaker:
    enabled: true
    errorCount: 5
    retryTimeoutMs: 8000
bootstrapRules:
  - ruleId: "r1"
    match: "/api"
    methods: ["GET", "POST"]
    priority: 10
    upstream: "users-v2"
    payload:
      shadow: "false"
    enabled: true
`)

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("httpAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Redis.Prefix != "routed" {
		t.Errorf("redis prefix = %q", cfg.Redis.Prefix)
	}
	if !cfg.Source.Enabled() {
		t.Error("source should be enabled")
	}
	if cfg.Source.FailPolicy != "fail-closed" || !cfg.Source.Breaker.Enabled {
		t.Errorf("unexpected source cfg: %+v", cfg.Source)
	}

	if len(cfg.BootstrapRules) != 1 {
		t.Fatalf("bootstrap rules = %d", len(cfg.BootstrapRules))
	}
	r := cfg.BootstrapRules[0]
	if r.RuleID != "r1" || r.Upstream != "users-v2" || r.Payload["shadow"] != "false" {
		t.Errorf("unexpected rule: %+v", r)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("ROUTED_REDIS_ADDR", "10.0.0.5:6379")
	data := []byte("redis:\n  addr: \"${ROUTED_REDIS_ADDR}\"\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Redis.Addr != "10.0.0.5:6379" {
		t.Errorf("addr = %q, want expanded env value", cfg.Redis.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
