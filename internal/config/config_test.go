package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tickvault.yaml", "Env: test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsTestEnv() {
		t.Fatalf("expected test env, got %q", cfg.Env)
	}
	if cfg.Persist.BaseURL != "http://localhost:8000" {
		t.Fatalf("Persist.BaseURL default missing, got %q", cfg.Persist.BaseURL)
	}
	if cfg.Persist.TimeoutSec != 30 || cfg.Persist.MaxRetries != 3 {
		t.Fatalf("Persist defaults wrong: %+v", cfg.Persist)
	}
	if cfg.TTL.Short != 10 || cfg.TTL.Medium != 60 || cfg.TTL.Long != 300 {
		t.Fatalf("TTL defaults wrong: %+v", cfg.TTL)
	}
	if cfg.BaseDir() != dir {
		t.Fatalf("BaseDir = %q, want %q", cfg.BaseDir(), dir)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tickvault.yaml", `
Env: dev
Persist:
  BaseURL: ${VAULT_PERSIST_URL}
  Database: candles
`)
	t.Setenv("VAULT_PERSIST_URL", "https://persist.example:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Persist.BaseURL != "https://persist.example:9000" {
		t.Fatalf("Persist.BaseURL not expanded, got %q", cfg.Persist.BaseURL)
	}
	if cfg.Persist.Database != "candles" {
		t.Fatalf("Persist.Database got %q", cfg.Persist.Database)
	}
}

func TestLoad_HydratesIngestPlan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ingest.yaml", `
batch_size: 100
targets:
  - name: kline_15m
    symbols: [BTCUSDT]
`)
	path := writeFile(t, dir, "tickvault.yaml", `
Env: test
Ingest:
  File: ingest.yaml
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	plan := cfg.Ingest.Value
	if plan == nil {
		t.Fatalf("ingest plan not hydrated")
	}
	if plan.BatchSize != 100 || len(plan.Targets) != 1 {
		t.Fatalf("ingest plan wrong: %+v", plan)
	}
	if !filepath.IsAbs(cfg.Ingest.File) {
		t.Fatalf("hydrated section should record the resolved path, got %q", cfg.Ingest.File)
	}
}

func TestPersistConf_AdapterConfig(t *testing.T) {
	p := PersistConf{BaseURL: "http://x", Database: "d", TimeoutSec: 5, MaxRetries: 2}
	got := p.AdapterConfig()
	if got.BaseURL != "http://x" || got.Database != "d" || got.MaxRetries != 2 {
		t.Fatalf("AdapterConfig mapping wrong: %+v", got)
	}
	if got.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %s, want 5s", got.Timeout)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{Env: "test"}
		cfg.Persist = PersistConf{BaseURL: "http://localhost:8000", TimeoutSec: 30}
		cfg.TTL = CacheTTL{Short: 10, Medium: 60, Long: 300}
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := base()
	cfg.Env = "staging"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected env validation error")
	}

	cfg = base()
	cfg.Persist.BaseURL = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected persist.baseUrl validation error")
	}

	cfg = base()
	cfg.Persist.MaxRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected persist.maxRetries validation error")
	}

	cfg = base()
	cfg.TTL.Short = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected ttl.short validation error")
	}
}
