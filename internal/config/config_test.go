package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "macross.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// clearEnv unsets every variable applyEnvOverrides reads for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR", "OPTIMIZE_WORKERS",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/macross/data"
  sqlite_path: "/tmp/macross/macross.db"
server:
  host: "0.0.0.0"
  port: 8081
  grpc_port: 9091
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  feed: "sip"
logging:
  level: "debug"
  format: "json"
fetch:
  symbols: ["AAPL", "MSFT"]
  start_date: "2018-01-01"
  rate_limit_per_min: 100
optimize:
  short: {start: 2, stop: 10, step: 2}
  long: {start: 20, stop: 100}
  workers: 8
limits:
  max_trials: 500
metrics:
  addr: ":2112"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/macross/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/macross/data")
	}
	if cfg.Server.Port != 8081 || cfg.Server.GRPCPort != 9091 {
		t.Errorf("Server ports = %d/%d, want 8081/9091", cfg.Server.Port, cfg.Server.GRPCPort)
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if len(cfg.Fetch.Symbols) != 2 || cfg.Fetch.Symbols[1] != "MSFT" {
		t.Errorf("Fetch.Symbols = %v", cfg.Fetch.Symbols)
	}
	// Unset fetch fields keep their defaults.
	if cfg.Fetch.MaxAttempts != 5 {
		t.Errorf("Fetch.MaxAttempts = %d, want default 5", cfg.Fetch.MaxAttempts)
	}

	shorts := cfg.Optimize.Short.Values()
	if len(shorts) != 4 || shorts[0] != 2 || shorts[3] != 8 {
		t.Errorf("Optimize.Short.Values() = %v, want [2 4 6 8]", shorts)
	}
	if cfg.Optimize.Long.Step != 1 {
		t.Errorf("Optimize.Long.Step = %d, want default 1", cfg.Optimize.Long.Step)
	}
	if cfg.Optimize.Workers != 8 {
		t.Errorf("Optimize.Workers = %d, want 8", cfg.Optimize.Workers)
	}
	if cfg.Limits.MaxTrials != 500 || cfg.Limits.MaxWindow != 1000 {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
	if cfg.Metrics.Addr != ":2112" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("OPTIMIZE_WORKERS", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Optimize.Workers != 12 {
		t.Errorf("Optimize.Workers = %d, want 12", cfg.Optimize.Workers)
	}

	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (APCA override wins)", cfg.Alpaca.APIKey, "sdk-key")
	}
}

func TestLoadRejectsEmptyGrid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
optimize:
  short: {start: 10, stop: 10}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted an empty short range")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() of a missing file returned nil error")
	}
}
