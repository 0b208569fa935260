// Package config loads macross configuration from YAML, an optional .env
// file, and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"macross/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Limits   Limits         `yaml:"limits"`
	Metrics  Metrics        `yaml:"metrics"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and the market-data endpoint.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FetchConfig controls the daily-bar fetcher.
type FetchConfig struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	EndDate         string   `yaml:"end_date"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxAttempts     int      `yaml:"max_attempts"`
}

// OptimizeConfig holds the default search grid.
type OptimizeConfig struct {
	Short   domain.IntRange `yaml:"short"`
	Long    domain.IntRange `yaml:"long"`
	Workers int             `yaml:"workers"`
}

// Limits bounds what a single request may ask for.
type Limits struct {
	MaxTrials int `yaml:"max_trials"`
	MaxWindow int `yaml:"max_window"`
}

// Metrics configures the Prometheus listener.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when a field is left unset. The
// grid mirrors range(1, 50) x range(10, 250).
func Default() *Config {
	return &Config{
		Storage: Storage{DataDir: "data", SQLitePath: "data/macross.db"},
		Server:  Server{Host: "127.0.0.1", Port: 8080, GRPCPort: 9090},
		Logging: Logging{Level: "info", Format: "text"},
		Alpaca:  Alpaca{Feed: "iex"},
		Fetch: FetchConfig{
			StartDate:       "2016-01-01",
			RateLimitPerMin: 200,
			MaxAttempts:     5,
		},
		Optimize: OptimizeConfig{
			Short:   domain.IntRange{Start: 1, Stop: 50, Step: 1},
			Long:    domain.IntRange{Start: 10, Stop: 250, Step: 1},
			Workers: 4,
		},
		Limits: Limits{MaxTrials: 20000, MaxWindow: 1000},
	}
}

// Load reads the YAML file at path over Default(), loads an optional .env
// file next to the working directory, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields other packages rely on.
func (c *Config) Validate() error {
	if err := c.Optimize.Short.Validate(); err != nil {
		return fmt.Errorf("optimize.short: %w", err)
	}
	if err := c.Optimize.Long.Validate(); err != nil {
		return fmt.Errorf("optimize.long: %w", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	return nil
}

// applyEnvOverrides overrides fields from well-known environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("OPTIMIZE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Optimize.Workers = n
		}
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
