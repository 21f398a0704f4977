// Package config loads the YAML configuration shared by the dashboard
// client and the simulator backend, with environment variable overrides.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradedesk.
type Config struct {
	Server  Server  `yaml:"server"`
	Client  Client  `yaml:"client"`
	Market  Market  `yaml:"market"`
	Storage Storage `yaml:"storage"`
	Sim     Sim     `yaml:"sim"`
	Logging Logging `yaml:"logging"`
}

// Server holds the simulator backend's network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Client holds the dashboard client's endpoints.
type Client struct {
	BaseURL string `yaml:"base_url"`
	FeedURL string `yaml:"feed_url"`
}

// Market controls the client's live market-data state.
type Market struct {
	HistoryCapacity    int `yaml:"history_capacity"`     // per-symbol price history points
	RefreshIntervalSec int `yaml:"refresh_interval_sec"` // portfolio snapshot poll interval
}

// Storage holds paths for the simulator backend's persistence.
type Storage struct {
	SQLitePath  string `yaml:"sqlite_path"`
	TickLogPath string `yaml:"tick_log_path"` // optional parquet tick journal
}

// Sim holds the price simulator parameters.
type Sim struct {
	UpdateIntervalMs int     `yaml:"update_interval_ms"`
	SeedCash         float64 `yaml:"seed_cash"`
	ReplayPath       string  `yaml:"replay_path"` // replay a recorded tick journal instead of simulating
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server:  Server{Host: "127.0.0.1", Port: 8090},
		Client:  Client{BaseURL: "http://127.0.0.1:8090", FeedURL: "ws://127.0.0.1:8090/api/stream/prices"},
		Market:  Market{HistoryCapacity: 500, RefreshIntervalSec: 15},
		Storage: Storage{SQLitePath: "db/tradedesk.db"},
		Sim:     Sim{UpdateIntervalMs: 500, SeedCash: 10000},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides. An empty
// path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Market.HistoryCapacity <= 0 {
		cfg.Market.HistoryCapacity = 500
	}
	if cfg.Market.RefreshIntervalSec <= 0 {
		cfg.Market.RefreshIntervalSec = 15
	}
	if cfg.Sim.UpdateIntervalMs <= 0 {
		cfg.Sim.UpdateIntervalMs = 500
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADEDESK_BASE_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := os.Getenv("TRADEDESK_FEED_URL"); v != "" {
		cfg.Client.FeedURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("TICK_LOG_PATH"); v != "" {
		cfg.Storage.TickLogPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}
