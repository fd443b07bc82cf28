// Package config loads the bidding engine's configuration from a YAML file,
// with environment variables overriding individual fields for container
// deployment. No options beyond what's listed here affect behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the bidding engine server.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Hot         HotStoreConfig    `yaml:"hot"`
	Cold        ColdStoreConfig   `yaml:"cold"`
	Bid         BidConfig         `yaml:"bid"`
	Auction     AuctionConfig     `yaml:"auction"`
	Finalize    FinalizeConfig    `yaml:"finalization"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds HTTP/websocket server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HotStoreConfig holds the Redis-backed hot-state connection.
type HotStoreConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// ColdStoreConfig holds the Postgres cold-store connection.
type ColdStoreConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection string.
func (c ColdStoreConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// BidConfig holds bid-admission tuning.
type BidConfig struct {
	RateLimitPerSec int           `yaml:"rate_limit_per_sec"`
	SoftDeadline    time.Duration `yaml:"soft_deadline"`
}

// AuctionConfig holds anti-snipe and retention tuning.
type AuctionConfig struct {
	ExtensionThresholdSec int `yaml:"extension_threshold_sec"`
	ExtensionDurationSec  int `yaml:"extension_duration_sec"`
	RetentionSec          int `yaml:"retention_sec"`
}

// FinalizeConfig holds finalization job retry tuning.
type FinalizeConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// LogConfig holds structured-logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration with every default from spec.md §6.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ShutdownTimeout: 30 * time.Second,
		},
		Hot: HotStoreConfig{
			Addr: "localhost:6379",
		},
		Cold: ColdStoreConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Bid: BidConfig{
			RateLimitPerSec: 1,
			SoftDeadline:    2 * time.Second,
		},
		Auction: AuctionConfig{
			ExtensionThresholdSec: 30,
			ExtensionDurationSec:  30,
			RetentionSec:          86400,
		},
		Finalize: FinalizeConfig{
			MaxAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML configuration file, falling back to defaults for any
// unset field, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOT_ADDR"); v != "" {
		cfg.Hot.Addr = v
	}
	if v := os.Getenv("HOT_PASSWORD"); v != "" {
		cfg.Hot.Password = v
	}
	if v := os.Getenv("COLD_DSN_HOST"); v != "" {
		cfg.Cold.Host = v
	}
	if v := os.Getenv("COLD_DSN_PASSWORD"); v != "" {
		cfg.Cold.Password = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
