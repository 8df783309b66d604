// Copyright 2025 Certen Protocol
//
// Configuration loading for the fair-sequencer service. Required
// settings have no defaults and must be explicitly set; Validate()
// must be called after Load() before starting the service.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the fair-sequencer coordinator.
type Config struct {
	// Server Configuration
	ListenAddr  string
	MetricsAddr string

	// Database Configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime time.Duration
	DatabaseMaxLifetime time.Duration

	// Blockchain Configuration
	SepoliaRPCURL string
	PrivateKey    string

	// Contract Addresses
	CommitRevealContractAddress string

	// Batch Timing Defaults (spec §3/§4 NewBatch defaults)
	DefaultCommitmentDuration time.Duration
	DefaultRevealDuration     time.Duration

	LogLevel string
}

// Load reads configuration from environment variables, optionally
// overlaid with a YAML file (see LoadOverlay).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvDuration("DATABASE_MAX_IDLE_TIME", 5*time.Minute),
		DatabaseMaxLifetime: getEnvDuration("DATABASE_MAX_LIFETIME", time.Hour),

		SepoliaRPCURL: getEnv("SEPOLIA_RPC_URL", ""),
		PrivateKey:    getEnv("PRIVATE_KEY", ""),

		CommitRevealContractAddress: getEnv("COMMIT_REVEAL_CONTRACT_ADDRESS", ""),

		DefaultCommitmentDuration: getEnvDuration("DEFAULT_COMMITMENT_DURATION", 30*time.Minute),
		DefaultRevealDuration:     getEnvDuration("DEFAULT_REVEAL_DURATION", 15*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyYAMLOverlay(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to apply config overlay %s: %w", path, err)
		}
	}

	return cfg, nil
}

// Validate checks that all settings required to run against the real
// chain and database are present.
func (c *Config) Validate() error {
	var errs []string

	if c.SepoliaRPCURL == "" {
		errs = append(errs, "SEPOLIA_RPC_URL is required but not set")
	}
	if c.PrivateKey == "" {
		errs = append(errs, "PRIVATE_KEY is required but not set")
	}
	if c.CommitRevealContractAddress == "" {
		errs = append(errs, "COMMIT_REVEAL_CONTRACT_ADDRESS is required but not set")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
