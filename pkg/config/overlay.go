// Copyright 2025 Certen Protocol
//
// Optional YAML configuration overlay, grounded on the teacher's
// environment-variable-substituted YAML loader. Values present in the
// file override the environment-derived defaults; absent fields are
// left untouched.

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type overlay struct {
	Server struct {
		ListenAddr  string `yaml:"listen_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Chain struct {
		RPCURL               string `yaml:"rpc_url"`
		CommitRevealContract string `yaml:"commit_reveal_contract"`
	} `yaml:"chain"`
	LogLevel string `yaml:"log_level"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} or ${VAR_NAME:-default} with
// the environment's value, falling back to the inline default.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if v := os.Getenv(groups[1]); v != "" {
			return v
		}
		if len(groups) >= 4 {
			return groups[3]
		}
		return ""
	})
}

// applyYAMLOverlay reads a YAML file, substitutes ${VAR} references
// against the environment, and merges non-empty fields onto cfg.
func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var ov overlay
	if err := yaml.Unmarshal([]byte(expanded), &ov); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if ov.Server.ListenAddr != "" {
		cfg.ListenAddr = ov.Server.ListenAddr
	}
	if ov.Server.MetricsAddr != "" {
		cfg.MetricsAddr = ov.Server.MetricsAddr
	}
	if ov.Database.URL != "" {
		cfg.DatabaseURL = ov.Database.URL
	}
	if ov.Chain.RPCURL != "" {
		cfg.SepoliaRPCURL = ov.Chain.RPCURL
	}
	if ov.Chain.CommitRevealContract != "" {
		cfg.CommitRevealContractAddress = ov.Chain.CommitRevealContract
	}
	if ov.LogLevel != "" {
		cfg.LogLevel = ov.LogLevel
	}

	return nil
}
