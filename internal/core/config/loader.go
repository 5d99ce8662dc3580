package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Governor.PollInterval == 0 {
		cfg.Governor.PollInterval = 10 * time.Second
	}
	if cfg.Governor.Thresholds.CriticalLatencyMs == 0 {
		cfg.Governor.Thresholds.CriticalLatencyMs = 2000
	}
	if cfg.Governor.Thresholds.CriticalErrorRate == 0 {
		cfg.Governor.Thresholds.CriticalErrorRate = 0.05
	}
	if cfg.Governor.Thresholds.CriticalQueueDepth == 0 {
		cfg.Governor.Thresholds.CriticalQueueDepth = 500
	}
	if cfg.Governor.Checks.MinHealthPasses == 0 {
		cfg.Governor.Checks.MinHealthPasses = 3
	}
	if cfg.Governor.Checks.MaxP99LatencyMs == 0 {
		cfg.Governor.Checks.MaxP99LatencyMs = 500
	}
	if cfg.Governor.Checks.MaxErrorRate == 0 {
		cfg.Governor.Checks.MaxErrorRate = 0.01
	}
	if cfg.Governor.Checks.MinThroughput == 0 {
		cfg.Governor.Checks.MinThroughput = 100
	}

	for _, svc := range cfg.Services {
		if svc.ID == "" {
			return nil, fmt.Errorf("service config missing id")
		}
		if len(svc.Tiers) == 0 {
			return nil, fmt.Errorf("service %q has no fallback tiers", svc.ID)
		}
	}

	return &cfg, nil
}
