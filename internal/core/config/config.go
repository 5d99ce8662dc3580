package config

import (
	"time"

	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/breaker"
	"github.com/vietddude/governor/internal/governance/detector"
	"github.com/vietddude/governor/internal/governance/recovery"
	redisclient "github.com/vietddude/governor/internal/infra/redis"
	"github.com/vietddude/governor/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Governor GovernorConfig     `yaml:"governor"`
	Services []ServiceConfig    `yaml:"services"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// GovernorConfig holds the control-loop and threshold settings.
type GovernorConfig struct {
	PollInterval     time.Duration       `yaml:"poll_interval"`
	Thresholds       detector.Thresholds `yaml:"thresholds"`
	Checks           recovery.Checks     `yaml:"checks"`
	FailureThreshold int                 `yaml:"failure_threshold"`
	SuccessThreshold int                 `yaml:"success_threshold"`
	OpenTimeout      time.Duration       `yaml:"open_timeout"`
}

// BreakerConfig converts the governor settings into a breaker config.
func (g GovernorConfig) BreakerConfig() breaker.Config {
	cfg := breaker.DefaultConfig()
	if g.FailureThreshold > 0 {
		cfg.FailureThreshold = g.FailureThreshold
	}
	if g.SuccessThreshold > 0 {
		cfg.SuccessThreshold = g.SuccessThreshold
	}
	if g.OpenTimeout > 0 {
		cfg.OpenTimeout = g.OpenTimeout
	}
	return cfg
}

// ServiceConfig holds the governed settings for one service.
type ServiceConfig struct {
	ID           string             `yaml:"id"`
	Dependencies []DependencyConfig `yaml:"dependencies"`
	Tiers        []TierConfig       `yaml:"tiers"`
	AutoFailover bool               `yaml:"auto_failover"`
	AutoRecovery bool               `yaml:"auto_recovery"`
}

// DependencyConfig holds settings for one dependency of a service.
type DependencyConfig struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Type           string        `yaml:"type"`
	Endpoint       string        `yaml:"endpoint"`
	SLATargetMs    int64         `yaml:"sla_target_ms"`
	Timeout        time.Duration `yaml:"timeout"`
	RetryBudget    int           `yaml:"retry_budget"`
	BreakerEnabled bool          `yaml:"breaker_enabled"`
}

// Dependency converts the config into a domain dependency.
func (d DependencyConfig) Dependency() domain.Dependency {
	return domain.Dependency{
		ID:             d.ID,
		Name:           d.Name,
		Type:           domain.DependencyType(d.Type),
		Endpoint:       d.Endpoint,
		SLATargetMs:    d.SLATargetMs,
		Timeout:        d.Timeout,
		RetryBudget:    d.RetryBudget,
		BreakerEnabled: d.BreakerEnabled,
		LastStatus:     domain.HealthUnknown,
	}
}

// TierConfig holds one rung of a service's fallback chain.
type TierConfig struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Provider string `yaml:"provider"`
	// Quality overrides the kind's default quality percentage when > 0.
	Quality int `yaml:"quality"`
}

// Tier converts the config into a domain tier, filling defaults from the
// tier kind table.
func (t TierConfig) Tier() domain.Tier {
	kind := domain.TierKind(t.Kind)
	props, ok := domain.TierKindTable[kind]
	if !ok {
		kind = domain.TierSecondary
		props = domain.TierKindTable[kind]
	}

	tier := domain.Tier{
		ID:                t.ID,
		Kind:              kind,
		Provider:          t.Provider,
		QualityPercent:    props.QualityPercent,
		LatencyMultiplier: props.LatencyMultiplier,
		RequiresApproval:  props.RequiresApproval,
	}
	if t.Quality > 0 {
		tier.QualityPercent = t.Quality
	}
	return tier
}
