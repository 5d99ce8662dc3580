package degrade

import (
	"sync"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/metrics"
)

// DefaultRules returns the standard level to feature-set mapping.
func DefaultRules() map[domain.DegradationLevel]domain.DegradationRule {
	return map[domain.DegradationLevel]domain.DegradationRule{
		domain.LevelNormal: {
			Preserved: []string{"checkout", "search", "recommendations", "analytics", "exports"},
			SLAImpact: "none",
		},
		domain.LevelDegradedL1: {
			Preserved: []string{"checkout", "search"},
			Reduced:   []string{"recommendations"},
			Disabled:  []string{"analytics"},
			SLAImpact: "non-core latency up to 2x",
		},
		domain.LevelDegradedL2: {
			Preserved: []string{"checkout"},
			Reduced:   []string{"search"},
			Disabled:  []string{"recommendations", "analytics", "exports"},
			SLAImpact: "core flows only, elevated latency",
			Notify:    true,
		},
		domain.LevelDegradedL3: {
			Reduced:   []string{"checkout"},
			Disabled:  []string{"search", "recommendations", "analytics", "exports"},
			SLAImpact: "best-effort core flows",
			Notify:    true,
		},
		domain.LevelOffline: {
			Disabled:  []string{"checkout", "search", "recommendations", "analytics", "exports"},
			SLAImpact: "service unavailable",
			Notify:    true,
		},
	}
}

// QualityTradeoffs describes the user-visible impact of the active level.
type QualityTradeoffs struct {
	Level               domain.DegradationLevel       `json:"level"`
	FeatureAvailability map[string]domain.FeatureFlag `json:"feature_availability"`
	SLAImpact           string                        `json:"sla_impact"`
	NotifyUsers         bool                          `json:"notify_users"`
}

// Controller maps the global degradation level to feature availability.
// The active config is replaced wholesale on every level change.
type Controller struct {
	mu      sync.RWMutex
	rules   map[domain.DegradationLevel]domain.DegradationRule
	current domain.DegradedModeConfig
	history []domain.ModeChange
}

// New creates a controller at the normal level with every feature the rules
// know about enabled.
func New(rules map[domain.DegradationLevel]domain.DegradationRule) *Controller {
	features := make(map[string]domain.FeatureFlag)
	for _, rule := range rules {
		for _, f := range rule.Preserved {
			features[f] = domain.FlagEnabled
		}
		for _, f := range rule.Reduced {
			if _, ok := features[f]; !ok {
				features[f] = domain.FlagEnabled
			}
		}
		for _, f := range rule.Disabled {
			if _, ok := features[f]; !ok {
				features[f] = domain.FlagEnabled
			}
		}
	}

	return &Controller{
		rules: rules,
		current: domain.DegradedModeConfig{
			Level:       domain.LevelNormal,
			Features:    features,
			ActivatedAt: time.Now(),
		},
	}
}

// SetLevel activates a degradation level in one atomic update. Features the
// level's rule does not mention keep their prior flag.
func (c *Controller) SetLevel(level domain.DegradationLevel, reason string) domain.DegradedModeConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.rules[level]

	features := make(map[string]domain.FeatureFlag, len(c.current.Features))
	for f, flag := range c.current.Features {
		features[f] = flag
	}
	for _, f := range rule.Preserved {
		features[f] = domain.FlagEnabled
	}
	for _, f := range rule.Reduced {
		features[f] = domain.FlagDegraded
	}
	for _, f := range rule.Disabled {
		features[f] = domain.FlagDisabled
	}

	c.current = domain.DegradedModeConfig{
		Level:       level,
		Features:    features,
		ActivatedAt: time.Now(),
		Reason:      reason,
	}
	c.history = append(c.history, domain.ModeChange{
		Level:     level,
		Reason:    reason,
		Timestamp: c.current.ActivatedAt,
	})

	metrics.DegradationLevel.Set(float64(domain.LevelRank(level)))
	return c.snapshotLocked()
}

// EnsureAtLeast raises the level to floor if the current level is lower.
// Returns the active config either way.
func (c *Controller) EnsureAtLeast(floor domain.DegradationLevel, reason string) domain.DegradedModeConfig {
	c.mu.RLock()
	current := c.current.Level
	c.mu.RUnlock()

	if domain.LevelRank(current) >= domain.LevelRank(floor) {
		return c.Current()
	}
	return c.SetLevel(floor, reason)
}

// Level returns the active degradation level.
func (c *Controller) Level() domain.DegradationLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Level
}

// Current returns a copy of the active config.
func (c *Controller) Current() domain.DegradedModeConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() domain.DegradedModeConfig {
	cfg := c.current
	cfg.Features = make(map[string]domain.FeatureFlag, len(c.current.Features))
	for f, flag := range c.current.Features {
		cfg.Features[f] = flag
	}
	return cfg
}

// IsFeatureAvailable reports whether a feature admits any traffic. Features
// no rule has ever mentioned are treated as enabled.
func (c *Controller) IsFeatureAvailable(feature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	flag, ok := c.current.Features[feature]
	if !ok {
		return true
	}
	return domain.FlagTrafficPercent[flag] > 0
}

// QualityTradeoffs reports the current level with its feature map and impact.
func (c *Controller) QualityTradeoffs() QualityTradeoffs {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rule := c.rules[c.current.Level]
	snapshot := c.snapshotLocked()
	return QualityTradeoffs{
		Level:               snapshot.Level,
		FeatureAvailability: snapshot.Features,
		SLAImpact:           rule.SLAImpact,
		NotifyUsers:         rule.Notify,
	}
}

// History returns the append-only mode change log.
func (c *Controller) History() []domain.ModeChange {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.ModeChange, len(c.history))
	copy(out, c.history)
	return out
}
