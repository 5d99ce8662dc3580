package domain

import "time"

// TierKind names the role a tier plays in a fallback chain.
type TierKind string

const (
	TierPrimary        TierKind = "primary"
	TierSecondary      TierKind = "secondary"
	TierCache          TierKind = "cache"
	TierDegraded       TierKind = "degraded"
	TierStaticFallback TierKind = "static_fallback"
)

// TierKindProperties holds the static attributes of a tier kind.
// Approval-gated kinds block automatic transitions out of them.
type TierKindProperties struct {
	QualityPercent    int
	LatencyMultiplier float64
	RequiresApproval  bool
}

// TierKindTable maps each tier kind to its default properties.
var TierKindTable = map[TierKind]TierKindProperties{
	TierPrimary:        {100, 1.0, false},
	TierSecondary:      {90, 1.5, false},
	TierCache:          {80, 0.5, false},
	TierDegraded:       {50, 2.0, true},
	TierStaticFallback: {20, 0.1, true},
}

// Tier is one rung in a service's ordered fallback chain.
type Tier struct {
	ID                string   `json:"id"`
	Kind              TierKind `json:"kind"`
	Provider          string   `json:"provider"`
	QualityPercent    int      `json:"quality_percent"`
	LatencyMultiplier float64  `json:"latency_multiplier"`
	RequiresApproval  bool     `json:"requires_approval"`
}

// FallbackConfig holds a service's fallback chain and its position in it.
type FallbackConfig struct {
	ServiceID         string `json:"service_id"`
	Tiers             []Tier `json:"tiers"`
	CurrentIndex      int    `json:"current_index"`
	AutoFailover      bool   `json:"auto_failover"`
	AutoRecovery      bool   `json:"auto_recovery"`
	FailureThreshold  int    `json:"failure_threshold"`
	RecoveryThreshold int    `json:"recovery_threshold"`
}

// CurrentTier returns the tier the service is currently serving from.
func (c *FallbackConfig) CurrentTier() Tier {
	return c.Tiers[c.CurrentIndex]
}

// AtPrimary reports whether the service is on tier 0.
func (c *FallbackConfig) AtPrimary() bool {
	return c.CurrentIndex == 0
}

// AtLowestTier reports whether the service has no tier left to fall to.
func (c *FallbackConfig) AtLowestTier() bool {
	return c.CurrentIndex >= len(c.Tiers)-1
}

// TierTransition records one tier change for a service.
type TierTransition struct {
	ServiceID    string    `json:"service_id"`
	FromTier     string    `json:"from_tier"`
	ToTier       string    `json:"to_tier"`
	TriggerEvent string    `json:"trigger_event,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	QualityDelta int       `json:"quality_delta"`
}
