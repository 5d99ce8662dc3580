package domain

import "time"

// DegradationLevel is the system-wide setting controlling feature availability.
type DegradationLevel string

const (
	LevelNormal     DegradationLevel = "normal"
	LevelDegradedL1 DegradationLevel = "degraded_l1"
	LevelDegradedL2 DegradationLevel = "degraded_l2"
	LevelDegradedL3 DegradationLevel = "degraded_l3"
	LevelOffline    DegradationLevel = "offline"
)

// DegradationLevelOrder lists levels from least to most degraded.
var DegradationLevelOrder = []DegradationLevel{
	LevelNormal,
	LevelDegradedL1,
	LevelDegradedL2,
	LevelDegradedL3,
	LevelOffline,
}

// LevelRank returns the position of a level in the degradation order.
// Unknown levels rank as normal.
func LevelRank(l DegradationLevel) int {
	for i, level := range DegradationLevelOrder {
		if level == l {
			return i
		}
	}
	return 0
}

// FeatureFlag is the resolved availability state of a feature.
type FeatureFlag string

const (
	FlagEnabled  FeatureFlag = "enabled"
	FlagDegraded FeatureFlag = "degraded"
	FlagCanary   FeatureFlag = "canary"
	FlagDisabled FeatureFlag = "disabled"
)

// FlagTrafficPercent maps a flag to the share of traffic it admits.
// A feature is available iff its flag admits any traffic.
var FlagTrafficPercent = map[FeatureFlag]int{
	FlagEnabled:  100,
	FlagDegraded: 50,
	FlagCanary:   10,
	FlagDisabled: 0,
}

// DegradationRule fixes which features a level preserves, reduces or disables.
type DegradationRule struct {
	Preserved []string
	Reduced   []string
	Disabled  []string
	SLAImpact string
	Notify    bool
}

// DegradedModeConfig is the active degradation state. Replaced wholesale on
// every level change, never partially mutated.
type DegradedModeConfig struct {
	Level       DegradationLevel       `json:"level"`
	Features    map[string]FeatureFlag `json:"features"`
	ActivatedAt time.Time              `json:"activated_at"`
	Reason      string                 `json:"reason"`
}

// ModeChange records one degradation level change.
type ModeChange struct {
	Level     DegradationLevel `json:"level"`
	Reason    string           `json:"reason"`
	Timestamp time.Time        `json:"timestamp"`
}
