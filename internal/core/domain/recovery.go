package domain

import "time"

// RecoveryPhase is one step in the ordered recovery lifecycle.
type RecoveryPhase string

const (
	PhaseDetection      RecoveryPhase = "detection"
	PhaseIsolation      RecoveryPhase = "isolation"
	PhaseFallbackActive RecoveryPhase = "fallback_active"
	PhaseDiagnosis      RecoveryPhase = "diagnosis"
	PhaseRemediation    RecoveryPhase = "remediation"
	PhaseValidation     RecoveryPhase = "validation"
	PhaseGradualRestore RecoveryPhase = "gradual_restore"
	PhaseFullRestore    RecoveryPhase = "full_restore"
	PhasePostMortem     RecoveryPhase = "post_mortem"
)

// RecoveryPhaseOrder lists the phases in lifecycle order. A plan only ever
// advances to the immediately following phase.
var RecoveryPhaseOrder = []RecoveryPhase{
	PhaseDetection,
	PhaseIsolation,
	PhaseFallbackActive,
	PhaseDiagnosis,
	PhaseRemediation,
	PhaseValidation,
	PhaseGradualRestore,
	PhaseFullRestore,
	PhasePostMortem,
}

// NextPhase returns the phase after p, or p itself when p is terminal.
func NextPhase(p RecoveryPhase) RecoveryPhase {
	for i, phase := range RecoveryPhaseOrder {
		if phase == p && i < len(RecoveryPhaseOrder)-1 {
			return RecoveryPhaseOrder[i+1]
		}
	}
	return p
}

// PhaseRank returns the position of a phase in the lifecycle order.
// Unknown phases rank as detection.
func PhaseRank(p RecoveryPhase) int {
	for i, phase := range RecoveryPhaseOrder {
		if phase == p {
			return i
		}
	}
	return 0
}

// RecoveryStep is one actionable item in a recovery plan.
type RecoveryStep struct {
	ID          string        `json:"id"`
	Phase       RecoveryPhase `json:"phase"`
	Description string        `json:"description"`
}

// RecoveryPlan tracks a failure from detection through post-mortem.
type RecoveryPlan struct {
	ID             string          `json:"id"`
	FailureEventID string          `json:"failure_event_id"`
	DependencyID   string          `json:"dependency_id"`
	Owner          string          `json:"owner"`
	Phase          RecoveryPhase   `json:"phase"`
	Steps          []RecoveryStep  `json:"steps"`
	CompletedSteps map[string]bool `json:"completed_steps"`
	CreatedAt      time.Time       `json:"created_at"`
	Aborted        bool            `json:"aborted"`
}

// RampStep is one rung of the staged traffic-restoration schedule.
type RampStep struct {
	TrafficPercent int           `json:"traffic_percent"`
	Dwell          time.Duration `json:"dwell"`
}
