package domain

import "time"

// FailureKind classifies a detected failure.
type FailureKind string

const (
	FailureHighLatency      FailureKind = "high_latency"
	FailureErrorSpike       FailureKind = "error_spike"
	FailureCapacityExceeded FailureKind = "capacity_exceeded"
	FailureDependencyDown   FailureKind = "dependency_down"
	FailureTimeout          FailureKind = "timeout"
	FailureRateLimited      FailureKind = "rate_limited"
	FailureNetworkPartition FailureKind = "network_partition"
	FailureDataCorruption   FailureKind = "data_corruption"
	FailureConfigError      FailureKind = "config_error"
)

// Severity ranks how bad a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FailureKindProperties holds the static attributes of a failure kind.
type FailureKindProperties struct {
	DefaultSeverity            Severity
	Description                string
	RequiresManualIntervention bool
}

// FailureKindTable maps each kind to its properties. Kinds flagged with
// RequiresManualIntervention must never be auto-resolved.
var FailureKindTable = map[FailureKind]FailureKindProperties{
	FailureHighLatency:      {SeverityHigh, "latency above critical threshold", false},
	FailureErrorSpike:       {SeverityCritical, "error rate above critical threshold", false},
	FailureCapacityExceeded: {SeverityHigh, "queue depth above critical threshold", false},
	FailureDependencyDown:   {SeverityCritical, "dependency unreachable", false},
	FailureTimeout:          {SeverityMedium, "requests timing out", false},
	FailureRateLimited:      {SeverityMedium, "dependency rate limiting this client", false},
	FailureNetworkPartition: {SeverityCritical, "network partition detected", false},
	FailureDataCorruption:   {SeverityCritical, "data corruption detected", true},
	FailureConfigError:      {SeverityHigh, "configuration error", false},
}

// EscalationType names conditions that require mandatory human routing.
type EscalationType string

const (
	EscalationLegalThreat    EscalationType = "legal_threat"
	EscalationSafetyConcern  EscalationType = "safety_concern"
	EscalationDataCorruption EscalationType = "data_corruption"
)

// RequiresManualIntervention reports whether an escalation must be routed to
// a human and never auto-resolved.
func (e EscalationType) RequiresManualIntervention() bool {
	switch e {
	case EscalationLegalThreat, EscalationSafetyConcern, EscalationDataCorruption:
		return true
	}
	return false
}

// MetricsSnapshot captures the metric sample a failure was classified from.
type MetricsSnapshot struct {
	ErrorRate  float64 `json:"error_rate"`
	LatencyMs  float64 `json:"latency_ms"`
	QueueDepth int     `json:"queue_depth"`
}

// FailureEvent is a detected failure. Created by the detector, referenced by
// exactly one tier transition and at most one recovery plan.
type FailureEvent struct {
	ID           string          `json:"id"`
	DependencyID string          `json:"dependency_id"`
	Kind         FailureKind     `json:"kind"`
	Severity     Severity        `json:"severity"`
	DetectedAt   time.Time       `json:"detected_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	Metrics      MetricsSnapshot `json:"metrics"`
}

// Resolved reports whether the event's owning recovery plan completed.
func (f *FailureEvent) Resolved() bool {
	return f.ResolvedAt != nil
}
