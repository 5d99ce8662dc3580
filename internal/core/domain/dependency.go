package domain

import "time"

// HealthStatus represents the observed health of a dependency.
type HealthStatus string

const (
	HealthHealthy    HealthStatus = "healthy"
	HealthDegraded   HealthStatus = "degraded"
	HealthUnhealthy  HealthStatus = "unhealthy"
	HealthCritical   HealthStatus = "critical"
	HealthUnknown    HealthStatus = "unknown"
	HealthRecovering HealthStatus = "recovering"
)

// DependencyType classifies what kind of collaborator a dependency is.
type DependencyType string

const (
	DependencyDatabase DependencyType = "database"
	DependencyCache    DependencyType = "cache"
	DependencyQueue    DependencyType = "queue"
	DependencyAPI      DependencyType = "api"
	DependencyStorage  DependencyType = "storage"
)

// Dependency describes an external collaborator a governed service relies on.
// Owned by the detector registry; mutated only by health-check results.
type Dependency struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           DependencyType `json:"type"`
	Endpoint       string         `json:"endpoint"`
	SLATargetMs    int64          `json:"sla_target_ms"`
	Timeout        time.Duration  `json:"timeout"`
	RetryBudget    int            `json:"retry_budget"`
	BreakerEnabled bool           `json:"breaker_enabled"`
	LastStatus     HealthStatus   `json:"last_status"`
}

// HealthCheck is a point-in-time observation of a dependency.
// Immutable once created.
type HealthCheck struct {
	DependencyID string        `json:"dependency_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Status       HealthStatus  `json:"status"`
	Latency      time.Duration `json:"latency"`
	Error        string        `json:"error,omitempty"`
}
