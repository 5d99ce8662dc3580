package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FailuresDetected tracks detected failures per dependency and kind
	FailuresDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_failures_detected_total",
			Help: "Total number of classified failure events",
		},
		[]string{"dependency", "kind"},
	)

	// BreakerState tracks the current breaker state per dependency
	// (0=closed, 1=half_open, 2=open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "governor_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"dependency"},
	)

	// BreakerTransitions tracks breaker state changes per dependency
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"dependency", "to_state"},
	)

	// TierTransitions tracks fallback tier changes per service
	TierTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_tier_transitions_total",
			Help: "Total number of fallback tier transitions",
		},
		[]string{"service", "direction"},
	)

	// CurrentTierIndex tracks the active tier index per service
	CurrentTierIndex = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "governor_current_tier_index",
			Help: "Index of the currently active fallback tier",
		},
		[]string{"service"},
	)

	// DegradationLevel tracks the global degradation level rank
	DegradationLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "governor_degradation_level",
			Help: "Current degradation level rank (0=normal)",
		},
	)

	// RecoveryValidations tracks recovery validation runs by outcome
	RecoveryValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_recovery_validations_total",
			Help: "Total number of recovery validation runs",
		},
		[]string{"dependency", "outcome"},
	)

	// HealthChecks tracks health checks by resulting status
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_health_checks_total",
			Help: "Total number of dependency health checks",
		},
		[]string{"dependency", "status"},
	)
)
