package recovery

import (
	"time"

	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/metrics"
)

// rollbackErrorRate is the error rate above which a ramp must roll back,
// independent of which ramp step is active.
const rollbackErrorRate = 0.05

// Checks holds the thresholds for the validation battery.
type Checks struct {
	MinHealthPasses int     `yaml:"min_health_passes"`
	MaxP99LatencyMs float64 `yaml:"max_p99_latency_ms"`
	MaxErrorRate    float64 `yaml:"max_error_rate"`
	MinThroughput   float64 `yaml:"min_throughput"`
}

// DefaultChecks returns the standard validation thresholds.
func DefaultChecks() Checks {
	return Checks{
		MinHealthPasses: 3,
		MaxP99LatencyMs: 500,
		MaxErrorRate:    0.01,
		MinThroughput:   100,
	}
}

// ValidationMetrics is the sample a validation run is judged against.
type ValidationMetrics struct {
	ConsecutiveHealthPasses int
	P99LatencyMs            float64
	ErrorRate               float64
	Throughput              float64
}

// CheckResult reports one check with its actual value and threshold.
type CheckResult struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Actual    float64 `json:"actual"`
	Threshold float64 `json:"threshold"`
}

// ValidationResult is the outcome of a full validation run.
type ValidationResult struct {
	DependencyID string        `json:"dependency_id"`
	Checks       []CheckResult `json:"checks"`
	AllPassed    bool          `json:"all_passed"`
	RanAt        time.Time     `json:"ran_at"`
}

// FailedChecks returns the names of the checks that did not pass.
func (r ValidationResult) FailedChecks() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// Validator runs validation checks and supplies the staged restoration ramp.
// It only decides; the caller drives real traffic splitting.
type Validator struct {
	checks Checks
	plans  *planStore
}

// NewValidator creates a validator with the given check thresholds.
func NewValidator(checks Checks) *Validator {
	return &Validator{checks: checks, plans: newPlanStore()}
}

// CreatePlan opens a recovery plan for a failure event.
func (v *Validator) CreatePlan(event *domain.FailureEvent, owner string) *domain.RecoveryPlan {
	return v.plans.create(event, owner)
}

// Plan returns a copy of a plan by id.
func (v *Validator) Plan(planID string) (*domain.RecoveryPlan, error) {
	return v.plans.get(planID)
}

// ActivePlanFor returns the active plan for a dependency, if any.
func (v *Validator) ActivePlanFor(dependencyID string) (*domain.RecoveryPlan, bool) {
	return v.plans.activeFor(dependencyID)
}

// AdvancePlan moves a plan to the next phase. Skipping phases is rejected.
func (v *Validator) AdvancePlan(planID string, to domain.RecoveryPhase) (*domain.RecoveryPlan, error) {
	return v.plans.advance(planID, to)
}

// AbortPlan cancels a plan. Used when a new failure interrupts a ramp.
func (v *Validator) AbortPlan(planID string) (*domain.RecoveryPlan, error) {
	return v.plans.abort(planID)
}

// OpenPlans returns the number of plans not yet finished or aborted.
func (v *Validator) OpenPlans() int {
	return v.plans.open()
}

// RunValidationChecks runs the fixed battery against a metric sample.
// Every check must pass; one failure fails the whole run.
func (v *Validator) RunValidationChecks(dependencyID string, m ValidationMetrics) ValidationResult {
	checks := []CheckResult{
		{
			Name:      "consecutive_health_passes",
			Passed:    m.ConsecutiveHealthPasses >= v.checks.MinHealthPasses,
			Actual:    float64(m.ConsecutiveHealthPasses),
			Threshold: float64(v.checks.MinHealthPasses),
		},
		{
			Name:      "p99_latency_ms",
			Passed:    m.P99LatencyMs <= v.checks.MaxP99LatencyMs,
			Actual:    m.P99LatencyMs,
			Threshold: v.checks.MaxP99LatencyMs,
		},
		{
			Name:      "error_rate",
			Passed:    m.ErrorRate <= v.checks.MaxErrorRate,
			Actual:    m.ErrorRate,
			Threshold: v.checks.MaxErrorRate,
		},
		{
			Name:      "throughput",
			Passed:    m.Throughput >= v.checks.MinThroughput,
			Actual:    m.Throughput,
			Threshold: v.checks.MinThroughput,
		},
	}

	result := ValidationResult{
		DependencyID: dependencyID,
		Checks:       checks,
		AllPassed:    true,
		RanAt:        time.Now(),
	}
	for _, c := range checks {
		if !c.Passed {
			result.AllPassed = false
			break
		}
	}

	outcome := "passed"
	if !result.AllPassed {
		outcome = "failed"
	}
	metrics.RecoveryValidations.WithLabelValues(dependencyID, outcome).Inc()

	return result
}

// RestorationPlan returns the fixed staged traffic schedule.
func (v *Validator) RestorationPlan() []domain.RampStep {
	return []domain.RampStep{
		{TrafficPercent: 10, Dwell: 5 * time.Minute},
		{TrafficPercent: 25, Dwell: 10 * time.Minute},
		{TrafficPercent: 50, Dwell: 15 * time.Minute},
		{TrafficPercent: 100, Dwell: 0},
	}
}

// ShouldRollback reports whether the observed error rate forces a rollback.
func (v *Validator) ShouldRollback(errorRate float64) bool {
	return errorRate > rollbackErrorRate
}
