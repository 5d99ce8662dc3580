package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/metrics"
)

// ErrNotRegistered is returned when operating on an unknown dependency.
var ErrNotRegistered = errors.New("dependency not registered")

// maxHistory caps the per-dependency health-check history.
const maxHistory = 100

// Prober performs a raw health probe against a dependency. The detector does
// not talk to dependencies itself; probes come from the telemetry collaborator.
type Prober interface {
	Probe(ctx context.Context, dep domain.Dependency) (domain.HealthStatus, time.Duration, string)
}

// Thresholds holds the failure classification cutoffs.
type Thresholds struct {
	CriticalLatencyMs  float64 `yaml:"critical_latency_ms"`
	CriticalErrorRate  float64 `yaml:"critical_error_rate"`
	CriticalQueueDepth int     `yaml:"critical_queue_depth"`
}

// DefaultThresholds returns the standard classification cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalLatencyMs:  2000,
		CriticalErrorRate:  0.05,
		CriticalQueueDepth: 500,
	}
}

// Detector owns the dependency registry, evaluates health probes and
// classifies metric samples into failure events.
type Detector struct {
	mu         sync.RWMutex
	deps       map[string]*domain.Dependency
	history    map[string][]domain.HealthCheck
	failureLog []domain.FailureEvent
	thresholds Thresholds
	prober     Prober
}

// New creates a detector. The prober may be nil if health checks are pushed
// via RecordProbe instead of pulled.
func New(thresholds Thresholds, prober Prober) *Detector {
	return &Detector{
		deps:       make(map[string]*domain.Dependency),
		history:    make(map[string][]domain.HealthCheck),
		thresholds: thresholds,
		prober:     prober,
	}
}

// RegisterDependency adds a dependency to the registry. Registering an id
// twice replaces the previous definition but keeps its history.
func (d *Detector) RegisterDependency(dep domain.Dependency) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dep.LastStatus == "" {
		dep.LastStatus = domain.HealthUnknown
	}
	d.deps[dep.ID] = &dep
}

// Dependency returns a copy of a registered dependency.
func (d *Detector) Dependency(id string) (domain.Dependency, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dep, ok := d.deps[id]
	if !ok {
		return domain.Dependency{}, false
	}
	return *dep, true
}

// Dependencies returns copies of all registered dependencies.
func (d *Detector) Dependencies() []domain.Dependency {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Dependency, 0, len(d.deps))
	for _, dep := range d.deps {
		out = append(out, *dep)
	}
	return out
}

// CheckHealth probes a dependency and records the observation. Checking an
// unregistered id returns an UNKNOWN check with an explanatory message
// rather than an error.
func (d *Detector) CheckHealth(ctx context.Context, depID string) domain.HealthCheck {
	d.mu.RLock()
	dep, ok := d.deps[depID]
	d.mu.RUnlock()

	if !ok {
		return domain.HealthCheck{
			DependencyID: depID,
			Timestamp:    time.Now(),
			Status:       domain.HealthUnknown,
			Error:        fmt.Sprintf("dependency %q not registered", depID),
		}
	}

	status := domain.HealthUnknown
	var latency time.Duration
	var errText string
	if d.prober != nil {
		status, latency, errText = d.prober.Probe(ctx, *dep)
	}

	check := domain.HealthCheck{
		DependencyID: depID,
		Timestamp:    time.Now(),
		Status:       status,
		Latency:      latency,
		Error:        errText,
	}
	d.record(check)
	return check
}

// RecordProbe records a probe result that was produced externally.
func (d *Detector) RecordProbe(depID string, status domain.HealthStatus, latency time.Duration, errText string) (domain.HealthCheck, error) {
	d.mu.RLock()
	_, ok := d.deps[depID]
	d.mu.RUnlock()

	if !ok {
		return domain.HealthCheck{}, fmt.Errorf("record probe for %q: %w", depID, ErrNotRegistered)
	}

	check := domain.HealthCheck{
		DependencyID: depID,
		Timestamp:    time.Now(),
		Status:       status,
		Latency:      latency,
		Error:        errText,
	}
	d.record(check)
	return check, nil
}

// record appends a check to the capped history and updates the cached status.
func (d *Detector) record(check domain.HealthCheck) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hist := append(d.history[check.DependencyID], check)
	if len(hist) > maxHistory {
		hist = hist[len(hist)-maxHistory:]
	}
	d.history[check.DependencyID] = hist

	if dep, ok := d.deps[check.DependencyID]; ok {
		dep.LastStatus = check.Status
	}

	metrics.HealthChecks.WithLabelValues(check.DependencyID, string(check.Status)).Inc()
}

// History returns a copy of the health-check history for a dependency.
func (d *Detector) History(depID string) []domain.HealthCheck {
	d.mu.RLock()
	defer d.mu.RUnlock()

	hist := d.history[depID]
	out := make([]domain.HealthCheck, len(hist))
	copy(out, hist)
	return out
}

// DetectFailure classifies a metric sample. Classification precedence:
// latency, then error rate, then queue depth; first match wins. Returns nil
// when the sample is within thresholds.
func (d *Detector) DetectFailure(depID string, errorRate, latencyMs float64, queueDepth int) (*domain.FailureEvent, error) {
	d.mu.RLock()
	_, ok := d.deps[depID]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("detect failure for %q: %w", depID, ErrNotRegistered)
	}

	var kind domain.FailureKind
	switch {
	case latencyMs > d.thresholds.CriticalLatencyMs:
		kind = domain.FailureHighLatency
	case errorRate > d.thresholds.CriticalErrorRate:
		kind = domain.FailureErrorSpike
	case queueDepth > d.thresholds.CriticalQueueDepth:
		kind = domain.FailureCapacityExceeded
	default:
		return nil, nil
	}

	event := &domain.FailureEvent{
		ID:           uuid.New().String(),
		DependencyID: depID,
		Kind:         kind,
		Severity:     domain.FailureKindTable[kind].DefaultSeverity,
		DetectedAt:   time.Now(),
		Metrics: domain.MetricsSnapshot{
			ErrorRate:  errorRate,
			LatencyMs:  latencyMs,
			QueueDepth: queueDepth,
		},
	}

	d.mu.Lock()
	d.failureLog = append(d.failureLog, *event)
	d.mu.Unlock()

	metrics.FailuresDetected.WithLabelValues(depID, string(kind)).Inc()
	return event, nil
}

// FailureLog returns a copy of all detected failures.
func (d *Detector) FailureLog() []domain.FailureEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.FailureEvent, len(d.failureLog))
	copy(out, d.failureLog)
	return out
}

// MarkResolved stamps the failure event with the given id as resolved.
func (d *Detector) MarkResolved(eventID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for i := range d.failureLog {
		if d.failureLog[i].ID == eventID && d.failureLog[i].ResolvedAt == nil {
			d.failureLog[i].ResolvedAt = &now
			return
		}
	}
}
