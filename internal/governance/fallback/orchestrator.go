package fallback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/metrics"
)

// ErrNotConfigured is returned when operating on an unknown service.
var ErrNotConfigured = errors.New("service not configured")

// Outcome is the result code of a fallback operation.
type Outcome string

const (
	OutcomeTransitioned  Outcome = "transitioned"
	OutcomeRestored      Outcome = "restored"
	OutcomeAlreadyLowest Outcome = "already_at_lowest_tier"
	OutcomeApproval      Outcome = "approval_required"
	OutcomeAlreadyPrime  Outcome = "already_primary"
	OutcomeAutoDisabled  Outcome = "auto_failover_disabled"
)

// Result reports what a fallback operation did. For approval blocks the
// proposed transition is carried for a human or governance decision.
type Result struct {
	Outcome    Outcome                `json:"outcome"`
	ServiceID  string                 `json:"service_id"`
	Transition *domain.TierTransition `json:"transition,omitempty"`
}

// serviceState serializes tier transitions for one service.
type serviceState struct {
	mu      sync.Mutex
	cfg     domain.FallbackConfig
	history []domain.TierTransition
	active  bool
}

// Orchestrator maintains the ordered fallback chain per service and drives
// tier transitions.
type Orchestrator struct {
	mu       sync.RWMutex
	services map[string]*serviceState
}

// New creates an empty orchestrator.
func New() *Orchestrator {
	return &Orchestrator{services: make(map[string]*serviceState)}
}

// Configure registers a service's fallback chain. The chain must be ordered
// by strictly decreasing quality so automatic failover always degrades.
func (o *Orchestrator) Configure(cfg domain.FallbackConfig) error {
	if len(cfg.Tiers) == 0 {
		return fmt.Errorf("service %q: fallback chain is empty", cfg.ServiceID)
	}
	for i := 1; i < len(cfg.Tiers); i++ {
		if cfg.Tiers[i].QualityPercent >= cfg.Tiers[i-1].QualityPercent {
			return fmt.Errorf("service %q: tier %q does not decrease quality", cfg.ServiceID, cfg.Tiers[i].ID)
		}
	}
	if cfg.CurrentIndex < 0 || cfg.CurrentIndex >= len(cfg.Tiers) {
		cfg.CurrentIndex = 0
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.services[cfg.ServiceID] = &serviceState{cfg: cfg}
	metrics.CurrentTierIndex.WithLabelValues(cfg.ServiceID).Set(float64(cfg.CurrentIndex))
	return nil
}

func (o *Orchestrator) service(serviceID string) (*serviceState, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st, ok := o.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", serviceID, ErrNotConfigured)
	}
	return st, nil
}

// TriggerFallback moves a service down its chain. Without an explicit target
// the next tier is used; targetIndex marks a manual transition which bypasses
// the approval gate and may skip tiers.
func (o *Orchestrator) TriggerFallback(serviceID string, event *domain.FailureEvent, targetIndex *int) (Result, error) {
	st, err := o.service(serviceID)
	if err != nil {
		return Result{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	from := st.cfg.CurrentTier()
	manual := targetIndex != nil

	var next int
	if manual {
		next = *targetIndex
		if next < 0 || next >= len(st.cfg.Tiers) {
			return Result{}, fmt.Errorf("service %q: target tier index %d out of range", serviceID, next)
		}
	} else {
		if !st.cfg.AutoFailover {
			return Result{Outcome: OutcomeAutoDisabled, ServiceID: serviceID}, nil
		}
		if st.cfg.AtLowestTier() {
			return Result{Outcome: OutcomeAlreadyLowest, ServiceID: serviceID}, nil
		}
		next = st.cfg.CurrentIndex + 1
	}

	to := st.cfg.Tiers[next]
	transition := domain.TierTransition{
		ServiceID:    serviceID,
		FromTier:     from.ID,
		ToTier:       to.ID,
		Timestamp:    time.Now(),
		QualityDelta: to.QualityPercent - from.QualityPercent,
	}
	if event != nil {
		transition.TriggerEvent = event.ID
	}

	// Leaving an approval-gated tier automatically needs a human decision.
	if !manual && from.RequiresApproval {
		return Result{Outcome: OutcomeApproval, ServiceID: serviceID, Transition: &transition}, nil
	}

	st.cfg.CurrentIndex = next
	st.history = append(st.history, transition)
	st.active = next != 0

	metrics.CurrentTierIndex.WithLabelValues(serviceID).Set(float64(next))
	metrics.TierTransitions.WithLabelValues(serviceID, "down").Inc()

	return Result{Outcome: OutcomeTransitioned, ServiceID: serviceID, Transition: &transition}, nil
}

// RestoreToPrimary jumps a service straight back to tier 0. Idempotent:
// calling it while already on the primary tier reports ALREADY_PRIMARY.
func (o *Orchestrator) RestoreToPrimary(serviceID string) (Result, error) {
	st, err := o.service(serviceID)
	if err != nil {
		return Result{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.cfg.AtPrimary() {
		return Result{Outcome: OutcomeAlreadyPrime, ServiceID: serviceID}, nil
	}

	from := st.cfg.CurrentTier()
	to := st.cfg.Tiers[0]
	transition := domain.TierTransition{
		ServiceID:    serviceID,
		FromTier:     from.ID,
		ToTier:       to.ID,
		Timestamp:    time.Now(),
		QualityDelta: to.QualityPercent - from.QualityPercent,
	}

	st.cfg.CurrentIndex = 0
	st.history = append(st.history, transition)
	st.active = false

	metrics.CurrentTierIndex.WithLabelValues(serviceID).Set(0)
	metrics.TierTransitions.WithLabelValues(serviceID, "up").Inc()

	return Result{Outcome: OutcomeRestored, ServiceID: serviceID, Transition: &transition}, nil
}

// Chain returns the ordered tier list for a service.
func (o *Orchestrator) Chain(serviceID string) ([]domain.Tier, error) {
	st, err := o.service(serviceID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]domain.Tier, len(st.cfg.Tiers))
	copy(out, st.cfg.Tiers)
	return out, nil
}

// Config returns a copy of the service's fallback config.
func (o *Orchestrator) Config(serviceID string) (domain.FallbackConfig, error) {
	st, err := o.service(serviceID)
	if err != nil {
		return domain.FallbackConfig{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cfg := st.cfg
	cfg.Tiers = make([]domain.Tier, len(st.cfg.Tiers))
	copy(cfg.Tiers, st.cfg.Tiers)
	return cfg, nil
}

// History returns the transition history for a service.
func (o *Orchestrator) History(serviceID string) ([]domain.TierTransition, error) {
	st, err := o.service(serviceID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]domain.TierTransition, len(st.history))
	copy(out, st.history)
	return out, nil
}

// ActiveFallbacks returns the ids of services not serving from primary.
func (o *Orchestrator) ActiveFallbacks() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []string
	for id, st := range o.services {
		st.mu.Lock()
		if st.active {
			out = append(out, id)
		}
		st.mu.Unlock()
	}
	return out
}
