package recovery

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/governor/internal/core/domain"
)

// ErrInvalidTransition is returned when a plan tries to skip a phase.
var ErrInvalidTransition = errors.New("invalid recovery phase transition")

// ErrNoPlan is returned when no plan exists for the given id.
var ErrNoPlan = errors.New("recovery plan not found")

// CanAdvance reports whether a plan may move from one phase to another.
// Phases only ever advance to the immediately following one.
func CanAdvance(from, to domain.RecoveryPhase) bool {
	return to == domain.NextPhase(from) && from != to
}

// defaultSteps builds the step list for a fresh plan.
func defaultSteps(dependencyID string) []domain.RecoveryStep {
	descriptions := map[domain.RecoveryPhase]string{
		domain.PhaseDetection:      "confirm failure signal for " + dependencyID,
		domain.PhaseIsolation:      "trip breaker and stop traffic to " + dependencyID,
		domain.PhaseFallbackActive: "verify fallback tier is serving",
		domain.PhaseDiagnosis:      "identify root cause",
		domain.PhaseRemediation:    "apply fix or wait out the incident",
		domain.PhaseValidation:     "run the validation battery",
		domain.PhaseGradualRestore: "ramp traffic per restoration schedule",
		domain.PhaseFullRestore:    "restore primary tier and normal mode",
		domain.PhasePostMortem:     "write the incident post-mortem",
	}

	steps := make([]domain.RecoveryStep, 0, len(domain.RecoveryPhaseOrder))
	for _, phase := range domain.RecoveryPhaseOrder {
		steps = append(steps, domain.RecoveryStep{
			ID:          uuid.New().String(),
			Phase:       phase,
			Description: descriptions[phase],
		})
	}
	return steps
}

// planStore owns the recovery plans, keyed by plan id with a dependency
// index so a new failure can find the active plan to abort.
type planStore struct {
	mu    sync.RWMutex
	plans map[string]*domain.RecoveryPlan
	byDep map[string]string // dependency id -> active plan id
}

func newPlanStore() *planStore {
	return &planStore{
		plans: make(map[string]*domain.RecoveryPlan),
		byDep: make(map[string]string),
	}
}

func (s *planStore) create(event *domain.FailureEvent, owner string) *domain.RecoveryPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan := &domain.RecoveryPlan{
		ID:             uuid.New().String(),
		FailureEventID: event.ID,
		DependencyID:   event.DependencyID,
		Owner:          owner,
		Phase:          domain.PhaseDetection,
		Steps:          defaultSteps(event.DependencyID),
		CompletedSteps: make(map[string]bool),
		CreatedAt:      time.Now(),
	}
	s.plans[plan.ID] = plan
	s.byDep[event.DependencyID] = plan.ID
	return copyPlan(plan)
}

func (s *planStore) get(planID string) (*domain.RecoveryPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", planID, ErrNoPlan)
	}
	return copyPlan(plan), nil
}

func (s *planStore) activeFor(dependencyID string) (*domain.RecoveryPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	planID, ok := s.byDep[dependencyID]
	if !ok {
		return nil, false
	}
	plan := s.plans[planID]
	if plan == nil || plan.Aborted || plan.Phase == domain.PhasePostMortem {
		return nil, false
	}
	return copyPlan(plan), true
}

func (s *planStore) advance(planID string, to domain.RecoveryPhase) (*domain.RecoveryPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", planID, ErrNoPlan)
	}
	if plan.Aborted {
		return nil, fmt.Errorf("plan %q is aborted: %w", planID, ErrInvalidTransition)
	}
	if !CanAdvance(plan.Phase, to) {
		return nil, fmt.Errorf("plan %q: %s -> %s: %w", planID, plan.Phase, to, ErrInvalidTransition)
	}

	// Completing a phase marks its step done.
	for _, step := range plan.Steps {
		if step.Phase == plan.Phase {
			plan.CompletedSteps[step.ID] = true
		}
	}
	plan.Phase = to
	return copyPlan(plan), nil
}

func (s *planStore) abort(planID string) (*domain.RecoveryPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", planID, ErrNoPlan)
	}
	plan.Aborted = true
	return copyPlan(plan), nil
}

func (s *planStore) open() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, plan := range s.plans {
		if !plan.Aborted && plan.Phase != domain.PhasePostMortem {
			count++
		}
	}
	return count
}

func copyPlan(p *domain.RecoveryPlan) *domain.RecoveryPlan {
	out := *p
	out.Steps = make([]domain.RecoveryStep, len(p.Steps))
	copy(out.Steps, p.Steps)
	out.CompletedSteps = make(map[string]bool, len(p.CompletedSteps))
	for id, done := range p.CompletedSteps {
		out.CompletedSteps[id] = done
	}
	return &out
}
