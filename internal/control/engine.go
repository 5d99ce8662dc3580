package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/governor/internal/core/config"
	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/breaker"
	"github.com/vietddude/governor/internal/governance/degrade"
	"github.com/vietddude/governor/internal/governance/detector"
	"github.com/vietddude/governor/internal/governance/fallback"
	"github.com/vietddude/governor/internal/governance/recovery"
	"github.com/vietddude/governor/internal/infra/notify"
	redisclient "github.com/vietddude/governor/internal/infra/redis"
	"github.com/vietddude/governor/internal/infra/storage"
	"github.com/vietddude/governor/internal/infra/storage/memory"
	"github.com/vietddude/governor/internal/infra/storage/postgres"
	"github.com/vietddude/governor/internal/infra/telemetry"
)

// Config holds the application configuration.
type Config struct {
	Port     int
	Governor config.GovernorConfig
	Services []config.ServiceConfig
	Redis    redisclient.Config
	Database postgres.Config
}

// Engine is the top-level coordinator wiring the detector, breakers,
// orchestrator, degradation controller and recovery validator.
type Engine struct {
	cfg Config

	detector     *detector.Detector
	breakers     *breaker.Manager
	orchestrator *fallback.Orchestrator
	degrader     *degrade.Controller
	validator    *recovery.Validator

	auditRepo      storage.AuditRepository
	incidentRepo   storage.IncidentRepository
	transitionRepo storage.TransitionRepository
	db             *postgres.DB
	redisClient    *redisclient.Client

	notifier notify.Notifier
	source   telemetry.Source
	log      *slog.Logger

	// depService maps dependency id to its owning service.
	mu         sync.RWMutex
	depService map[string]string

	stopLoop context.CancelFunc
	loopDone chan struct{}
}

// NewEngine creates an engine with all collaborators initialized.
func NewEngine(cfg Config) (*Engine, error) {
	e := &Engine{
		cfg:          cfg,
		detector:     detector.New(cfg.Governor.Thresholds, nil),
		breakers:     breaker.NewManager(cfg.Governor.BreakerConfig()),
		orchestrator: fallback.New(),
		degrader:     degrade.New(degrade.DefaultRules()),
		validator:    recovery.NewValidator(cfg.Governor.Checks),
		log:          slog.Default(),
		depService:   make(map[string]string),
	}

	// 1. Initialize Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		e.db = db
		e.auditRepo = postgres.NewAuditRepo(db)
		e.incidentRepo = postgres.NewIncidentRepo(db)
		e.transitionRepo = postgres.NewTransitionRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		e.auditRepo = memory.NewAuditRepo(store)
		e.incidentRepo = memory.NewIncidentRepo(store)
		e.transitionRepo = memory.NewTransitionRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Notification Transport and Telemetry Feed
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		e.redisClient = client
		e.notifier = client
		e.source = client
		slog.Info("Using Redis notification transport and telemetry feed")
	} else {
		e.notifier = notify.NewLogNotifier(e.log)
		e.source = telemetry.NewQueueSource()
		slog.Info("Using log notifier and in-process telemetry queue")
	}

	e.breakers.RegisterListener(func(dependencyID string, from, to breaker.State) {
		e.log.Info("breaker state change", "dependency", dependencyID, "from", from, "to", to)
	})

	// 3. Register configured services
	for _, svc := range cfg.Services {
		if err := e.SetupService(context.Background(), svc); err != nil {
			return nil, fmt.Errorf("failed to set up service %q: %w", svc.ID, err)
		}
	}

	return e, nil
}

// Source returns the telemetry source the control loop drains. When no Redis
// feed is configured this is an in-process queue callers can push into.
func (e *Engine) Source() telemetry.Source {
	return e.source
}

// Detector exposes the failure detector for the status surface.
func (e *Engine) Detector() *detector.Detector {
	return e.detector
}

// Orchestrator exposes the fallback orchestrator for the status surface.
func (e *Engine) Orchestrator() *fallback.Orchestrator {
	return e.orchestrator
}

// Breakers exposes the circuit breaker manager.
func (e *Engine) Breakers() *breaker.Manager {
	return e.breakers
}

// AllowRequest is the admission decision for one call to a dependency. A
// dependency without a breaker is always admitted.
func (e *Engine) AllowRequest(depID string) bool {
	b := e.breakers.Get(depID)
	if b == nil {
		return true
	}
	return b.Allow()
}

// SetupService registers a service's dependencies, circuit breakers and
// fallback chain.
func (e *Engine) SetupService(ctx context.Context, svc config.ServiceConfig) error {
	tiers := make([]domain.Tier, 0, len(svc.Tiers))
	for _, t := range svc.Tiers {
		tiers = append(tiers, t.Tier())
	}

	err := e.orchestrator.Configure(domain.FallbackConfig{
		ServiceID:        svc.ID,
		Tiers:            tiers,
		AutoFailover:     svc.AutoFailover,
		AutoRecovery:     svc.AutoRecovery,
		FailureThreshold: e.cfg.Governor.BreakerConfig().FailureThreshold,
	})
	if err != nil {
		return err
	}

	for _, depCfg := range svc.Dependencies {
		dep := depCfg.Dependency()
		e.detector.RegisterDependency(dep)
		if dep.BreakerEnabled {
			e.breakers.GetOrCreate(dep.ID)
		}

		e.mu.Lock()
		e.depService[dep.ID] = svc.ID
		e.mu.Unlock()
	}

	e.audit(ctx, "setup_service", "engine",
		fmt.Sprintf("service=%s dependencies=%d tiers=%d", svc.ID, len(svc.Dependencies), len(tiers)))
	e.log.Info("service configured", "service", svc.ID, "tiers", len(tiers))
	return nil
}

// FailureReport is the result of handling one metric sample.
type FailureReport struct {
	Event            *domain.FailureEvent    `json:"event,omitempty"`
	BreakerState     breaker.State           `json:"breaker_state,omitempty"`
	Fallback         *fallback.Result        `json:"fallback,omitempty"`
	DegradationLevel domain.DegradationLevel `json:"degradation_level"`
	Plan             *domain.RecoveryPlan    `json:"plan,omitempty"`
	AbortedPlan      string                  `json:"aborted_plan,omitempty"`
}

// HandleFailure classifies a metric sample and walks the governance chain:
// breaker, fallback, degradation, notification, recovery plan, audit.
// A sample within thresholds returns a nil report.
func (e *Engine) HandleFailure(ctx context.Context, depID string, errorRate, latencyMs float64, queueDepth int) (*FailureReport, error) {
	event, err := e.detector.DetectFailure(depID, errorRate, latencyMs, queueDepth)
	if err != nil {
		return nil, err
	}
	if event == nil {
		// Healthy sample counts as a breaker success.
		if b := e.breakers.Get(depID); b != nil {
			b.RecordSuccess()
		}
		return nil, nil
	}

	e.log.Warn("failure detected",
		"dependency", depID, "kind", event.Kind, "severity", event.Severity)

	if err := e.incidentRepo.Save(ctx, event); err != nil {
		e.log.Error("failed to persist incident", "error", err)
	}
	e.audit(ctx, "failure_detected", "detector",
		fmt.Sprintf("dependency=%s kind=%s severity=%s", depID, event.Kind, event.Severity))

	report := &FailureReport{Event: event}

	// A failure during a gradual restore aborts the ramp and forces the
	// dependency back into fallback.
	if plan, ok := e.validator.ActivePlanFor(depID); ok && plan.Phase == domain.PhaseGradualRestore {
		if aborted, err := e.validator.AbortPlan(plan.ID); err == nil {
			report.AbortedPlan = aborted.ID
			e.audit(ctx, "recovery_aborted", "validator",
				fmt.Sprintf("plan=%s dependency=%s trigger=%s", aborted.ID, depID, event.ID))
			e.log.Warn("recovery ramp aborted by new failure", "plan", aborted.ID, "dependency", depID)
		}
	}

	// Trip the breaker.
	b := e.breakers.Get(depID)
	if b == nil {
		b = e.breakers.GetOrCreate(depID)
	}
	b.RecordFailure()
	report.BreakerState = b.State()

	// Ask the orchestrator to fail the owning service over.
	e.mu.RLock()
	serviceID, owned := e.depService[depID]
	e.mu.RUnlock()

	if owned {
		result, err := e.orchestrator.TriggerFallback(serviceID, event, nil)
		if err != nil {
			return nil, err
		}
		report.Fallback = &result
		e.recordFallbackResult(ctx, result)
	}

	// Critical failures force at least level 2 degradation.
	if event.Severity == domain.SeverityCritical {
		cfg := e.degrader.EnsureAtLeast(domain.LevelDegradedL2,
			fmt.Sprintf("critical failure on %s (%s)", depID, event.Kind))
		e.audit(ctx, "degradation_set", "degrader",
			fmt.Sprintf("level=%s reason=critical failure on %s", cfg.Level, depID))
	}
	report.DegradationLevel = e.degrader.Level()

	e.notifyFailure(ctx, event)

	// Open a recovery plan unless one is already active for this dependency.
	if _, active := e.validator.ActivePlanFor(depID); !active {
		plan := e.validator.CreatePlan(event, "oncall")
		report.Plan = plan
		e.audit(ctx, "recovery_plan_created", "validator",
			fmt.Sprintf("plan=%s dependency=%s event=%s", plan.ID, depID, event.ID))
	}

	return report, nil
}

// RecoveryOutcome is the result code of a recovery attempt.
type RecoveryOutcome string

const (
	RecoveryRestored         RecoveryOutcome = "restored"
	RecoveryValidationFailed RecoveryOutcome = "validation_failed"
)

// RecoveryReport is the result of one recovery attempt.
type RecoveryReport struct {
	Outcome        RecoveryOutcome           `json:"outcome"`
	Validation     recovery.ValidationResult `json:"validation"`
	Ramp           []domain.RampStep         `json:"ramp,omitempty"`
	Recommendation string                    `json:"recommendation,omitempty"`
}

// ErrRampInProgress is returned when recovery is re-initiated for a plan
// whose validation already passed and whose traffic ramp is underway.
var ErrRampInProgress = errors.New("recovery ramp already in progress")

// InitiateRecovery runs the validation battery for a plan. When every check
// passes the service is restored to primary, the degradation level is reset
// and the plan enters gradual restore; otherwise the system stays in its
// current fallback tier.
func (e *Engine) InitiateRecovery(ctx context.Context, planID string, m recovery.ValidationMetrics) (*RecoveryReport, error) {
	plan, err := e.validator.Plan(planID)
	if err != nil {
		return nil, err
	}
	if plan.Aborted {
		return nil, fmt.Errorf("plan %q was aborted, open a new plan", planID)
	}
	// A plan past validation is ramping; re-running validation must not
	// advance it further. CompleteRecovery owns the rest of the lifecycle.
	if domain.PhaseRank(plan.Phase) > domain.PhaseRank(domain.PhaseValidation) {
		return nil, fmt.Errorf("plan %q is in phase %s: %w", planID, plan.Phase, ErrRampInProgress)
	}

	// Walk the plan up to the validation phase before judging it.
	if err := e.advancePlanTo(planID, domain.PhaseValidation); err != nil {
		return nil, err
	}

	result := e.validator.RunValidationChecks(plan.DependencyID, m)
	e.audit(ctx, "recovery_validation", "validator",
		fmt.Sprintf("plan=%s dependency=%s passed=%t failed_checks=%v",
			planID, plan.DependencyID, result.AllPassed, result.FailedChecks()))

	if !result.AllPassed {
		e.log.Warn("recovery validation failed",
			"plan", planID, "dependency", plan.DependencyID, "checks", result.FailedChecks())
		return &RecoveryReport{
			Outcome:        RecoveryValidationFailed,
			Validation:     result,
			Recommendation: "continue monitoring in current fallback tier; re-run validation when metrics improve",
		}, nil
	}

	if err := e.advancePlanTo(planID, domain.PhaseGradualRestore); err != nil {
		return nil, err
	}
	ramp := e.validator.RestorationPlan()

	e.mu.RLock()
	serviceID, owned := e.depService[plan.DependencyID]
	e.mu.RUnlock()

	if owned {
		result, err := e.orchestrator.RestoreToPrimary(serviceID)
		if err != nil {
			return nil, err
		}
		e.recordFallbackResult(ctx, result)
	}

	cfg := e.degrader.SetLevel(domain.LevelNormal,
		fmt.Sprintf("recovery validated for %s", plan.DependencyID))
	e.audit(ctx, "degradation_set", "degrader",
		fmt.Sprintf("level=%s reason=recovery validated", cfg.Level))

	// The plan stays in gradual-restore while the caller drives the ramp;
	// a new failure for the dependency aborts it. CompleteRecovery finishes
	// the lifecycle once the ramp is done.
	return &RecoveryReport{
		Outcome:    RecoveryRestored,
		Validation: result,
		Ramp:       ramp,
	}, nil
}

// CompleteRecovery finishes a plan whose ramp reached full traffic: the plan
// advances through full restore to post-mortem and the failure event is
// marked resolved.
func (e *Engine) CompleteRecovery(ctx context.Context, planID string) error {
	plan, err := e.validator.Plan(planID)
	if err != nil {
		return err
	}
	if plan.Aborted {
		return fmt.Errorf("plan %q was aborted during the ramp", planID)
	}
	if plan.Phase != domain.PhaseGradualRestore {
		return fmt.Errorf("plan %q is in phase %s, want %s", planID, plan.Phase, domain.PhaseGradualRestore)
	}

	if err := e.advancePlanTo(planID, domain.PhasePostMortem); err != nil {
		return err
	}

	e.detector.MarkResolved(plan.FailureEventID)
	if err := e.incidentRepo.MarkResolved(ctx, plan.FailureEventID, time.Now()); err != nil {
		e.log.Error("failed to resolve incident", "error", err)
	}
	e.audit(ctx, "recovery_completed", "engine",
		fmt.Sprintf("plan=%s dependency=%s event=%s", planID, plan.DependencyID, plan.FailureEventID))
	return nil
}

// advancePlanTo steps a plan forward one phase at a time until it reaches
// the target phase. Phases never skip.
func (e *Engine) advancePlanTo(planID string, target domain.RecoveryPhase) error {
	for {
		plan, err := e.validator.Plan(planID)
		if err != nil {
			return err
		}
		if plan.Phase == target {
			return nil
		}
		next := domain.NextPhase(plan.Phase)
		if next == plan.Phase {
			return fmt.Errorf("plan %q: cannot advance past %s", planID, plan.Phase)
		}
		if _, err := e.validator.AdvancePlan(planID, next); err != nil {
			return err
		}
	}
}

// TriggerFallback moves a service down its fallback chain. A nil targetIndex
// requests the next tier; an explicit index is a manual transition.
func (e *Engine) TriggerFallback(ctx context.Context, serviceID string, event *domain.FailureEvent, targetIndex *int) (fallback.Result, error) {
	result, err := e.orchestrator.TriggerFallback(serviceID, event, targetIndex)
	if err != nil {
		return fallback.Result{}, err
	}
	e.recordFallbackResult(ctx, result)
	return result, nil
}

// RestoreToPrimary jumps a service back to tier 0.
func (e *Engine) RestoreToPrimary(ctx context.Context, serviceID string) (fallback.Result, error) {
	result, err := e.orchestrator.RestoreToPrimary(serviceID)
	if err != nil {
		return fallback.Result{}, err
	}
	e.recordFallbackResult(ctx, result)
	return result, nil
}

// SetDegradationLevel switches the system-wide degradation level by operator
// request.
func (e *Engine) SetDegradationLevel(ctx context.Context, level domain.DegradationLevel, reason string) domain.DegradedModeConfig {
	cfg := e.degrader.SetLevel(level, reason)
	e.audit(ctx, "degradation_set", "degrader",
		fmt.Sprintf("level=%s reason=%s", cfg.Level, reason))
	return cfg
}

// recordFallbackResult persists and audits the outcome of a fallback
// operation. Refusals are audited too so no decision is silent.
func (e *Engine) recordFallbackResult(ctx context.Context, result fallback.Result) {
	switch result.Outcome {
	case fallback.OutcomeTransitioned, fallback.OutcomeRestored:
		if err := e.transitionRepo.Append(ctx, result.Transition); err != nil {
			e.log.Error("failed to persist transition", "error", err)
		}
		e.audit(ctx, "tier_transition", "orchestrator",
			fmt.Sprintf("service=%s from=%s to=%s delta=%d",
				result.ServiceID, result.Transition.FromTier, result.Transition.ToTier,
				result.Transition.QualityDelta))
	case fallback.OutcomeApproval:
		e.audit(ctx, "fallback_blocked", "orchestrator",
			fmt.Sprintf("service=%s outcome=%s proposed=%s->%s",
				result.ServiceID, result.Outcome,
				result.Transition.FromTier, result.Transition.ToTier))
	default:
		e.audit(ctx, "fallback_refused", "orchestrator",
			fmt.Sprintf("service=%s outcome=%s", result.ServiceID, result.Outcome))
	}
}

// SystemStatus aggregates the governed system's state for operators.
type SystemStatus struct {
	Dependencies    map[domain.HealthStatus]int `json:"dependencies"`
	ActiveFallbacks []string                    `json:"active_fallbacks"`
	Degradation     domain.DegradedModeConfig   `json:"degradation"`
	Breakers        map[string]breaker.Snapshot `json:"breakers"`
	OpenIncidents   int                         `json:"open_incidents"`
	OpenPlans       int                         `json:"open_plans"`
}

// GetSystemStatus aggregates dependency health counts, active fallbacks,
// degradation level, breaker states and the open-incident count.
func (e *Engine) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	counts := make(map[domain.HealthStatus]int)
	for _, dep := range e.detector.Dependencies() {
		counts[dep.LastStatus]++
	}

	open, err := e.incidentRepo.CountOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count open incidents: %w", err)
	}

	return &SystemStatus{
		Dependencies:    counts,
		ActiveFallbacks: e.orchestrator.ActiveFallbacks(),
		Degradation:     e.degrader.Current(),
		Breakers:        e.breakers.Snapshots(),
		OpenIncidents:   open,
		OpenPlans:       e.validator.OpenPlans(),
	}, nil
}

// notifyFailure routes notifications by severity. Oncall is always paged;
// critical failures also go to internal chat.
func (e *Engine) notifyFailure(ctx context.Context, event *domain.FailureEvent) {
	now := time.Now()
	message := fmt.Sprintf("%s on %s (%s)", event.Kind, event.DependencyID, event.Severity)

	notifications := []domain.Notification{
		{Audience: domain.AudienceOncall, Message: message, Severity: event.Severity, Channel: domain.ChannelPager, SentAt: now},
	}
	if event.Severity == domain.SeverityCritical {
		notifications = append(notifications,
			domain.Notification{Audience: domain.AudienceInternal, Message: message, Severity: event.Severity, Channel: domain.ChannelChat, SentAt: now})
	}
	if e.degrader.QualityTradeoffs().NotifyUsers {
		notifications = append(notifications,
			domain.Notification{Audience: domain.AudienceUsers, Message: "some features are temporarily degraded", Severity: event.Severity, Channel: domain.ChannelStatusPage, SentAt: now})
	}

	for _, n := range notifications {
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.log.Error("failed to send notification", "audience", n.Audience, "error", err)
		}
	}
}

// audit appends one checksummed entry per governance action.
func (e *Engine) audit(ctx context.Context, action, component, details string) {
	now := time.Now()
	entry := &domain.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		Component: component,
		Details:   details,
		Timestamp: now,
		Checksum:  domain.AuditChecksum(action, component, details, now),
	}
	if err := e.auditRepo.Append(ctx, entry); err != nil {
		e.log.Error("failed to append audit entry", "action", action, "error", err)
	}
}
