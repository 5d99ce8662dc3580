package control

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/governor/internal/core/config"
	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/governance/breaker"
	"github.com/vietddude/governor/internal/governance/detector"
	"github.com/vietddude/governor/internal/governance/fallback"
	"github.com/vietddude/governor/internal/governance/recovery"
)

func testConfig() Config {
	return Config{
		Port: 0,
		Governor: config.GovernorConfig{
			Thresholds:       detector.DefaultThresholds(),
			Checks:           recovery.DefaultChecks(),
			FailureThreshold: 3,
			SuccessThreshold: 2,
		},
		Services: []config.ServiceConfig{
			{
				ID:           "checkout",
				AutoFailover: true,
				AutoRecovery: true,
				Dependencies: []config.DependencyConfig{
					{
						ID:             "db-1",
						Name:           "orders database",
						Type:           "database",
						SLATargetMs:    200,
						BreakerEnabled: true,
					},
				},
				Tiers: []config.TierConfig{
					{ID: "db-primary", Kind: "primary", Provider: "rds"},
					{ID: "db-replica", Kind: "secondary", Provider: "rds"},
					{ID: "db-cache", Kind: "cache", Provider: "redis"},
				},
			},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

// failingMetrics reports a sample over the error-rate threshold, which
// classifies as an error spike at critical severity.
func failingSample(t *testing.T, e *Engine) *FailureReport {
	t.Helper()
	report, err := e.HandleFailure(context.Background(), "db-1", 0.20, 150, 10)
	if err != nil {
		t.Fatalf("HandleFailure() error = %v", err)
	}
	if report == nil {
		t.Fatal("HandleFailure() returned nil report for a failing sample")
	}
	return report
}

func TestSetupServiceRegistersEverything(t *testing.T) {
	e := newTestEngine(t)

	status, err := e.GetSystemStatus(context.Background())
	if err != nil {
		t.Fatalf("GetSystemStatus() error = %v", err)
	}
	if got := status.Dependencies[domain.HealthUnknown]; got != 1 {
		t.Errorf("unknown dependencies = %d, want 1", got)
	}
	if _, ok := status.Breakers["db-1"]; !ok {
		t.Error("no breaker registered for db-1")
	}
	if len(status.ActiveFallbacks) != 0 {
		t.Errorf("ActiveFallbacks = %v, want none", status.ActiveFallbacks)
	}
	if status.Degradation.Level != domain.LevelNormal {
		t.Errorf("degradation level = %s, want %s", status.Degradation.Level, domain.LevelNormal)
	}

	chain, err := e.orchestrator.Chain("checkout")
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if chain[0].Kind != domain.TierPrimary {
		t.Errorf("chain[0].Kind = %s, want %s", chain[0].Kind, domain.TierPrimary)
	}
}

func TestHandleFailureWalksGovernanceChain(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	report := failingSample(t, e)

	if report.Event.Kind != domain.FailureErrorSpike {
		t.Errorf("event kind = %s, want %s", report.Event.Kind, domain.FailureErrorSpike)
	}
	if report.Event.Severity != domain.SeverityCritical {
		t.Errorf("event severity = %s, want %s", report.Event.Severity, domain.SeverityCritical)
	}
	if report.BreakerState != breaker.StateClosed {
		t.Errorf("breaker state after one failure = %s, want %s", report.BreakerState, breaker.StateClosed)
	}
	if report.Fallback == nil || report.Fallback.Outcome != fallback.OutcomeTransitioned {
		t.Fatalf("fallback = %+v, want outcome %s", report.Fallback, fallback.OutcomeTransitioned)
	}
	if report.Fallback.Transition.ToTier != "db-replica" {
		t.Errorf("transitioned to %s, want db-replica", report.Fallback.Transition.ToTier)
	}
	if report.DegradationLevel != domain.LevelDegradedL2 {
		t.Errorf("degradation level = %s, want %s", report.DegradationLevel, domain.LevelDegradedL2)
	}
	if report.Plan == nil {
		t.Fatal("no recovery plan created")
	}
	if report.Plan.Phase != domain.PhaseDetection {
		t.Errorf("plan phase = %s, want %s", report.Plan.Phase, domain.PhaseDetection)
	}

	status, err := e.GetSystemStatus(ctx)
	if err != nil {
		t.Fatalf("GetSystemStatus() error = %v", err)
	}
	if status.OpenIncidents != 1 {
		t.Errorf("open incidents = %d, want 1", status.OpenIncidents)
	}
	if status.OpenPlans != 1 {
		t.Errorf("open plans = %d, want 1", status.OpenPlans)
	}
	if len(status.ActiveFallbacks) != 1 || status.ActiveFallbacks[0] != "checkout" {
		t.Errorf("ActiveFallbacks = %v, want [checkout]", status.ActiveFallbacks)
	}

	entries, err := e.auditRepo.List(ctx, 0)
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	want := map[string]bool{
		"failure_detected":      false,
		"tier_transition":       false,
		"degradation_set":       false,
		"recovery_plan_created": false,
	}
	for _, entry := range entries {
		if _, ok := want[entry.Action]; ok {
			want[entry.Action] = true
		}
		if !entry.Verify() {
			t.Errorf("audit entry %s fails checksum verification", entry.ID)
		}
	}
	for action, seen := range want {
		if !seen {
			t.Errorf("no audit entry for action %q", action)
		}
	}
}

func TestHandleFailureHealthySample(t *testing.T) {
	e := newTestEngine(t)

	report, err := e.HandleFailure(context.Background(), "db-1", 0.001, 50, 3)
	if err != nil {
		t.Fatalf("HandleFailure() error = %v", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil for a healthy sample", report)
	}
}

func TestHandleFailureUnregisteredDependency(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.HandleFailure(context.Background(), "nope", 0.5, 5000, 900)
	if !errors.Is(err, detector.ErrNotRegistered) {
		t.Errorf("error = %v, want %v", err, detector.ErrNotRegistered)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	e := newTestEngine(t)

	var last *FailureReport
	for i := 0; i < 3; i++ {
		last = failingSample(t, e)
	}
	if last.BreakerState != breaker.StateOpen {
		t.Errorf("breaker state after 3 failures = %s, want %s", last.BreakerState, breaker.StateOpen)
	}
}

func TestRecoveryValidationFailureKeepsFallback(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	report := failingSample(t, e)

	bad := recovery.ValidationMetrics{
		ConsecutiveHealthPasses: 1,
		P99LatencyMs:            900,
		ErrorRate:               0.08,
		Throughput:              20,
	}
	rec, err := e.InitiateRecovery(ctx, report.Plan.ID, bad)
	if err != nil {
		t.Fatalf("InitiateRecovery() error = %v", err)
	}
	if rec.Outcome != RecoveryValidationFailed {
		t.Fatalf("outcome = %s, want %s", rec.Outcome, RecoveryValidationFailed)
	}
	if rec.Recommendation == "" {
		t.Error("no recommendation on failed validation")
	}
	if len(rec.Validation.FailedChecks()) == 0 {
		t.Error("no failed checks reported")
	}

	// The service must stay on its fallback tier and degradation must hold.
	status, err := e.GetSystemStatus(ctx)
	if err != nil {
		t.Fatalf("GetSystemStatus() error = %v", err)
	}
	if len(status.ActiveFallbacks) != 1 {
		t.Errorf("ActiveFallbacks = %v, want checkout still failed over", status.ActiveFallbacks)
	}
	if status.Degradation.Level != domain.LevelDegradedL2 {
		t.Errorf("degradation level = %s, want %s", status.Degradation.Level, domain.LevelDegradedL2)
	}
	if status.OpenIncidents != 1 {
		t.Errorf("open incidents = %d, want 1", status.OpenIncidents)
	}

	plan, err := e.validator.Plan(report.Plan.ID)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Phase != domain.PhaseValidation {
		t.Errorf("plan phase = %s, want %s", plan.Phase, domain.PhaseValidation)
	}
}

func TestSuccessfulRecoveryRestoresPrimary(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	report := failingSample(t, e)

	good := recovery.ValidationMetrics{
		ConsecutiveHealthPasses: 3,
		P99LatencyMs:            200,
		ErrorRate:               0.005,
		Throughput:              150,
	}
	rec, err := e.InitiateRecovery(ctx, report.Plan.ID, good)
	if err != nil {
		t.Fatalf("InitiateRecovery() error = %v", err)
	}
	if rec.Outcome != RecoveryRestored {
		t.Fatalf("outcome = %s, want %s", rec.Outcome, RecoveryRestored)
	}

	wantRamp := []int{10, 25, 50, 100}
	if len(rec.Ramp) != len(wantRamp) {
		t.Fatalf("ramp has %d steps, want %d", len(rec.Ramp), len(wantRamp))
	}
	for i, step := range rec.Ramp {
		if step.TrafficPercent != wantRamp[i] {
			t.Errorf("ramp[%d] = %d%%, want %d%%", i, step.TrafficPercent, wantRamp[i])
		}
	}

	status, err := e.GetSystemStatus(ctx)
	if err != nil {
		t.Fatalf("GetSystemStatus() error = %v", err)
	}
	if len(status.ActiveFallbacks) != 0 {
		t.Errorf("ActiveFallbacks = %v, want none after restore", status.ActiveFallbacks)
	}
	if status.Degradation.Level != domain.LevelNormal {
		t.Errorf("degradation level = %s, want %s", status.Degradation.Level, domain.LevelNormal)
	}

	// The plan holds at gradual restore until the ramp completes.
	plan, err := e.validator.Plan(report.Plan.ID)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Phase != domain.PhaseGradualRestore {
		t.Errorf("plan phase = %s, want %s", plan.Phase, domain.PhaseGradualRestore)
	}

	if err := e.CompleteRecovery(ctx, report.Plan.ID); err != nil {
		t.Fatalf("CompleteRecovery() error = %v", err)
	}
	plan, err = e.validator.Plan(report.Plan.ID)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Phase != domain.PhasePostMortem {
		t.Errorf("plan phase = %s, want %s", plan.Phase, domain.PhasePostMortem)
	}

	status, err = e.GetSystemStatus(ctx)
	if err != nil {
		t.Fatalf("GetSystemStatus() error = %v", err)
	}
	if status.OpenIncidents != 0 {
		t.Errorf("open incidents = %d, want 0 after completed recovery", status.OpenIncidents)
	}
	if status.OpenPlans != 0 {
		t.Errorf("open plans = %d, want 0 after completed recovery", status.OpenPlans)
	}
}

func TestReinitiateDuringRampRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	report := failingSample(t, e)

	good := recovery.ValidationMetrics{
		ConsecutiveHealthPasses: 3,
		P99LatencyMs:            200,
		ErrorRate:               0.005,
		Throughput:              150,
	}
	rec, err := e.InitiateRecovery(ctx, report.Plan.ID, good)
	if err != nil {
		t.Fatalf("InitiateRecovery() error = %v", err)
	}
	if rec.Outcome != RecoveryRestored {
		t.Fatalf("outcome = %s, want %s", rec.Outcome, RecoveryRestored)
	}

	// Re-initiating mid-ramp must be refused without touching the plan.
	if _, err := e.InitiateRecovery(ctx, report.Plan.ID, good); !errors.Is(err, ErrRampInProgress) {
		t.Fatalf("second InitiateRecovery() error = %v, want %v", err, ErrRampInProgress)
	}

	plan, err := e.validator.Plan(report.Plan.ID)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Phase != domain.PhaseGradualRestore {
		t.Errorf("plan phase = %s, want %s", plan.Phase, domain.PhaseGradualRestore)
	}
	if got := e.validator.OpenPlans(); got != 1 {
		t.Errorf("open plans = %d, want 1", got)
	}

	// The ramp stays interruptible: a new failure still aborts the plan.
	second := failingSample(t, e)
	if second.AbortedPlan != report.Plan.ID {
		t.Errorf("aborted plan = %q, want %q", second.AbortedPlan, report.Plan.ID)
	}
}

func TestAllowRequestFollowsBreaker(t *testing.T) {
	e := newTestEngine(t)

	if !e.AllowRequest("db-1") {
		t.Error("closed breaker must admit requests")
	}
	for i := 0; i < 3; i++ {
		failingSample(t, e)
	}
	if e.AllowRequest("db-1") {
		t.Error("open breaker must reject requests")
	}

	// Dependencies without a breaker are always admitted.
	if !e.AllowRequest("no-breaker") {
		t.Error("dependency without a breaker must be admitted")
	}
	if e.Breakers().Get("no-breaker") != nil {
		t.Error("AllowRequest must not create breakers as a side effect")
	}
}

func TestNewFailureDuringRampAbortsPlan(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first := failingSample(t, e)

	good := recovery.ValidationMetrics{
		ConsecutiveHealthPasses: 3,
		P99LatencyMs:            200,
		ErrorRate:               0.005,
		Throughput:              150,
	}
	rec, err := e.InitiateRecovery(ctx, first.Plan.ID, good)
	if err != nil {
		t.Fatalf("InitiateRecovery() error = %v", err)
	}
	if rec.Outcome != RecoveryRestored {
		t.Fatalf("outcome = %s, want %s", rec.Outcome, RecoveryRestored)
	}

	// A new failure mid-ramp cancels the plan and fails back over.
	second := failingSample(t, e)
	if second.AbortedPlan != first.Plan.ID {
		t.Errorf("aborted plan = %q, want %q", second.AbortedPlan, first.Plan.ID)
	}
	if second.Plan == nil {
		t.Fatal("no replacement plan opened after abort")
	}
	if second.Plan.ID == first.Plan.ID {
		t.Error("replacement plan reuses the aborted plan's id")
	}
	if second.Fallback == nil || second.Fallback.Outcome != fallback.OutcomeTransitioned {
		t.Fatalf("fallback = %+v, want outcome %s", second.Fallback, fallback.OutcomeTransitioned)
	}

	if err := e.CompleteRecovery(ctx, first.Plan.ID); err == nil {
		t.Error("CompleteRecovery() on an aborted plan did not error")
	}
}
