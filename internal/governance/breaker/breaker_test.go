package breaker

import (
	"testing"
	"time"
)

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("db-1", cfg)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestOpensAtFailureThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		failures  int
		want      State
	}{
		{"below threshold stays closed", 3, 2, StateClosed},
		{"at threshold opens", 3, 3, StateOpen},
		{"single failure threshold", 1, 1, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(Config{
				FailureThreshold: tt.threshold,
				SuccessThreshold: 2,
				OpenTimeout:      30 * time.Second,
			})

			for i := 0; i < tt.failures; i++ {
				b.RecordFailure()
			}

			if got := b.State(); got != tt.want {
				t.Errorf("after %d failures state = %s, want %s", tt.failures, got, tt.want)
			}
		})
	}
}

func TestClosedSuccessDoesNotResetFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: time.Minute})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordSuccess()

	counts := b.Counts()
	if counts.Failures != 2 {
		t.Errorf("failures = %d, want 2 (successes must not age failures out)", counts.Failures)
	}
	if counts.Successes != 2 {
		t.Errorf("successes = %d, want 2", counts.Successes)
	}

	// The third failure still trips the breaker.
	b.RecordFailure()
	if got := b.State(); got != StateOpen {
		t.Errorf("state = %s, want %s", got, StateOpen)
	}
}

func TestOpenRejectsUntilTimeout(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: 30 * time.Second})

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("OPEN breaker must reject before timeout")
	}

	*now = now.Add(29 * time.Second)
	if b.Allow() {
		t.Fatal("OPEN breaker must reject at 29s of a 30s timeout")
	}

	// The transition happens lazily on the next admission check.
	*now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker must admit a probe once the timeout has elapsed")
	}
	if got := b.State(); got != StateHalfOpen {
		t.Errorf("state = %s, want %s", got, StateHalfOpen)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 10 * time.Second})

	b.RecordFailure()
	*now = now.Add(11 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe admission")
	}

	b.RecordFailure()
	if got := b.State(); got != StateOpen {
		t.Errorf("state after half-open failure = %s, want %s (never CLOSED)", got, StateOpen)
	}

	// Timer restarted: still rejecting before a fresh timeout.
	*now = now.Add(5 * time.Second)
	if b.Allow() {
		t.Error("breaker must reject before the restarted timeout elapses")
	}
}

func TestHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 10 * time.Second})

	b.RecordFailure()
	*now = now.Add(11 * time.Second)
	b.Allow()

	b.RecordSuccess()
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state = %s, want %s after one of two successes", got, StateHalfOpen)
	}

	b.RecordSuccess()
	if got := b.State(); got != StateClosed {
		t.Errorf("state = %s, want %s", got, StateClosed)
	}

	counts := b.Counts()
	if counts.Failures != 0 || counts.Successes != 0 {
		t.Errorf("counters = %+v, want zeroed after state change", counts)
	}
}

func TestScenarioThreeConsecutiveFailures(t *testing.T) {
	// db-1 with failure-threshold=3: three consecutive failures open it.
	b, _ := newTestBreaker(Config{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	if got := b.State(); got != StateOpen {
		t.Errorf("state = %s, want %s", got, StateOpen)
	}
}

func TestManagerStateChangeListener(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute})

	var transitions []State
	m.RegisterListener(func(dependencyID string, from, to State) {
		if dependencyID != "db-1" {
			t.Errorf("listener got dependency %q, want db-1", dependencyID)
		}
		transitions = append(transitions, to)
	})

	b := m.GetOrCreate("db-1")
	if same := m.GetOrCreate("db-1"); same != b {
		t.Fatal("GetOrCreate must return the existing breaker")
	}

	b.RecordFailure()
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}
}
