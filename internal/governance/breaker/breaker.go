package breaker

import (
	"sync"
	"time"
)

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds circuit breaker thresholds.
type Config struct {
	FailureThreshold int           // failures in CLOSED before tripping
	SuccessThreshold int           // successes in HALF_OPEN before closing
	OpenTimeout      time.Duration // wait before a probe is allowed
}

// DefaultConfig returns sensible defaults for dependency gating.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// Counts is a snapshot of the breaker's counters.
type Counts struct {
	Failures  int
	Successes int
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	DependencyID string    `json:"dependency_id"`
	State        State     `json:"state"`
	Failures     int       `json:"failures"`
	Successes    int       `json:"successes"`
	LastFailure  time.Time `json:"last_failure"`
}

// Breaker is a per-dependency three-state admission gate. All state changes
// happen under one mutex; the OPEN to HALF_OPEN transition is evaluated
// lazily on Allow rather than by a timer.
type Breaker struct {
	mu sync.Mutex

	dependencyID string
	cfg          Config

	state       State
	failures    int
	successes   int
	lastFailure time.Time
	openedAt    time.Time

	now      func() time.Time
	onChange func(dependencyID string, from, to State)
}

// New creates a breaker in the CLOSED state.
func New(dependencyID string, cfg Config) *Breaker {
	return &Breaker{
		dependencyID: dependencyID,
		cfg:          cfg,
		state:        StateClosed,
		now:          time.Now,
	}
}

// Allow is the single admission decision point. In OPEN it performs the
// timeout check as a side-effecting read: once OpenTimeout has elapsed the
// breaker moves to HALF_OPEN and the call admits a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	}
	return false
}

// RecordSuccess registers a successful call. In CLOSED it only increments the
// success counter; the failure counter is never aged out by successes. In
// HALF_OPEN reaching SuccessThreshold closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.successes++
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

// RecordFailure registers a failed call. CLOSED failures accumulate until
// FailureThreshold trips the breaker; any HALF_OPEN failure reopens it
// immediately and restarts the timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns the current counter values.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{Failures: b.failures, Successes: b.successes}
}

// Snapshot returns a point-in-time view of the breaker.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		DependencyID: b.dependencyID,
		State:        b.state,
		Failures:     b.failures,
		Successes:    b.successes,
		LastFailure:  b.lastFailure,
	}
}

// Reset forces the breaker back to CLOSED with fresh counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		b.transition(StateClosed)
	} else {
		b.failures = 0
		b.successes = 0
	}
}

// transition moves to a new state, resetting counters. Caller holds the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.onChange != nil {
		b.onChange(b.dependencyID, from, to)
	}
}
