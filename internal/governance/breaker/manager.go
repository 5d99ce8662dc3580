package breaker

import (
	"sync"

	"github.com/vietddude/governor/internal/governance/metrics"
)

// StateChangeListener is notified when a breaker changes state.
// Listeners run inline with the transition and must not call back into the
// breaker that fired them.
type StateChangeListener func(dependencyID string, from, to State)

// Manager owns the breakers for all registered dependencies.
type Manager struct {
	mu        sync.RWMutex
	breakers  map[string]*Breaker
	cfg       Config
	listeners []StateChangeListener
}

// NewManager creates a manager creating breakers with the given config.
func NewManager(cfg Config) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
	}
}

// GetOrCreate returns the breaker for a dependency, creating it on first use.
func (m *Manager) GetOrCreate(dependencyID string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[dependencyID]; ok {
		return b
	}

	b := New(dependencyID, m.cfg)
	b.onChange = m.dispatch
	m.breakers[dependencyID] = b
	metrics.BreakerState.WithLabelValues(dependencyID).Set(stateValue(StateClosed))
	return b
}

// Get returns the breaker for a dependency, or nil if none exists.
func (m *Manager) Get(dependencyID string) *Breaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakers[dependencyID]
}

// Snapshots returns a point-in-time view of every breaker.
func (m *Manager) Snapshots() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Snapshot, len(m.breakers))
	for id, b := range m.breakers {
		out[id] = b.Snapshot()
	}
	return out
}

// RegisterListener adds a state-change listener.
func (m *Manager) RegisterListener(fn StateChangeListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) dispatch(dependencyID string, from, to State) {
	metrics.BreakerState.WithLabelValues(dependencyID).Set(stateValue(to))
	metrics.BreakerTransitions.WithLabelValues(dependencyID, string(to)).Inc()

	m.mu.RLock()
	listeners := m.listeners
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(dependencyID, from, to)
	}
}

func stateValue(s State) float64 {
	switch s {
	case StateClosed:
		return 0
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	}
	return -1
}
