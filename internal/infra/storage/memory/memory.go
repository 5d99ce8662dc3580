package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
)

// MemoryStorage backs the repositories when no database is configured.
type MemoryStorage struct {
	audit       []*domain.AuditEntry
	incidents   map[string]*domain.FailureEvent
	transitions map[string][]*domain.TierTransition
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		incidents:   make(map[string]*domain.FailureEvent),
		transitions: make(map[string][]*domain.TierTransition),
	}
}

// -----------------------------------------------------------------------------
// Audit Repository
// -----------------------------------------------------------------------------

type AuditRepo struct {
	store *MemoryStorage
}

func NewAuditRepo(store *MemoryStorage) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *entry
	r.store.audit = append(r.store.audit, &cp)
	return nil
}

func (r *AuditRepo) List(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	n := len(r.store.audit)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*domain.AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *r.store.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Incident Repository
// -----------------------------------------------------------------------------

type IncidentRepo struct {
	store *MemoryStorage
}

func NewIncidentRepo(store *MemoryStorage) *IncidentRepo {
	return &IncidentRepo{store: store}
}

func (r *IncidentRepo) Save(ctx context.Context, event *domain.FailureEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *event
	r.store.incidents[event.ID] = &cp
	return nil
}

func (r *IncidentRepo) MarkResolved(ctx context.Context, eventID string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if event, ok := r.store.incidents[eventID]; ok && event.ResolvedAt == nil {
		event.ResolvedAt = &at
	}
	return nil
}

func (r *IncidentRepo) CountOpen(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, event := range r.store.incidents {
		if event.ResolvedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *IncidentRepo) ListOpen(ctx context.Context) ([]*domain.FailureEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.FailureEvent
	for _, event := range r.store.incidents {
		if event.ResolvedAt == nil {
			cp := *event
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Transition Repository
// -----------------------------------------------------------------------------

type TransitionRepo struct {
	store *MemoryStorage
}

func NewTransitionRepo(store *MemoryStorage) *TransitionRepo {
	return &TransitionRepo{store: store}
}

func (r *TransitionRepo) Append(ctx context.Context, transition *domain.TierTransition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *transition
	r.store.transitions[transition.ServiceID] = append(r.store.transitions[transition.ServiceID], &cp)
	return nil
}

func (r *TransitionRepo) ListByService(ctx context.Context, serviceID string) ([]*domain.TierTransition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	list := r.store.transitions[serviceID]
	out := make([]*domain.TierTransition, 0, len(list))
	for _, t := range list {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}
