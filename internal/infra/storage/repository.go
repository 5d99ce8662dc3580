package storage

import (
	"context"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
)

// AuditRepository persists the append-only audit trail.
type AuditRepository interface {
	// Append stores one audit entry
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// List returns the most recent entries, newest first
	List(ctx context.Context, limit int) ([]*domain.AuditEntry, error)
}

// IncidentRepository persists failure events for later retrieval.
type IncidentRepository interface {
	// Save stores a failure event
	Save(ctx context.Context, event *domain.FailureEvent) error

	// MarkResolved stamps an event as resolved
	MarkResolved(ctx context.Context, eventID string, at time.Time) error

	// CountOpen returns the number of unresolved events
	CountOpen(ctx context.Context) (int, error)

	// ListOpen returns all unresolved events
	ListOpen(ctx context.Context) ([]*domain.FailureEvent, error)
}

// TransitionRepository persists tier transition records.
type TransitionRepository interface {
	// Append stores one transition record
	Append(ctx context.Context, transition *domain.TierTransition) error

	// ListByService returns the transitions for a service, oldest first
	ListByService(ctx context.Context, serviceID string) ([]*domain.TierTransition, error)
}
