package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
)

// IncidentRepo implements storage.IncidentRepository using PostgreSQL.
type IncidentRepo struct {
	db *DB
}

// NewIncidentRepo creates a new PostgreSQL incident repository.
func NewIncidentRepo(db *DB) *IncidentRepo {
	return &IncidentRepo{db: db}
}

type incidentRow struct {
	ID           string        `db:"id"`
	DependencyID string        `db:"dependency_id"`
	Kind         string        `db:"kind"`
	Severity     string        `db:"severity"`
	DetectedAt   int64         `db:"detected_at"`
	ResolvedAt   sql.NullInt64 `db:"resolved_at"`
	ErrorRate    float64       `db:"error_rate"`
	LatencyMs    float64       `db:"latency_ms"`
	QueueDepth   int           `db:"queue_depth"`
}

// Save stores a failure event.
func (r *IncidentRepo) Save(ctx context.Context, event *domain.FailureEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incidents (id, dependency_id, kind, severity, detected_at, error_rate, latency_ms, queue_depth)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.DependencyID, string(event.Kind), string(event.Severity),
		event.DetectedAt.UnixNano(), event.Metrics.ErrorRate, event.Metrics.LatencyMs,
		event.Metrics.QueueDepth,
	)
	if err != nil {
		return fmt.Errorf("failed to save incident: %w", err)
	}
	return nil
}

// MarkResolved stamps an event as resolved.
func (r *IncidentRepo) MarkResolved(ctx context.Context, eventID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE incidents SET resolved_at = $1 WHERE id = $2 AND resolved_at IS NULL`,
		at.UnixNano(), eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve incident: %w", err)
	}
	return nil
}

// CountOpen returns the number of unresolved events.
func (r *IncidentRepo) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM incidents WHERE resolved_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to count open incidents: %w", err)
	}
	return count, nil
}

// ListOpen returns all unresolved events.
func (r *IncidentRepo) ListOpen(ctx context.Context) ([]*domain.FailureEvent, error) {
	var rows []incidentRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, dependency_id, kind, severity, detected_at, resolved_at, error_rate, latency_ms, queue_depth
		 FROM incidents WHERE resolved_at IS NULL ORDER BY detected_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}

	out := make([]*domain.FailureEvent, 0, len(rows))
	for _, row := range rows {
		event := &domain.FailureEvent{
			ID:           row.ID,
			DependencyID: row.DependencyID,
			Kind:         domain.FailureKind(row.Kind),
			Severity:     domain.Severity(row.Severity),
			DetectedAt:   time.Unix(0, row.DetectedAt),
			Metrics: domain.MetricsSnapshot{
				ErrorRate:  row.ErrorRate,
				LatencyMs:  row.LatencyMs,
				QueueDepth: row.QueueDepth,
			},
		}
		if row.ResolvedAt.Valid {
			at := time.Unix(0, row.ResolvedAt.Int64)
			event.ResolvedAt = &at
		}
		out = append(out, event)
	}
	return out, nil
}
