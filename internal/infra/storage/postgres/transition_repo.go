package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
)

// TransitionRepo implements storage.TransitionRepository using PostgreSQL.
type TransitionRepo struct {
	db *DB
}

// NewTransitionRepo creates a new PostgreSQL transition repository.
func NewTransitionRepo(db *DB) *TransitionRepo {
	return &TransitionRepo{db: db}
}

type transitionRow struct {
	ServiceID    string `db:"service_id"`
	FromTier     string `db:"from_tier"`
	ToTier       string `db:"to_tier"`
	TriggerEvent string `db:"trigger_event"`
	Timestamp    int64  `db:"created_at"`
	QualityDelta int    `db:"quality_delta"`
}

// Append stores one transition record.
func (r *TransitionRepo) Append(ctx context.Context, transition *domain.TierTransition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tier_transitions (service_id, from_tier, to_tier, trigger_event, created_at, quality_delta)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		transition.ServiceID, transition.FromTier, transition.ToTier,
		transition.TriggerEvent, transition.Timestamp.UnixNano(), transition.QualityDelta,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// ListByService returns the transitions for a service, oldest first.
func (r *TransitionRepo) ListByService(ctx context.Context, serviceID string) ([]*domain.TierTransition, error) {
	var rows []transitionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT service_id, from_tier, to_tier, trigger_event, created_at, quality_delta
		 FROM tier_transitions WHERE service_id = $1 ORDER BY created_at ASC`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}

	out := make([]*domain.TierTransition, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.TierTransition{
			ServiceID:    row.ServiceID,
			FromTier:     row.FromTier,
			ToTier:       row.ToTier,
			TriggerEvent: row.TriggerEvent,
			Timestamp:    time.Unix(0, row.Timestamp),
			QualityDelta: row.QualityDelta,
		})
	}
	return out, nil
}
