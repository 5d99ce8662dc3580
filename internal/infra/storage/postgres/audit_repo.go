package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
)

// AuditRepo implements storage.AuditRepository using PostgreSQL.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new PostgreSQL audit repository.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

type auditRow struct {
	ID        string `db:"id"`
	Action    string `db:"action"`
	Component string `db:"component"`
	Details   string `db:"details"`
	Timestamp int64  `db:"created_at"`
	Checksum  string `db:"checksum"`
}

// Append stores one audit entry. The trail is append-only; rows are never
// updated or deleted.
func (r *AuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, component, details, created_at, checksum)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Action, entry.Component, entry.Details,
		entry.Timestamp.UnixNano(), entry.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []auditRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, action, component, details, created_at, checksum
		 FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	out := make([]*domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.AuditEntry{
			ID:        row.ID,
			Action:    row.Action,
			Component: row.Component,
			Details:   row.Details,
			Timestamp: time.Unix(0, row.Timestamp),
			Checksum:  row.Checksum,
		})
	}
	return out, nil
}
