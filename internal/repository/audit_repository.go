package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"pollengine/internal/domain"
	"pollengine/pkg/database"
)

// AuditRepository writes and reads the append-only poll audit log.
type AuditRepository struct {
	db *database.PostgresDB
}

func NewAuditRepository(db *database.PostgresDB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts an entry and fills in its storage-assigned sequence.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal audit detail: %w", err)
		}
	}

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO audit_log (id, poll_id, actor, action, option_id, ts, detail)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING seq`,
		entry.ID, entry.PollID, entry.Actor, string(entry.Action),
		entry.OptionID, entry.Timestamp, detail).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByPoll returns a poll's audit trail ordered by timestamp, then by
// insertion sequence for same-timestamp entries.
func (r *AuditRepository) ListByPoll(ctx context.Context, pollID string) ([]domain.AuditLogEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT seq, id, poll_id, actor, action, COALESCE(option_id, ''), ts, detail
		FROM audit_log
		WHERE poll_id = $1
		ORDER BY ts, seq`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var (
			e      domain.AuditLogEntry
			action string
			detail []byte
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.PollID, &e.Actor, &action,
			&e.OptionID, &e.Timestamp, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = domain.AuditAction(action)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
