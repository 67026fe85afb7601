package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// AuditRepository owns the append-only audit_events table.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a repository over db.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// LogEvent appends an audit record. detailsJSON is stored verbatim; pass
// "{}" when there are no extra details.
func (r *AuditRepository) LogEvent(action, actor, resourceKind, resourceID, result, detailsJSON string) error {
	if detailsJSON == "" {
		detailsJSON = "{}"
	}
	_, err := r.db.Exec(`
		INSERT INTO audit_events (id, timestamp, action, actor, resource_kind, resource_id, result, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC(), action, actor, resourceKind, resourceID, result, detailsJSON,
	)
	return classify("log_event", err)
}

// Recent returns the most recent audit events, newest first, bounded by
// limit.
func (r *AuditRepository) Recent(limit int) ([]AuditEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, timestamp, action, actor, resource_kind, resource_id, result, details
		FROM audit_events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify("recent_audit_events", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.Actor, &e.ResourceKind, &e.ResourceID, &e.Result, &e.Details); err != nil {
			return nil, classify("recent_audit_events", err)
		}
		out = append(out, e)
	}
	return out, classify("recent_audit_events", rows.Err())
}
