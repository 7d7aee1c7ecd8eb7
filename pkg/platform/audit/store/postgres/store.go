package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "anchorid/pkg/domain"
	audit "anchorid/pkg/platform/audit"
)

// Store implements audit.Store on PostgreSQL. The table is append-only;
// there is no update or delete path.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_events (
    id         UUID PRIMARY KEY,
    category   TEXT        NOT NULL,
    ts         TIMESTAMPTZ NOT NULL,
    user_id    TEXT        NOT NULL DEFAULT '',
    did        TEXT        NOT NULL DEFAULT '',
    action     TEXT        NOT NULL,
    decision   TEXT        NOT NULL DEFAULT '',
    reason     TEXT        NOT NULL DEFAULT '',
    receipt    TEXT        NOT NULL DEFAULT '',
    request_id TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_did_ts_idx ON audit_events (did, ts);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	const q = `
INSERT INTO audit_events (id, category, ts, user_id, did, action, decision, reason, receipt, request_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.ExecContext(ctx, q,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		event.UserID.String(),
		event.DID.String(),
		event.Action,
		event.Decision,
		event.Reason,
		event.Receipt,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByDID(ctx context.Context, did id.DID) ([]audit.Event, error) {
	const q = `
SELECT category, ts, user_id, did, action, decision, reason, receipt, request_id
FROM audit_events
WHERE did = $1
ORDER BY ts ASC`
	rows, err := s.db.QueryContext(ctx, q, did.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e      audit.Event
			cat    string
			ts     time.Time
			userID string
			didStr string
		)
		if err := rows.Scan(&cat, &ts, &userID, &didStr, &e.Action, &e.Decision, &e.Reason, &e.Receipt, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(cat)
		e.Timestamp = ts
		e.UserID = id.UserID(userID)
		e.DID = id.DID(didStr)
		events = append(events, e)
	}
	return events, rows.Err()
}
