// Package postgres persists audit events to a relational table for
// deployments that want queryable history instead of (or alongside) the JSONL
// file.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	audit "storegate/pkg/platform/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table when missing. Called once at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id            TEXT PRIMARY KEY,
			occurred_at   TIMESTAMPTZ NOT NULL,
			actor         TEXT NOT NULL,
			action        TEXT NOT NULL,
			session_id    TEXT,
			scope         TEXT,
			plan_id       TEXT,
			justification TEXT,
			result        TEXT NOT NULL,
			request_id    TEXT,
			params        JSONB
		)`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	params, err := json.Marshal(event.Params)
	if err != nil {
		return fmt.Errorf("marshal audit params: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, occurred_at, actor, action, session_id, scope, plan_id, justification, result, request_id, params)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.Timestamp, event.Actor, event.Action, event.SessionID,
		event.Scope, event.PlanID, event.Justification, event.Result, event.RequestID, params)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByAction returns events for one action name, newest first.
func (s *Store) ListByAction(ctx context.Context, action string, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, actor, action, session_id, scope, plan_id, justification, result, request_id, params
		FROM audit_events WHERE action = $1 ORDER BY occurred_at DESC LIMIT $2`, action, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var params []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &e.SessionID,
			&e.Scope, &e.PlanID, &e.Justification, &e.Result, &e.RequestID, &params); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &e.Params); err != nil {
				return nil, fmt.Errorf("decode audit params: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
