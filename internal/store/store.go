// Package store implements the supervisor's supplemented persisted
// history (SPEC_FULL.md §4.20: "new SQLite tables (sessions,
// param_audit) exercising modernc.org/sqlite beyond the single JSON
// file spec.md §6 names as in-scope; this is additive telemetry, not a
// replacement for the JSON param file"), grounded in the teacher's
// internal/store (sqlite open/migrate/Close shape, slog logging) with
// the chat/blob schema replaced by conversation-session and
// param-change history rows.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists conversation-session and param-change history in
// SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	trigger TEXT NOT NULL,
	started_at_unix_ms INTEGER NOT NULL,
	ended_at_unix_ms INTEGER,
	turn_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at_unix_ms);

CREATE TABLE IF NOT EXISTS param_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	value_json TEXT NOT NULL,
	changed_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_param_audit_name ON param_audit(name, changed_at_unix_ms);
`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	slog.Debug("sqlite migrations applied")
	return nil
}

// SessionRow is a persisted conversation session.
type SessionRow struct {
	SessionID       string
	Trigger         string
	StartedAtUnixMS int64
	EndedAtUnixMS   sql.NullInt64
	TurnCount       int64
}

// RecordSessionStart inserts a new session row.
func (s *Store) RecordSessionStart(ctx context.Context, sessionID, trigger string, startedAtUnixMS int64) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	const q = `INSERT INTO sessions (session_id, trigger, started_at_unix_ms) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, trigger, startedAtUnixMS); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	slog.Debug("session started", "session_id", sessionID, "trigger", trigger)
	return nil
}

// RecordSessionEnd marks a session ended and sets its final turn count.
func (s *Store) RecordSessionEnd(ctx context.Context, sessionID string, endedAtUnixMS, turnCount int64) error {
	const q = `UPDATE sessions SET ended_at_unix_ms = ?, turn_count = ? WHERE session_id = ?`
	result, err := s.db.ExecContext(ctx, q, endedAtUnixMS, turnCount, sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	slog.Debug("session ended", "session_id", sessionID, "turn_count", turnCount)
	return nil
}

// RecentSessions returns the most recently started sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT session_id, trigger, started_at_unix_ms, ended_at_unix_ms, turn_count
FROM sessions
ORDER BY started_at_unix_ms DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.SessionID, &r.Trigger, &r.StartedAtUnixMS, &r.EndedAtUnixMS, &r.TurnCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ParamAuditRow is one persisted parameter-change event.
type ParamAuditRow struct {
	Name            string
	Value           any
	ChangedAtUnixMS int64
}

// RecordParamChange appends one audit row for a successful param.Set.
// Intended to be passed (adapted) as a params.ChangeFunc alongside
// params.Store.OnChange, not in place of it.
func (s *Store) RecordParamChange(ctx context.Context, name string, value any, changedAtUnixMS int64) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal param value: %w", err)
	}
	const q = `INSERT INTO param_audit (name, value_json, changed_at_unix_ms) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, name, string(valueJSON), changedAtUnixMS); err != nil {
		return fmt.Errorf("insert param audit row: %w", err)
	}
	return nil
}

// RecentParamAudit returns the most recent param-change events, newest first.
func (s *Store) RecentParamAudit(ctx context.Context, limit int) ([]ParamAuditRow, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT name, value_json, changed_at_unix_ms
FROM param_audit
ORDER BY changed_at_unix_ms DESC, id DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query param audit: %w", err)
	}
	defer rows.Close()

	var out []ParamAuditRow
	for rows.Next() {
		var name, valueJSON string
		var changedAt int64
		if err := rows.Scan(&name, &valueJSON, &changedAt); err != nil {
			return nil, fmt.Errorf("scan param audit row: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
			return nil, fmt.Errorf("unmarshal param audit value: %w", err)
		}
		out = append(out, ParamAuditRow{Name: name, Value: value, ChangedAtUnixMS: changedAt})
	}
	return out, rows.Err()
}

// RecordParamChangeNow is a convenience wrapper using wall-clock time,
// suitable for direct registration as a params.ChangeFunc:
//
//	reg.OnChange(func(name string, value any) { store.RecordParamChangeNow(context.Background(), name, value) })
func (s *Store) RecordParamChangeNow(ctx context.Context, name string, value any) {
	if err := s.RecordParamChange(ctx, name, value, time.Now().UnixMilli()); err != nil {
		slog.Warn("param audit write failed", "name", name, "err", err)
	}
}
