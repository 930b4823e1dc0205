// Package audit implements the Audit/Event Log: a
// write-only, best-effort sink that records every status transition and
// stage timing for later operational querying. It is never on the
// critical path — write failures are logged and swallowed, never
// propagated as a request failure.
package audit

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// Sink persists job transitions and stage events via plain SQL against
// the tables pkg/database's migrations create. It implements
// pkg/pipeline.AuditSink.
type Sink struct {
	db *sql.DB
}

func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) RecordTransition(ctx context.Context, requestID string, from, to jobstore.Status, reasonCode string) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_transitions (request_id, from_status, to_status, reason_code) VALUES ($1, $2, $3, $4)`,
		requestID, string(from), string(to), reasonCode,
	)
	if err != nil {
		slog.Warn("audit: failed to record transition", "request_id", requestID, "error", err)
	}
}

func (s *Sink) RecordStageEvent(ctx context.Context, requestID, stageName string, durationMs int64, status string) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_events (request_id, stage_name, duration_ms, status) VALUES ($1, $2, $3, $4)`,
		requestID, stageName, durationMs, status,
	)
	if err != nil {
		slog.Warn("audit: failed to record stage event", "request_id", requestID, "stage", stageName, "error", err)
	}
}

// PurgeOlderThan deletes job_transitions and stage_events rows older
// than retentionDays, returning the total row count removed. Used by
// pkg/cleanup's retention loop; the audit log has no query-time TTL of
// its own, so something has to reap it.
func (s *Sink) PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	for _, table := range []string{"job_transitions", "stage_events"} {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE created_at < now() - ($1 || ' days')::interval`,
			retentionDays,
		)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
