package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateGINIndexes creates the full-text search index over
// job_transitions.reason_code, so an operator can search historical
// DONE_FAILED reason codes without a sequential scan.
func CreateGINIndexes(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_job_transitions_reason_gin
		ON job_transitions USING gin(to_tsvector('english', COALESCE(reason_code, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create reason_code GIN index: %w", err)
	}
	return nil
}
