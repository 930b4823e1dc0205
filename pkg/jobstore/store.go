package jobstore

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable signals a write-path backend failure. Per spec
// §4.B, read-path failures degrade to a null result plus a warning log
// instead of this error.
var ErrStoreUnavailable = errors.New("jobstore: backend unavailable")

// Identity identifies the caller creating or reading a job.
type Identity struct {
	SessionID string
	UserID    string // empty if anonymous
}

// Store is the abstract persistence contract for Jobs. Two
// implementations satisfy it: Memory (in-process) and Redis (external
// key-value backend). Both guarantee a logical per-requestId critical
// section around every mutation.
type Store interface {
	// CreateOrGet resolves the dedup decision for (request, idempotencyKey)
	// against any existing job sharing that key, creating a fresh job
	// when no reuse applies.
	CreateOrGet(ctx context.Context, req RequestPayload, idempotencyKey string, identity Identity) (*Job, ReuseDecision, error)

	// SetStatus idempotently advances status/progress. Non-forward
	// transitions are refused (returned as an error), except status ==
	// current status, which is a no-op. A progress value below the
	// current one is ignored, so progress never decreases.
	SetStatus(ctx context.Context, requestID string, status Status, progress *int) error

	// UpdateHeartbeat bumps updatedAt. No-op if the job is terminal or
	// missing.
	UpdateHeartbeat(ctx context.Context, requestID string) error

	SetResult(ctx context.Context, requestID string, result ResultBundle) error
	SetError(ctx context.Context, requestID string, errRec ErrorRecord) error
	SetAssist(ctx context.Context, requestID string, status Status, assist AssistPayload) error

	GetStatus(ctx context.Context, requestID string) (Status, error)
	GetResult(ctx context.Context, requestID string) (*Job, error)
	GetJob(ctx context.Context, requestID string) (*Job, error)
	DeleteJob(ctx context.Context, requestID string) error

	SetCandidatePool(ctx context.Context, requestID string, items []ResultItem) error
	GetCandidatePool(ctx context.Context, requestID string) ([]ResultItem, error)

	// GetRunningJobs returns a snapshot of all RUNNING jobs, for the
	// staleness sweep.
	GetRunningJobs(ctx context.Context) ([]*Job, error)
}

// Config bundles the dedup thresholds and TTLs every Store
// implementation enforces identically.
type Config struct {
	RunningMaxAge      time.Duration
	SuccessFreshWindow time.Duration
	JobTTL             time.Duration // terminal jobs expire after this
	TicketTTL          time.Duration
	SessionTTL         time.Duration
	CandidatePoolTTL   time.Duration
}

// DefaultConfig matches the External Interfaces contract's defaults.
func DefaultConfig() Config {
	return Config{
		RunningMaxAge:      90 * time.Second,
		SuccessFreshWindow: 5 * time.Second,
		JobTTL:             5 * time.Minute,
		TicketTTL:          60 * time.Second,
		SessionTTL:         7 * 24 * time.Hour,
		CandidatePoolTTL:   5 * time.Minute,
	}
}
