package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the in-process Store implementation. A single mutex guards
// both index maps; every mutating operation holds it for its full
// check-then-write sequence, which is what gives CreateOrGet and the
// staleness sweep their "at-most-one concurrent pipeline execution per
// requestId" guarantee.
type Memory struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	idem  map[string]string // idempotencyKey -> requestId
	pools map[string][]ResultItem

	cfg        Config
	subs       SubscriberChecker
	now        func() time.Time
}

// NewMemory constructs an in-memory job store. subs may be nil (no
// liveness check performed before stale-marking, which then always
// proceeds).
func NewMemory(cfg Config, subs SubscriberChecker) *Memory {
	return &Memory{
		jobs:  make(map[string]*Job),
		idem:  make(map[string]string),
		pools: make(map[string][]ResultItem),
		cfg:   cfg,
		subs:  subs,
		now:   time.Now,
	}
}

func (m *Memory) CreateOrGet(ctx context.Context, req RequestPayload, idempotencyKey string, identity Identity) (*Job, ReuseDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if rid, ok := m.idem[idempotencyKey]; ok {
		existing, ok := m.jobs[rid]
		if ok {
			out := decideReuse(dedupInput{
				status:          existing.Status,
				age:             now.Sub(existing.CreatedAt),
				updatedAge:      now.Sub(existing.UpdatedAt),
				runningMaxAge:   m.cfg.RunningMaxAge,
				successFreshWin: m.cfg.SuccessFreshWindow,
			})

			if out.markStale {
				if m.subs == nil || !m.subs.HasActiveSubscribers(existing.RequestID) {
					m.markStaleLocked(existing, out.staleCode, now)
				} else {
					// Active subscribers: extend liveness by one heartbeat
					// window instead of marking stale, then treat as reused.
					existing.UpdatedAt = now
					return existing.clone(), ReuseDecision{Reused: true, ReasonCode: ReasonRunningFresh}, nil
				}
			}

			if out.decision.Reused {
				return existing.clone(), out.decision, nil
			}
			// NEW_JOB: fall through to create a fresh job below, replacing
			// the idempotency mapping.
		}
	}

	job := &Job{
		RequestID:      uuid.NewString(),
		IdempotencyKey: idempotencyKey,
		OwnerSessionID: identity.SessionID,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Progress:       0,
		Request:        req,
	}
	if identity.UserID != "" {
		uid := identity.UserID
		job.OwnerUserID = &uid
	}

	m.jobs[job.RequestID] = job
	m.idem[idempotencyKey] = job.RequestID

	return job.clone(), ReuseDecision{Reused: false, ReasonCode: "NEW_JOB"}, nil
}

// markStaleLocked idempotently transitions job to DONE_FAILED. Re-checks
// terminality before writing so a concurrent caller cannot double-mark it
// (stale-marking is idempotent: re-marking an already-stale job is a no-op).
func (m *Memory) markStaleLocked(job *Job, reasonCode string, now time.Time) {
	if job.Status.Terminal() {
		return
	}
	job.Status = StatusDoneFailed
	job.UpdatedAt = now
	job.CompletedAt = &now
	job.Error = &ErrorRecord{
		Code:          "STALE_RUNNING",
		Message:       "prior attempt abandoned: " + reasonCode,
		FailureReason: reasonCode,
	}
}

func (m *Memory) SetStatus(ctx context.Context, requestID string, status Status, progress *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[requestID]
	if !ok {
		return nil
	}
	if !canTransition(job.Status, status) {
		return fmt.Errorf("jobstore: illegal transition %s -> %s for %s", job.Status, status, requestID)
	}
	now := m.now()
	if job.Status != status {
		job.Status = status
	}
	if progress != nil && *progress > job.Progress {
		job.Progress = *progress
	}
	job.UpdatedAt = now
	if status.Terminal() && job.CompletedAt == nil {
		t := now
		job.CompletedAt = &t
	}
	return nil
}

func (m *Memory) UpdateHeartbeat(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[requestID]
	if !ok || job.Status.Terminal() {
		return nil
	}
	job.UpdatedAt = m.now()
	return nil
}

func (m *Memory) SetResult(ctx context.Context, requestID string, result ResultBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[requestID]
	if !ok {
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}
	now := m.now()
	job.Status = StatusDoneSuccess
	job.Progress = 100
	job.Result = &result
	job.UpdatedAt = now
	job.CompletedAt = &now
	return nil
}

func (m *Memory) SetError(ctx context.Context, requestID string, errRec ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[requestID]
	if !ok {
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}
	now := m.now()
	job.Status = StatusDoneFailed
	job.Error = &errRec
	job.UpdatedAt = now
	job.CompletedAt = &now
	return nil
}

func (m *Memory) SetAssist(ctx context.Context, requestID string, status Status, assist AssistPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[requestID]
	if !ok {
		return nil
	}
	if !canTransition(job.Status, status) {
		return fmt.Errorf("jobstore: illegal transition %s -> %s for %s", job.Status, status, requestID)
	}
	now := m.now()
	job.Status = status
	job.Assist = &assist
	job.UpdatedAt = now
	job.CompletedAt = &now
	return nil
}

func (m *Memory) GetStatus(ctx context.Context, requestID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[requestID]
	if !ok {
		return "", nil
	}
	return job.Status, nil
}

func (m *Memory) GetResult(ctx context.Context, requestID string) (*Job, error) {
	return m.GetJob(ctx, requestID)
}

func (m *Memory) GetJob(ctx context.Context, requestID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[requestID]
	if !ok {
		return nil, nil
	}
	return job.clone(), nil
}

func (m *Memory) DeleteJob(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[requestID]
	if ok {
		delete(m.idem, job.IdempotencyKey)
	}
	delete(m.jobs, requestID)
	delete(m.pools, requestID)
	return nil
}

func (m *Memory) SetCandidatePool(ctx context.Context, requestID string, items []ResultItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[requestID] = append([]ResultItem(nil), items...)
	return nil
}

func (m *Memory) GetCandidatePool(ctx context.Context, requestID string) ([]ResultItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.pools[requestID]
	if !ok {
		return nil, nil
	}
	return append([]ResultItem(nil), items...), nil
}

func (m *Memory) GetRunningJobs(ctx context.Context) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Job
	for _, j := range m.jobs {
		if j.Status == StatusRunning {
			out = append(out, j.clone())
		}
	}
	return out, nil
}
