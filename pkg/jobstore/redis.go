package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// key prefixes, matching the persisted state layout contract.
const (
	keyJob       = "job:"
	keyJobIdem   = "job_idem:"
	keyPool      = "candidate_pool:"
	lockPrefix   = "job_lock:"
	lockTTL      = 2 * time.Second
	lockRetry    = 20 * time.Millisecond
	lockAttempts = 50
)

// Redis is the external key-value backend Store implementation. SetNX
// on a per-idempotency-key lock gives the atomic critical section spec
// §4.B and §5 require; native key TTLs expire terminal jobs and
// candidate pools directly instead of a background sweep.
type Redis struct {
	client *redis.Client
	cfg    Config
	subs   SubscriberChecker
	now    func() time.Time
}

// NewRedis wires an existing go-redis client into the Store contract.
func NewRedis(client *redis.Client, cfg Config, subs SubscriberChecker) *Redis {
	return &Redis{client: client, cfg: cfg, subs: subs, now: time.Now}
}

// withLock acquires a short-lived SetNX lock keyed on idempotencyKey,
// runs fn, and releases the lock. This is the Redis analogue of Memory's
// mutex: it serializes CreateOrGet's check-then-write sequence per
// idempotency key so at most one NEW_JOB decision wins a race.
func (r *Redis) withLock(ctx context.Context, idempotencyKey string, fn func() error) error {
	lockKey := lockPrefix + idempotencyKey
	var acquired bool
	for i := 0; i < lockAttempts; i++ {
		ok, err := r.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil {
			return fmt.Errorf("%w: acquire lock: %v", ErrStoreUnavailable, err)
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetry):
		}
	}
	if !acquired {
		return fmt.Errorf("%w: lock contention on %s", ErrStoreUnavailable, idempotencyKey)
	}
	defer r.client.Del(context.Background(), lockKey)
	return fn()
}

func (r *Redis) getJob(ctx context.Context, requestID string) (*Job, error) {
	raw, err := r.client.Get(ctx, keyJob+requestID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Warn("jobstore: read failed, treating job as missing", "request_id", requestID, "error", err)
		return nil, nil // read-path failure degrades to a null result rather than an error
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, nil
	}
	return &job, nil
}

func (r *Redis) putJob(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%w: marshal job: %v", ErrStoreUnavailable, err)
	}
	ttl := time.Duration(0)
	if job.Status.Terminal() {
		ttl = r.cfg.JobTTL
	}
	if err := r.client.Set(ctx, keyJob+job.RequestID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Redis) CreateOrGet(ctx context.Context, req RequestPayload, idempotencyKey string, identity Identity) (*Job, ReuseDecision, error) {
	var result *Job
	var decision ReuseDecision

	err := r.withLock(ctx, idempotencyKey, func() error {
		now := r.now()

		rid, err := r.client.Get(ctx, keyJobIdem+idempotencyKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		if rid != "" {
			existing, _ := r.getJob(ctx, rid)
			if existing != nil {
				out := decideReuse(dedupInput{
					status:          existing.Status,
					age:             now.Sub(existing.CreatedAt),
					updatedAge:      now.Sub(existing.UpdatedAt),
					runningMaxAge:   r.cfg.RunningMaxAge,
					successFreshWin: r.cfg.SuccessFreshWindow,
				})

				if out.markStale {
					if r.subs == nil || !r.subs.HasActiveSubscribers(existing.RequestID) {
						if !existing.Status.Terminal() {
							existing.Status = StatusDoneFailed
							existing.UpdatedAt = now
							existing.CompletedAt = &now
							existing.Error = &ErrorRecord{
								Code:          "STALE_RUNNING",
								Message:       "prior attempt abandoned: " + out.staleCode,
								FailureReason: out.staleCode,
							}
							if err := r.putJob(ctx, existing); err != nil {
								return err
							}
						}
					} else {
						existing.UpdatedAt = now
						if err := r.putJob(ctx, existing); err != nil {
							return err
						}
						result, decision = existing, ReuseDecision{Reused: true, ReasonCode: ReasonRunningFresh}
						return nil
					}
				}

				if out.decision.Reused {
					result, decision = existing, out.decision
					return nil
				}
			}
		}

		job := &Job{
			RequestID:      uuid.NewString(),
			IdempotencyKey: idempotencyKey,
			OwnerSessionID: identity.SessionID,
			Status:         StatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
			Request:        req,
		}
		if identity.UserID != "" {
			uid := identity.UserID
			job.OwnerUserID = &uid
		}
		if err := r.putJob(ctx, job); err != nil {
			return err
		}
		if err := r.client.Set(ctx, keyJobIdem+idempotencyKey, job.RequestID, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		result, decision = job, ReuseDecision{Reused: false, ReasonCode: "NEW_JOB"}
		return nil
	})

	return result, decision, err
}

func (r *Redis) SetStatus(ctx context.Context, requestID string, status Status, progress *int) error {
	job, err := r.getJob(ctx, requestID)
	if err != nil || job == nil {
		return nil
	}
	if !canTransition(job.Status, status) {
		return fmt.Errorf("jobstore: illegal transition %s -> %s for %s", job.Status, status, requestID)
	}
	now := r.now()
	job.Status = status
	if progress != nil && *progress > job.Progress {
		job.Progress = *progress
	}
	job.UpdatedAt = now
	if status.Terminal() && job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	return r.putJob(ctx, job)
}

func (r *Redis) UpdateHeartbeat(ctx context.Context, requestID string) error {
	job, err := r.getJob(ctx, requestID)
	if err != nil || job == nil || job.Status.Terminal() {
		return nil
	}
	job.UpdatedAt = r.now()
	return r.putJob(ctx, job)
}

func (r *Redis) SetResult(ctx context.Context, requestID string, result ResultBundle) error {
	job, err := r.getJob(ctx, requestID)
	if err != nil || job == nil || job.Status.Terminal() {
		return nil
	}
	now := r.now()
	job.Status = StatusDoneSuccess
	job.Progress = 100
	job.Result = &result
	job.UpdatedAt = now
	job.CompletedAt = &now
	return r.putJob(ctx, job)
}

func (r *Redis) SetError(ctx context.Context, requestID string, errRec ErrorRecord) error {
	job, err := r.getJob(ctx, requestID)
	if err != nil || job == nil || job.Status.Terminal() {
		return nil
	}
	now := r.now()
	job.Status = StatusDoneFailed
	job.Error = &errRec
	job.UpdatedAt = now
	job.CompletedAt = &now
	return r.putJob(ctx, job)
}

func (r *Redis) SetAssist(ctx context.Context, requestID string, status Status, assist AssistPayload) error {
	job, err := r.getJob(ctx, requestID)
	if err != nil || job == nil {
		return nil
	}
	if !canTransition(job.Status, status) {
		return fmt.Errorf("jobstore: illegal transition %s -> %s for %s", job.Status, status, requestID)
	}
	now := r.now()
	job.Status = status
	job.Assist = &assist
	job.UpdatedAt = now
	job.CompletedAt = &now
	return r.putJob(ctx, job)
}

func (r *Redis) GetStatus(ctx context.Context, requestID string) (Status, error) {
	job, err := r.getJob(ctx, requestID)
	if err != nil || job == nil {
		return "", nil
	}
	return job.Status, nil
}

func (r *Redis) GetResult(ctx context.Context, requestID string) (*Job, error) {
	return r.getJob(ctx, requestID)
}

func (r *Redis) GetJob(ctx context.Context, requestID string) (*Job, error) {
	return r.getJob(ctx, requestID)
}

func (r *Redis) DeleteJob(ctx context.Context, requestID string) error {
	job, _ := r.getJob(ctx, requestID)
	if job != nil {
		r.client.Del(ctx, keyJobIdem+job.IdempotencyKey)
	}
	r.client.Del(ctx, keyJob+requestID, keyPool+requestID)
	return nil
}

func (r *Redis) SetCandidatePool(ctx context.Context, requestID string, items []ResultItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: marshal candidate pool: %v", ErrStoreUnavailable, err)
	}
	if err := r.client.Set(ctx, keyPool+requestID, raw, r.cfg.CandidatePoolTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Redis) GetCandidatePool(ctx context.Context, requestID string) ([]ResultItem, error) {
	raw, err := r.client.Get(ctx, keyPool+requestID).Bytes()
	if err != nil {
		return nil, nil
	}
	var items []ResultItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil
	}
	return items, nil
}

// GetRunningJobs scans job:* keys. Redis's TTL-based expiry already
// retires terminal jobs, so the sweep here only needs to classify what
// SCAN returns — it never needs its own index of running jobs.
func (r *Redis) GetRunningJobs(ctx context.Context) ([]*Job, error) {
	var out []*Job
	iter := r.client.Scan(ctx, 0, keyJob+"*", 200).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			continue
		}
		if job.Status == StatusRunning {
			out = append(out, &job)
		}
	}
	if err := iter.Err(); err != nil {
		return out, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}
