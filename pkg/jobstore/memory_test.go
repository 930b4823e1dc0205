package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMemory() *Memory {
	return NewMemory(Config{
		RunningMaxAge:      90 * time.Second,
		SuccessFreshWindow: 5 * time.Second,
		JobTTL:             5 * time.Minute,
	}, nil)
}

func TestMemory_CreateOrGet_DedupReuse(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	req := RequestPayload{Query: "pizza in tel aviv"}

	job1, d1, err := m.CreateOrGet(ctx, req, "key-1", Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.False(t, d1.Reused)

	require.NoError(t, m.SetResult(ctx, job1.RequestID, ResultBundle{Results: []ResultItem{{PlaceID: "a"}, {PlaceID: "b"}}}))

	job2, d2, err := m.CreateOrGet(ctx, req, "key-1", Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.True(t, d2.Reused)
	require.Equal(t, ReasonCachedResultAvailable, d2.ReasonCode)
	require.Equal(t, job1.RequestID, job2.RequestID)
}

func TestMemory_StaleRunningResurrection(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	job, _, err := m.CreateOrGet(ctx, RequestPayload{Query: "q"}, "key-2", Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, m.SetStatus(ctx, job.RequestID, StatusRunning, nil))

	// Force staleness by rewinding updatedAt/createdAt directly.
	m.jobs[job.RequestID].UpdatedAt = time.Now().Add(-100 * time.Second)
	m.jobs[job.RequestID].CreatedAt = time.Now().Add(-100 * time.Second)

	newJob, decision, err := m.CreateOrGet(ctx, RequestPayload{Query: "q"}, "key-2", Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.False(t, decision.Reused)
	require.NotEqual(t, job.RequestID, newJob.RequestID)

	prior, err := m.GetJob(ctx, job.RequestID)
	require.NoError(t, err)
	require.Equal(t, StatusDoneFailed, prior.Status)
	require.Equal(t, ReasonStaleRunningNoHeartbeat, prior.Error.FailureReason)
}

func TestMemory_StaleRunningRespectsActiveSubscribers(t *testing.T) {
	checker := fakeSubs{has: true}
	m := NewMemory(DefaultConfig(), checker)
	ctx := context.Background()

	job, _, err := m.CreateOrGet(ctx, RequestPayload{Query: "q"}, "key-3", Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, m.SetStatus(ctx, job.RequestID, StatusRunning, nil))
	m.jobs[job.RequestID].UpdatedAt = time.Now().Add(-200 * time.Second)

	_, decision, err := m.CreateOrGet(ctx, RequestPayload{Query: "q"}, "key-3", Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.True(t, decision.Reused, "active subscribers extend liveness instead of stale-marking")

	prior, _ := m.GetJob(ctx, job.RequestID)
	require.Equal(t, StatusRunning, prior.Status)
}

type fakeSubs struct{ has bool }

func (f fakeSubs) HasActiveSubscribers(requestID string) bool { return f.has }

func TestMemory_SetStatus_RefusesNonForwardTransition(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	job, _, _ := m.CreateOrGet(ctx, RequestPayload{}, "key-4", Identity{SessionID: "s1"})
	require.NoError(t, m.SetResult(ctx, job.RequestID, ResultBundle{}))

	err := m.SetStatus(ctx, job.RequestID, StatusRunning, nil)
	require.Error(t, err, "terminal states must be absorbing")
}

func TestMemory_ProgressNeverDecreases(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	job, _, _ := m.CreateOrGet(ctx, RequestPayload{}, "key-5", Identity{SessionID: "s1"})
	require.NoError(t, m.SetStatus(ctx, job.RequestID, StatusRunning, intPtr(40)))
	require.NoError(t, m.SetStatus(ctx, job.RequestID, StatusRunning, intPtr(10)))

	got, _ := m.GetJob(ctx, job.RequestID)
	require.Equal(t, 40, got.Progress)
}

func TestMemory_SetStatus_Idempotent(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	job, _, _ := m.CreateOrGet(ctx, RequestPayload{}, "key-6", Identity{SessionID: "s1"})
	require.NoError(t, m.SetStatus(ctx, job.RequestID, StatusRunning, nil))
	require.NoError(t, m.SetStatus(ctx, job.RequestID, StatusRunning, nil))
}

func intPtr(v int) *int { return &v }
