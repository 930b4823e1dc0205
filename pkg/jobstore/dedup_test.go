package jobstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecideReuse_SuccessFreshAndStale(t *testing.T) {
	in := dedupInput{status: StatusDoneSuccess, updatedAge: 3 * time.Second, successFreshWin: 5 * time.Second}
	out := decideReuse(in)
	require.True(t, out.decision.Reused)
	require.Equal(t, ReasonCachedResultAvailable, out.decision.ReasonCode)

	in.updatedAge = 6 * time.Second
	out = decideReuse(in)
	require.False(t, out.decision.Reused)
	require.Equal(t, ReasonCachedStale, out.decision.ReasonCode)
}

func TestDecideReuse_RunningBoundary(t *testing.T) {
	in := dedupInput{
		status:        StatusRunning,
		age:           10 * time.Second,
		updatedAge:    90 * time.Second,
		runningMaxAge: 90 * time.Second,
	}
	out := decideReuse(in)
	require.True(t, out.decision.Reused, "exactly at max age must be fresh (strict > is stale)")
	require.Equal(t, ReasonRunningFresh, out.decision.ReasonCode)

	in.updatedAge = 90*time.Second + time.Millisecond
	out = decideReuse(in)
	require.False(t, out.decision.Reused)
	require.True(t, out.markStale)
	require.Equal(t, ReasonStaleRunningNoHeartbeat, out.staleCode)
}

func TestDecideReuse_RunningTieBreak(t *testing.T) {
	in := dedupInput{
		status:        StatusRunning,
		age:           200 * time.Second,
		updatedAge:    200 * time.Second,
		runningMaxAge: 90 * time.Second,
	}
	out := decideReuse(in)
	require.True(t, out.markStale)
	require.Equal(t, ReasonStaleRunningNoHeartbeat, out.staleCode, "both stale -> NO_HEARTBEAT wins tie-break")
}

func TestDecideReuse_PendingClarifyStoppedReuse(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusDoneClarify, StatusDoneStopped} {
		out := decideReuse(dedupInput{status: s})
		require.True(t, out.decision.Reused)
		require.Equal(t, ReasonStatusPrefix+string(s), out.decision.ReasonCode)
	}
}

func TestDecideReuse_PreviousFailed(t *testing.T) {
	out := decideReuse(dedupInput{status: StatusDoneFailed})
	require.False(t, out.decision.Reused)
	require.Equal(t, ReasonPreviousJobFailed, out.decision.ReasonCode)
}

func TestCanTransition(t *testing.T) {
	require.True(t, canTransition(StatusPending, StatusRunning))
	require.True(t, canTransition(StatusRunning, StatusDoneSuccess))
	require.False(t, canTransition(StatusDoneSuccess, StatusRunning), "terminal states are absorbing")
	require.True(t, canTransition(StatusRunning, StatusRunning), "no-op transition is always legal")
	require.False(t, canTransition(StatusPending, StatusDoneSuccess), "cannot skip RUNNING")
}
