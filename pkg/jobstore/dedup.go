package jobstore

import "time"

// SubscriberChecker lets the Job Store ask whether a requestId still has
// live WebSocket subscribers before marking a stale RUNNING job's prior
// attempt as failed. Implemented by the realtime Hub; kept as a narrow
// interface here so jobstore never imports the realtime package.
type SubscriberChecker interface {
	HasActiveSubscribers(requestID string) bool
}

// dedupInput is the pure-function input to the dedup decision table:
// (status, updatedAge, age) -> decision. It takes no store
// dependency so it can be tested as a pure function.
type dedupInput struct {
	status          Status
	age             time.Duration // time.Since(createdAt)
	updatedAge      time.Duration // time.Since(updatedAt)
	runningMaxAge   time.Duration
	successFreshWin time.Duration
}

type dedupOutput struct {
	decision   ReuseDecision
	markStale  bool   // true => caller must transition the prior job to DONE_FAILED
	staleCode  string // failureReason to use when markStale is true
}

// decideReuse implements the dedup decision matrix. It is
// a pure function of its inputs: the same (status, updatedAge, age)
// triple always yields the same decision.
func decideReuse(in dedupInput) dedupOutput {
	switch in.status {
	case StatusDoneSuccess:
		if in.updatedAge <= in.successFreshWin {
			return dedupOutput{decision: ReuseDecision{Reused: true, ReasonCode: ReasonCachedResultAvailable}}
		}
		return dedupOutput{decision: ReuseDecision{Reused: false, ReasonCode: ReasonCachedStale}}

	case StatusDoneFailed:
		return dedupOutput{decision: ReuseDecision{Reused: false, ReasonCode: ReasonPreviousJobFailed}}

	case StatusRunning:
		// RUNNING job exactly at updatedAge == runningMaxAge is fresh;
		// strict '>' is stale.
		updatedStale := in.updatedAge > in.runningMaxAge
		ageStale := in.age > in.runningMaxAge
		if !updatedStale && !ageStale {
			return dedupOutput{decision: ReuseDecision{Reused: true, ReasonCode: ReasonRunningFresh}}
		}
		// Tie-break: when both are stale, report STALE_RUNNING_NO_HEARTBEAT.
		if updatedStale {
			return dedupOutput{
				decision:  ReuseDecision{Reused: false, ReasonCode: ReasonStaleRunningNoHeartbeat},
				markStale: true,
				staleCode: ReasonStaleRunningNoHeartbeat,
			}
		}
		return dedupOutput{
			decision:  ReuseDecision{Reused: false, ReasonCode: ReasonStaleRunningTooOld},
			markStale: true,
			staleCode: ReasonStaleRunningTooOld,
		}

	case StatusPending, StatusDoneClarify, StatusDoneStopped:
		return dedupOutput{decision: ReuseDecision{Reused: true, ReasonCode: ReasonStatusPrefix + string(in.status)}}

	default:
		// Unknown status: treat conservatively as a fresh job, new attempt.
		return dedupOutput{decision: ReuseDecision{Reused: false, ReasonCode: ReasonPreviousJobFailed}}
	}
}
