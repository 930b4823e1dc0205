package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/langctx"
)

// Publisher is the narrow slice of the Realtime Hub the orchestrator
// depends on. Defined here (rather than imported from pkg/realtime) to
// keep pipeline free of a dependency on the transport layer.
type Publisher interface {
	Publish(requestID string, message interface{}) error
}

// AuditSink is the append-only event log the orchestrator writes to.
// It is a write-only sink: failures to record are logged and
// otherwise ignored, never propagated as a request failure.
type AuditSink interface {
	RecordTransition(ctx context.Context, requestID string, from, to jobstore.Status, reasonCode string)
	RecordStageEvent(ctx context.Context, requestID, stageName string, durationMs int64, status string)
}

// Timeouts bundles every per-stage deadline plus the hard total deadline.
type Timeouts struct {
	Gate       time.Duration
	Intent     time.Duration
	Route      time.Duration
	Provider   time.Duration
	PostFilter time.Duration
	Rank       time.Duration
	Total      time.Duration
}

// DefaultTimeouts returns the orchestrator's per-stage timeout budget.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Gate:       2 * time.Second,
		Intent:     3 * time.Second,
		Route:      500 * time.Millisecond,
		Provider:   8 * time.Second,
		PostFilter: 500 * time.Millisecond,
		Rank:       500 * time.Millisecond,
		Total:      20 * time.Second,
	}
}

// Orchestrator drives one job through the fixed Route2 stage sequence.
type Orchestrator struct {
	Store jobstore.Store

	Gate       GateStage
	Intent     IntentStage
	Route      RouteStage
	Provider   ProviderStage
	PostFilter PostFilterStage
	Rank       RankStage
	Assistant  AssistantStage

	Publisher Publisher
	Audit     AuditSink // may be nil

	Timeouts Timeouts

	// OnTerminalFailure fires (best-effort, never blocking) when a job
	// ends DONE_FAILED for a non-client-caused reason. Used to wire an
	// optional operational notifier.
	OnTerminalFailure func(requestID, failureReason string)
}

// Run executes the full pipeline for requestID. It is intended to be
// launched as its own goroutine by the HTTP handler that created the
// job; it returns only once the job has reached a terminal state (or the
// caller's ctx is cancelled).
func (o *Orchestrator) Run(ctx context.Context, requestID string) {
	logger := slog.With("request_id", requestID)

	ctx, cancel := context.WithTimeout(ctx, o.Timeouts.Total)
	defer cancel()

	job, err := o.Store.GetJob(ctx, requestID)
	if err != nil || job == nil {
		logger.Error("pipeline: job not found at start of run", "error", err)
		return
	}

	if err := o.Store.SetStatus(ctx, requestID, jobstore.StatusRunning, nil); err != nil {
		logger.Error("pipeline: failed to transition to RUNNING", "error", err)
		return
	}
	o.audit(ctx, requestID, jobstore.StatusPending, jobstore.StatusRunning, "")

	pc := &Context{RequestID: requestID, Request: job.Request}

	// 1. Gate
	gateResult, sr := runStage(ctx, "gate", o.Timeouts.Gate, func(sctx context.Context) (GateResult, error) {
		return o.Gate.Run(sctx, pc.Request)
	})
	o.finishStage(ctx, requestID, sr)
	if sr.Err != nil {
		o.fail(ctx, requestID, "STAGE_ERROR", FailureStageError, sr.Err.Error())
		return
	}
	pc.Language = gateResult.Language

	if gateResult.Outcome != GateContinue {
		status := jobstore.StatusDoneClarify
		if gateResult.Outcome == GateStop {
			status = jobstore.StatusDoneStopped
		}
		assist := jobstore.AssistPayload{Kind: "clarify", FailureReason: gateResult.FailureReason}
		if gateResult.Assist != nil {
			assist = *gateResult.Assist
		}
		_ = o.Store.SetAssist(ctx, requestID, status, assist)
		o.publishTerminal(requestID, status, nil)
		o.audit(ctx, requestID, jobstore.StatusRunning, status, gateResult.FailureReason)
		return
	}
	o.progress(ctx, requestID, "gate", ProgressGateDone)

	// 2. Intent
	intentResult, sr := runStage(ctx, "intent", o.Timeouts.Intent, func(sctx context.Context) (IntentResult, error) {
		return o.Intent.Run(sctx, pc.Request, pc.Language)
	})
	o.finishStage(ctx, requestID, sr)
	if sr.Err != nil {
		o.fail(ctx, requestID, "STAGE_ERROR", FailureStageError, sr.Err.Error())
		return
	}
	if err := langctx.AssertImmutable(pc.Language, intentResult.Language, "intent"); err != nil {
		o.fail(ctx, requestID, "LANG_ENFORCEMENT_VIOLATION", FailureLangEnforcementViolation, err.Error())
		return
	}
	pc.Language = intentResult.Language
	pc.Intent = intentResult.Fields
	o.progress(ctx, requestID, "intent", ProgressIntentDone)

	// 3. Route mapping
	routeResult, sr := runStage(ctx, "route", o.Timeouts.Route, func(sctx context.Context) (RouteResult, error) {
		return o.Route.Run(sctx, pc.Request, pc.Intent)
	})
	o.finishStage(ctx, requestID, sr)
	if sr.Err != nil {
		o.fail(ctx, requestID, "STAGE_ERROR", FailureStageError, sr.Err.Error())
		return
	}
	if routeResult.FailureReason == FailureLocationRequired {
		assist := jobstore.AssistPayload{Kind: "clarify", FailureReason: FailureLocationRequired}
		_ = o.Store.SetAssist(ctx, requestID, jobstore.StatusDoneClarify, assist)
		o.publishTerminal(requestID, jobstore.StatusDoneClarify, nil)
		o.audit(ctx, requestID, jobstore.StatusRunning, jobstore.StatusDoneClarify, FailureLocationRequired)
		return
	}
	pc.Route = routeResult.Route
	o.progress(ctx, requestID, "route", ProgressRouteDone)

	// 4. Provider call
	items, sr := runStage(ctx, "provider", o.Timeouts.Provider, func(sctx context.Context) ([]jobstore.ResultItem, error) {
		return o.Provider.Run(sctx, pc.Route, pc.Request, pc.Intent, pc.Language)
	})
	o.finishStage(ctx, requestID, sr)
	if sr.Err != nil {
		o.fail(ctx, requestID, "UPSTREAM_TIMEOUT", "UPSTREAM_TIMEOUT", sr.Err.Error())
		return
	}
	pc.Candidates = items
	_ = o.Store.SetCandidatePool(ctx, requestID, items)
	o.progress(ctx, requestID, "provider", ProgressProviderDone)

	// 5. Post-filter
	filtered, counters, denied := o.PostFilter.Run(pc.Candidates, pc.Intent)
	pc.Filtered = filtered
	pc.FilterCounters = map[string]int{
		"before": counters.Before, "after": counters.After, "removed": counters.Removed,
		"unknownKept": counters.UnknownKept, "unknownRemoved": counters.UnknownRemoved,
	}
	o.progress(ctx, requestID, "post_filter", ProgressPostFilterDone)
	_ = denied

	// 6. Rank
	ranked, scores, _ := o.Rank.Run(pc.Filtered, pc.Intent, pc.Request, pc.Route)
	pc.Filtered = ranked
	pc.Scores = scores
	o.progress(ctx, requestID, "rank", ProgressRankDone)

	// 7. Assistant assembly
	bundle, sr := runStage(ctx, "assistant", o.Timeouts.Intent, func(sctx context.Context) (jobstore.ResultBundle, error) {
		return o.Assistant.Run(sctx, pc)
	})
	o.finishStage(ctx, requestID, sr)
	if sr.Err != nil {
		// Assistant assembly may be omitted under time pressure (spec
		// §4.D); fall back to a bare bundle instead of failing the job.
		bundle = jobstore.ResultBundle{Results: pc.Filtered}
	}

	if ctx.Err() != nil {
		o.fail(ctx, requestID, "PIPELINE_TIMEOUT", FailurePipelineTimeout, "total pipeline deadline exceeded")
		return
	}

	if err := o.Store.SetResult(ctx, requestID, bundle); err != nil {
		logger.Error("pipeline: failed to set result", "error", err)
		return
	}
	o.publishTerminal(requestID, jobstore.StatusDoneSuccess, &bundle)
	o.audit(ctx, requestID, jobstore.StatusRunning, jobstore.StatusDoneSuccess, "")
}

// runStage executes fn under a per-stage timeout and records start/dur
// for stage_started/stage_completed bookkeeping.
func runStage[T any](ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, StageResult) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := fn(sctx)
	sr := StageResult{Name: name, StartedAt: start, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		sr.Err = err
		sr.FailureReason = FailureStageError
	}
	if sctx.Err() == context.DeadlineExceeded && err == nil {
		sr.Err = sctx.Err()
		sr.FailureReason = FailureStageError
	}
	return result, sr
}

func (o *Orchestrator) finishStage(ctx context.Context, requestID string, sr StageResult) {
	status := "completed"
	if sr.Err != nil {
		status = "failed"
	}
	o.auditStage(ctx, requestID, sr.Name, sr.DurationMs, status)
}

func (o *Orchestrator) progress(ctx context.Context, requestID, stage string, pct int) {
	p := pct
	_ = o.Store.SetStatus(ctx, requestID, jobstore.StatusRunning, &p)
	_ = o.Store.UpdateHeartbeat(ctx, requestID)
	if o.Publisher != nil {
		_ = o.Publisher.Publish(requestID, map[string]interface{}{"type": "progress", "requestId": requestID, "stage": stage, "progress": pct})
	}
}

func (o *Orchestrator) publishTerminal(requestID string, status jobstore.Status, bundle *jobstore.ResultBundle) {
	if o.Publisher == nil {
		return
	}
	msg := map[string]interface{}{"type": "terminal", "requestId": requestID, "status": status}
	if bundle != nil {
		msg["result"] = bundle
	}
	_ = o.Publisher.Publish(requestID, msg)
}

func (o *Orchestrator) fail(ctx context.Context, requestID, code, failureReason, message string) {
	_ = o.Store.SetError(ctx, requestID, jobstore.ErrorRecord{Code: code, Message: message, FailureReason: failureReason})
	o.publishTerminal(requestID, jobstore.StatusDoneFailed, nil)
	o.audit(ctx, requestID, jobstore.StatusRunning, jobstore.StatusDoneFailed, failureReason)

	if failureReason != FailureLocationRequired && o.OnTerminalFailure != nil {
		go o.OnTerminalFailure(requestID, failureReason)
	}
}

func (o *Orchestrator) audit(ctx context.Context, requestID string, from, to jobstore.Status, reasonCode string) {
	if o.Audit == nil {
		return
	}
	o.Audit.RecordTransition(ctx, requestID, from, to, reasonCode)
}

func (o *Orchestrator) auditStage(ctx context.Context, requestID, stageName string, durationMs int64, status string) {
	if o.Audit == nil {
		return
	}
	o.Audit.RecordStageEvent(ctx, requestID, stageName, durationMs, status)
}
