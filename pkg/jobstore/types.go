// Package jobstore implements the durable per-request job records the
// search orchestrator coordinates through: idempotent creation, a
// forward-only state machine, heartbeats, staleness detection, and a
// side table for pre-ranking candidate pools.
package jobstore

import "time"

// Status is one point in the Job lifecycle's forward-only DAG.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusRunning      Status = "RUNNING"
	StatusDoneSuccess  Status = "DONE_SUCCESS"
	StatusDoneClarify  Status = "DONE_CLARIFY"
	StatusDoneStopped  Status = "DONE_STOPPED"
	StatusDoneFailed   Status = "DONE_FAILED"
)

// Terminal reports whether status is an absorbing state.
func (s Status) Terminal() bool {
	switch s {
	case StatusDoneSuccess, StatusDoneClarify, StatusDoneStopped, StatusDoneFailed:
		return true
	default:
		return false
	}
}

// forward maps each status to the set of statuses it may transition to.
// The DAG is enforced by SetStatus/SetAssist; SetResult/SetError only
// refuse to overwrite a terminal job. Terminal states have no outgoing
// edges.
var forward = map[Status]map[Status]bool{
	StatusPending: {StatusRunning: true, StatusDoneClarify: true, StatusDoneStopped: true, StatusDoneFailed: true},
	StatusRunning: {StatusDoneSuccess: true, StatusDoneClarify: true, StatusDoneStopped: true, StatusDoneFailed: true},
}

// canTransition reports whether from -> to is a legal forward edge, or a
// no-op (from == to, which callers treat as idempotent).
func canTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	return forward[from][to]
}

// RequestPayload is the normalized inbound search request stored on a Job.
type RequestPayload struct {
	Query          string            `json:"query"`
	LanguageHint   string            `json:"languageHint,omitempty"`
	UserLocation   *LatLng           `json:"userLocation,omitempty"`
	FilterOverride map[string]string `json:"filterOverrides,omitempty"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ErrorRecord is the payload-out shape for a DONE_FAILED job.
type ErrorRecord struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	FailureReason string `json:"failureReason"`
}

// AssistPayload is the structured "what to show the user" object for
// DONE_CLARIFY / DONE_STOPPED jobs.
type AssistPayload struct {
	Kind          string            `json:"kind"` // "guide" | "clarify" | "recovery"
	Message       string            `json:"message,omitempty"`
	FailureReason string            `json:"failureReason,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// ResultItem is a normalized provider place record.
type ResultItem struct {
	PlaceID          string   `json:"placeId"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	OpenNow          *bool    `json:"openNow"` // nil == UNKNOWN
	Rating           *float64 `json:"rating,omitempty"`
	UserRatingsTotal *int     `json:"userRatingsTotal,omitempty"`
	PriceLevel       *int     `json:"priceLevel,omitempty"`
	Types            []string `json:"types,omitempty"`
}

// ResultBundle is the payload-out shape for a DONE_SUCCESS job.
type ResultBundle struct {
	Results []ResultItem           `json:"results"`
	Groups  map[string][]string    `json:"groups,omitempty"` // group name -> placeIds, EXACT/NEARBY
	Chips   []string               `json:"chips,omitempty"`
	Assist  *AssistPayload         `json:"assist,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Job is the server-side record of one logical search request.
type Job struct {
	RequestID      string `json:"requestId"`
	IdempotencyKey string `json:"idempotencyKey"`

	OwnerSessionID string  `json:"ownerSessionId"`
	OwnerUserID    *string `json:"ownerUserId,omitempty"`

	Status Status `json:"status"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Progress int `json:"progress"`

	Request RequestPayload `json:"request"`

	Result *ResultBundle `json:"result,omitempty"`
	Error  *ErrorRecord  `json:"error,omitempty"`
	Assist *AssistPayload `json:"assist,omitempty"`
}

// clone returns a deep-enough copy safe to hand out as an immutable
// snapshot — the orchestrator and HTTP layer must never mutate a Job
// obtained from the store.
func (j *Job) clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.OwnerUserID != nil {
		v := *j.OwnerUserID
		cp.OwnerUserID = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		cp.CompletedAt = &v
	}
	if j.Result != nil {
		r := *j.Result
		r.Results = append([]ResultItem(nil), j.Result.Results...)
		cp.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.Assist != nil {
		a := *j.Assist
		cp.Assist = &a
	}
	return &cp
}

// ReuseDecision explains the outcome of createOrGet's dedup check.
type ReuseDecision struct {
	Reused     bool
	ReasonCode string
}

// Reason codes for the dedup decision matrix.
const (
	ReasonCachedResultAvailable  = "CACHED_RESULT_AVAILABLE"
	ReasonCachedStale            = "CACHED_STALE"
	ReasonPreviousJobFailed      = "PREVIOUS_JOB_FAILED"
	ReasonRunningFresh           = "RUNNING_FRESH"
	ReasonStaleRunningNoHeartbeat = "STALE_RUNNING_NO_HEARTBEAT"
	ReasonStaleRunningTooOld      = "STALE_RUNNING_TOO_OLD"
	ReasonStatusPrefix           = "STATUS_"
)
