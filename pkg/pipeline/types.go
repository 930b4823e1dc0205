// Package pipeline implements Route2: the fixed Gate -> Intent -> Route
// mapping -> Provider call -> Post-filter -> Rank -> Assistant assembly
// sequence, with per-stage timing, language-context enforcement, and
// failure-reason classification.
package pipeline

import (
	"time"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/langctx"
)

// RouteKind is the provider method the Route mapping stage selects.
type RouteKind string

const (
	RouteTextSearch   RouteKind = "textSearch"
	RouteNearbySearch RouteKind = "nearbySearch"
	RouteLandmarkPlan RouteKind = "landmarkPlan"
)

// GateOutcome is the Gate stage's decision.
type GateOutcome string

const (
	GateContinue GateOutcome = "CONTINUE"
	GateClarify  GateOutcome = "CLARIFY"
	GateStop     GateOutcome = "STOP"
)

// IntentFields is the structured extraction from the Intent stage.
type IntentFields struct {
	CuisineKey      string
	City            string
	Landmark        string
	NearMe          bool
	OpenStateIntent string
	PriceIntent     string
	MinRatingBucket string
	Occasion        string
	RegionCandidate string
	IntentReason    string
	QualityIntent   bool
}

// StageResult is the uniform bookkeeping record every stage produces,
// used for stage_started/stage_completed timing and failure
// classification.
type StageResult struct {
	Name       string
	StartedAt  time.Time
	DurationMs int64
	Err        error
	FailureReason string
}

// Context threads everything a stage needs through the fixed sequence.
// LanguageContext is passed by value; stages that return language data
// are checked for immutability violations before their output is
// accepted.
type Context struct {
	RequestID       string
	Request         jobstore.RequestPayload
	Language        langctx.Context
	Intent          IntentFields
	Route           RouteKind
	Candidates      []jobstore.ResultItem
	FilterCounters  map[string]int
	Filtered        []jobstore.ResultItem
	Scores          map[string]float64
	CityGeocoded    bool
	CityLatLng      *jobstore.LatLng
}

// FailureReason codes the orchestrator may set on a DONE_FAILED job.
const (
	FailureLangEnforcementViolation = "LANG_ENFORCEMENT_VIOLATION"
	FailurePipelineTimeout          = "PIPELINE_TIMEOUT"
	FailureStageError               = "STAGE_ERROR"
	FailureProviderZeroResults      = "PROVIDER_ZERO_RESULTS"
	FailureLocationRequired         = "LOCATION_REQUIRED"
)

// Progress values published after each stage.
const (
	ProgressGateDone       = 10
	ProgressIntentDone     = 25
	ProgressRouteDone      = 40
	ProgressProviderDone   = 70
	ProgressPostFilterDone = 85
	ProgressRankDone       = 95
	ProgressAssistantDone  = 100
)
