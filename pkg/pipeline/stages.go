package pipeline

import (
	"context"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/langctx"
	"github.com/shacharon/pizza-sub006/pkg/ranking"
)

// GateResult is the Gate stage's output.
type GateResult struct {
	Outcome       GateOutcome
	Language      langctx.Context
	FailureReason string
	Assist        *jobstore.AssistPayload
}

// GateStage classifies intent vs off-topic and establishes the
// immutable language-context fields. It is the only stage permitted to
// call langctx.Init.
type GateStage interface {
	Run(ctx context.Context, req jobstore.RequestPayload) (GateResult, error)
}

// IntentResult is the Intent stage's output.
type IntentResult struct {
	Fields   IntentFields
	Language langctx.Context // possibly refined UILanguage/ProviderLanguage/RegionCode
}

type IntentStage interface {
	Run(ctx context.Context, req jobstore.RequestPayload, lang langctx.Context) (IntentResult, error)
}

// RouteResult is the Route mapping stage's output.
type RouteResult struct {
	Route         RouteKind
	FailureReason string // set when the stage demands CLARIFY
}

type RouteStage interface {
	Run(ctx context.Context, req jobstore.RequestPayload, intent IntentFields) (RouteResult, error)
}

// ProviderStage executes the chosen provider call and normalizes its
// output.
type ProviderStage interface {
	Run(ctx context.Context, route RouteKind, req jobstore.RequestPayload, intent IntentFields, lang langctx.Context) ([]jobstore.ResultItem, error)
}

// PostFilterStage applies the deterministic filter/relax policy.
type PostFilterStage interface {
	Run(items []jobstore.ResultItem, intent IntentFields) ([]jobstore.ResultItem, ranking.FilterCounters, []ranking.DeniedRelaxation)
}

// RankStage selects a profile and composes scores.
type RankStage interface {
	Run(items []jobstore.ResultItem, intent IntentFields, req jobstore.RequestPayload, route RouteKind) ([]jobstore.ResultItem, map[string]float64, ranking.ProfileName)
}

// AssistantStage assembles the final SearchResponse payload (not the
// SSE narration path — see pkg/assistant for that).
type AssistantStage interface {
	Run(ctx context.Context, pc *Context) (jobstore.ResultBundle, error)
}
