package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/langctx"
	"github.com/shacharon/pizza-sub006/pkg/llm"
)

// LLMGate is the production GateStage, backed by the LLM collaborator.
// It is the only stage permitted to call langctx.Init.
type LLMGate struct {
	Client llm.Client
}

type gateSchema struct {
	Route               string  `json:"route"`
	AssistantLanguage    string  `json:"assistantLanguage"`
	Confidence           float64 `json:"confidence"`
	RegionCode           string  `json:"regionCode"`
	FailureReason        string  `json:"failureReason,omitempty"`
	Message               string  `json:"message,omitempty"`
}

func (g *LLMGate) Run(ctx context.Context, req jobstore.RequestPayload) (GateResult, error) {
	llmReq := &llm.Request{
		Stage:      llm.StageGate,
		SchemaName: "gate_v1",
		Prompt:     req.Query,
	}
	ch, err := g.Client.Generate(ctx, llmReq)
	if err != nil {
		return GateResult{}, err
	}
	raw, err := llm.Collect(ch)
	if err != nil {
		return GateResult{}, err
	}

	var parsed gateSchema
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return GateResult{}, err
	}

	lang := langctx.Init(parsed.AssistantLanguage, parsed.Confidence, parsed.RegionCode)

	outcome := GateContinue
	switch strings.ToUpper(parsed.Route) {
	case "CLARIFY":
		outcome = GateClarify
	case "STOP":
		outcome = GateStop
	}

	result := GateResult{Outcome: outcome, Language: lang, FailureReason: parsed.FailureReason}
	if outcome != GateContinue {
		result.Assist = &jobstore.AssistPayload{Kind: "clarify", Message: parsed.Message, FailureReason: parsed.FailureReason}
	}
	return result, nil
}
