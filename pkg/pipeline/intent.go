package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/langctx"
	"github.com/shacharon/pizza-sub006/pkg/llm"
)

// LLMIntent is the production IntentStage: extracts structured search
// fields and refines uiLanguage/providerLanguage/regionCode.
type LLMIntent struct {
	Client llm.Client
}

type intentSchema struct {
	CuisineKey      string  `json:"cuisineKey"`
	City            string  `json:"city"`
	Landmark        string  `json:"landmark"`
	NearMe          bool    `json:"nearMe"`
	OpenStateIntent string  `json:"openStateIntent"`
	PriceIntent     string  `json:"priceIntent"`
	MinRatingBucket string  `json:"minRatingBucket"`
	Occasion        string  `json:"occasion"`
	RegionCandidate string  `json:"regionCandidate"`
	IntentReason    string  `json:"intentReason"`
	QualityIntent   bool    `json:"qualityIntent"`
	UILanguage      string  `json:"uiLanguage"`
	ProviderLanguage string `json:"providerLanguage"`
}

// regionAllowlist is the set of ISO 3166-1 alpha-2 codes this deployment
// accepts as a providerLanguage region qualifier.
var regionAllowlist = map[string]bool{
	"IL": true, "US": true, "GB": true, "FR": true, "DE": true, "ES": true, "IT": true,
}

// israelBoundingBox is a coarse lat/lng box used only to decide whether
// a GZ region candidate (a known upstream mislabeling of Gaza-area
// queries) sanitizes to IL.
type boundingBox struct{ MinLat, MaxLat, MinLng, MaxLng float64 }

var israelBoundingBox = boundingBox{MinLat: 29.4, MaxLat: 33.4, MinLng: 34.2, MaxLng: 35.9}

func (b boundingBox) contains(p *jobstore.LatLng) bool {
	if p == nil {
		return false
	}
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// sanitizeRegion applies the known-mistake corrections and allowlist
// check. Returns "" when the candidate cannot be sanitized to a known
// region (callers must not propagate an unvalidated code downstream).
func sanitizeRegion(candidate string, userLocation *jobstore.LatLng) string {
	code := strings.ToUpper(strings.TrimSpace(candidate))
	switch code {
	case "":
		return ""
	case "IS":
		code = "IL"
	case "GZ":
		if israelBoundingBox.contains(userLocation) {
			code = "IL"
		} else {
			return ""
		}
	}
	if !regionAllowlist[code] {
		return ""
	}
	return code
}

func (s *LLMIntent) Run(ctx context.Context, req jobstore.RequestPayload, lang langctx.Context) (IntentResult, error) {
	llmReq := &llm.Request{
		Stage:       llm.StageIntent,
		SchemaName:  "intent_v1",
		Prompt:      req.Query,
		Language:    lang.AssistantLanguage,
		ContextJSON: req.LanguageHint,
	}
	ch, err := s.Client.Generate(ctx, llmReq)
	if err != nil {
		return IntentResult{}, err
	}
	raw, err := llm.Collect(ch)
	if err != nil {
		return IntentResult{}, err
	}

	var parsed intentSchema
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return IntentResult{}, err
	}

	region := sanitizeRegion(parsed.RegionCandidate, req.UserLocation)
	uiLang, providerLang, regionCode := parsed.UILanguage, parsed.ProviderLanguage, region
	refined := langctx.Apply(lang, langctx.Update{
		UILanguage:       &uiLang,
		ProviderLanguage: &providerLang,
		RegionCode:       &regionCode,
	})

	fields := IntentFields{
		CuisineKey:      parsed.CuisineKey,
		City:            parsed.City,
		Landmark:        parsed.Landmark,
		NearMe:          parsed.NearMe,
		OpenStateIntent: parsed.OpenStateIntent,
		PriceIntent:     parsed.PriceIntent,
		MinRatingBucket: parsed.MinRatingBucket,
		Occasion:        parsed.Occasion,
		RegionCandidate: parsed.RegionCandidate,
		IntentReason:    parsed.IntentReason,
		QualityIntent:   parsed.QualityIntent,
	}

	return IntentResult{Fields: fields, Language: refined}, nil
}
