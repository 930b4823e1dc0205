package pipeline

import (
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/ranking"
)

// DeterministicRank adapts profile selection + Composite + stable sort
// to RankStage. CuisineEnforcer is optional; when nil, cuisineMatch
// defaults to neutral (0) for every candidate.
type DeterministicRank struct {
	CuisineEnforcer ranking.CuisineEnforcer
	MaxReviews      int
	MaxDistanceM    float64
}

func (r *DeterministicRank) Run(items []jobstore.ResultItem, intent IntentFields, req jobstore.RequestPayload, route RouteKind) ([]jobstore.ResultItem, map[string]float64, ranking.ProfileName) {
	signals := ranking.Signals{
		Route:            string(route),
		HasUserLocation:  req.UserLocation != nil,
		IntentReason:     intent.IntentReason,
		CuisineKey:       intent.CuisineKey,
		OpenNowRequested: intent.OpenStateIntent == "OPEN_NOW",
		PriceIntent:      intent.PriceIntent,
		QualityIntent:    intent.QualityIntent,
		Occasion:         intent.Occasion,
	}
	profile := ranking.SelectProfile(signals)
	weights := ranking.Profiles[profile]

	origin := ranking.SelectDistanceOrigin(intent.IntentReason, false, req.UserLocation != nil)
	var originLatLng *jobstore.LatLng
	if origin == ranking.OriginUserLocation {
		originLatLng = req.UserLocation
	}

	cuisineScores := map[string]float64{}
	if r.CuisineEnforcer != nil && intent.CuisineKey != "" {
		if scores, err := r.CuisineEnforcer.Score(intent.CuisineKey, items); err == nil {
			cuisineScores = scores
		}
	}

	maxReviews := r.MaxReviews
	if maxReviews == 0 {
		maxReviews = 1000
	}
	maxDistance := r.MaxDistanceM
	if maxDistance == 0 {
		maxDistance = 20000
	}

	scores := ranking.Composite(items, ranking.ScoreInputs{
		Weights:      weights,
		Origin:       origin,
		OriginLatLng: originLatLng,
		MaxReviews:   maxReviews,
		MaxDistanceM: maxDistance,
		CuisineScore: cuisineScores,
	})

	out := append([]jobstore.ResultItem(nil), items...)
	ranking.StableSortByComposite(out, scores)
	return out, scores, profile
}
