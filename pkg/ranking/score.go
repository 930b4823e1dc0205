package ranking

import (
	"math"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// CuisineEnforcer delegates cuisine-match scoring to the external LLM
// collaborator. It is BOOST-only: it never removes candidates, and under
// hard dietary constraints it is policy-capped to boosting, never
// filtering.
type CuisineEnforcer interface {
	// Score returns a cuisineScore in [0,1] per placeId. Missing entries
	// default to 0 (neutral, no boost).
	Score(cuisineKey string, items []jobstore.ResultItem) (map[string]float64, error)
}

// ScoreInputs bundles everything Composite needs beyond the weight
// vector itself.
type ScoreInputs struct {
	Weights      Weights
	Origin       DistanceOrigin
	OriginLatLng *jobstore.LatLng
	MaxReviews   int // Nmax for the log-normalized reviews sub-score
	MaxDistanceM float64
	CuisineScore map[string]float64 // placeId -> [0,1], from CuisineEnforcer
	OpenAt       map[string]float64 // placeId -> openBoost override, e.g. from post-filter counters
}

// Composite computes the deterministic composite score for every item
// and returns placeId -> score.
func Composite(items []jobstore.ResultItem, in ScoreInputs) map[string]float64 {
	out := make(map[string]float64, len(items))
	for _, item := range items {
		ratingScore := 0.0
		if item.Rating != nil {
			ratingScore = clamp01(*item.Rating / 5.0)
		}

		reviewsScore := 0.0
		if item.UserRatingsTotal != nil && in.MaxReviews > 0 {
			reviewsScore = clamp01(math.Log(1+float64(*item.UserRatingsTotal)) / math.Log(1+float64(in.MaxReviews)))
		}

		distanceScore := 0.0
		if in.Origin != OriginNone && in.OriginLatLng != nil && in.MaxDistanceM > 0 {
			d := haversineMeters(*in.OriginLatLng, jobstore.LatLng{Lat: item.Lat, Lng: item.Lng})
			distanceScore = clamp01(1 - d/in.MaxDistanceM)
		}

		openBoost := 0.5
		if item.OpenNow != nil {
			if *item.OpenNow {
				openBoost = 1.0
			} else {
				openBoost = 0.0
			}
		}
		if v, ok := in.OpenAt[item.PlaceID]; ok {
			openBoost = v
		}

		cuisineMatch := 0.0
		if v, ok := in.CuisineScore[item.PlaceID]; ok {
			cuisineMatch = clamp01(v)
		}

		w := in.Weights
		out[item.PlaceID] = w.Rating*ratingScore +
			w.Reviews*reviewsScore +
			w.Distance*distanceScore +
			w.OpenBoost*openBoost +
			w.CuisineMatch*cuisineMatch
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// haversineMeters computes great-circle distance between two points.
func haversineMeters(a, b jobstore.LatLng) float64 {
	const earthRadiusM = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng) - toRad(a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
