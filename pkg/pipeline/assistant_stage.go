package pipeline

import (
	"context"
	"math"
	"sort"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// BundleAssembler is the production AssistantStage. It builds the final
// SearchResponse (results/groups/chips/assist/meta) from the context
// accumulated through the rest of the pipeline. It makes no LLM call —
// that narration happens separately, over SSE (see pkg/assistant).
type BundleAssembler struct {
	// ExactGroupRadiusM is the distance, from the street-anchor origin,
	// under which a candidate is grouped EXACT rather than NEARBY. Only
	// applies when the route was a landmark/street-anchor lookup.
	ExactGroupRadiusM float64
}

func (b *BundleAssembler) Run(ctx context.Context, pc *Context) (jobstore.ResultBundle, error) {
	bundle := jobstore.ResultBundle{
		Results: pc.Filtered,
		Meta:    map[string]interface{}{},
	}

	if pc.Route == RouteLandmarkPlan {
		bundle.Groups = b.groupByDistance(pc)
	}

	bundle.Chips = suggestChips(pc.Intent, pc.FilterCounters)

	bundle.Meta["profileSelected"] = true
	bundle.Meta["route"] = string(pc.Route)
	if pc.FilterCounters != nil {
		bundle.Meta["filterCounters"] = pc.FilterCounters
	}
	if len(pc.Scores) > 0 {
		bundle.Meta["scored"] = len(pc.Scores)
	}

	return bundle, nil
}

// groupByDistance buckets results into EXACT/NEARBY for street-anchor
// (landmark) searches, measuring from pc.CityLatLng. When pc.CityLatLng
// is nil every result goes to NEARBY; Orchestrator.Run never sets it,
// so jobs it runs get no EXACT group.
func (b *BundleAssembler) groupByDistance(pc *Context) map[string][]string {
	radius := b.ExactGroupRadiusM
	if radius == 0 {
		radius = 250
	}
	groups := map[string][]string{"EXACT": {}, "NEARBY": {}}
	origin := pc.CityLatLng
	if origin == nil {
		for _, item := range pc.Filtered {
			groups["NEARBY"] = append(groups["NEARBY"], item.PlaceID)
		}
		return groups
	}
	for _, item := range pc.Filtered {
		d := haversineMeters(*origin, jobstore.LatLng{Lat: item.Lat, Lng: item.Lng})
		if d <= radius {
			groups["EXACT"] = append(groups["EXACT"], item.PlaceID)
		} else {
			groups["NEARBY"] = append(groups["NEARBY"], item.PlaceID)
		}
	}
	return groups
}

// suggestChips proposes refinement shortcuts based on what the current
// search already constrained, so the UI never offers a chip that would
// be a no-op.
func suggestChips(intent IntentFields, counters map[string]int) []string {
	var chips []string
	if intent.OpenStateIntent == "" {
		chips = append(chips, "open_now")
	}
	if intent.MinRatingBucket == "" {
		chips = append(chips, "rating_4_plus")
	}
	if intent.PriceIntent == "" {
		chips = append(chips, "budget_friendly")
	}
	sort.Strings(chips)
	return chips
}

// haversineMeters mirrors pkg/ranking's unexported helper; duplicated
// here (rather than exported) since the assembler only needs it for
// EXACT/NEARBY grouping, not scoring.
func haversineMeters(a, b jobstore.LatLng) float64 {
	const earthRadiusM = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
