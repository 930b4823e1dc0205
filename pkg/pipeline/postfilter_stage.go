package pipeline

import (
	"time"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/ranking"
)

// DeterministicPostFilter adapts ranking.ApplyWithRelax to PostFilterStage.
type DeterministicPostFilter struct {
	MinAcceptable int
	Now           func() time.Time
}

func openStateFromIntent(openStateIntent string) ranking.OpenState {
	switch openStateIntent {
	case "OPEN_NOW":
		return ranking.OpenState{Kind: "OPEN_NOW"}
	case "CLOSED_NOW":
		return ranking.OpenState{Kind: "CLOSED_NOW"}
	default:
		return ranking.OpenState{}
	}
}

func (f *DeterministicPostFilter) Run(items []jobstore.ResultItem, intent IntentFields) ([]jobstore.ResultItem, ranking.FilterCounters, []ranking.DeniedRelaxation) {
	filters := ranking.SharedFilters{
		OpenState: openStateFromIntent(intent.OpenStateIntent),
		MinRating: ranking.RatingBucket(intent.MinRatingBucket),
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	minAcceptable := f.MinAcceptable
	if minAcceptable == 0 {
		minAcceptable = 5
	}

	result := ranking.ApplyWithRelax(items, filters, nil, now(), minAcceptable)
	return result.Items, result.Counters, result.Denied
}
