package ranking

import (
	"time"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// relaxOrder is the fixed order in which soft filters are relaxed when
// post-filter output falls below minAcceptable. Hard
// constraints (isKosher, meatDairy) never appear here.
var relaxOrder = []string{"openState", "isGlutenFree", "minRatingBucket", "priceIntent"}

// DeniedRelaxation records a relaxation the policy refused to apply
// because the field is a hard constraint.
type DeniedRelaxation struct {
	Field      string
	ReasonCode string
}

// RelaxResult is the outcome of running the relax policy: the final
// filtered set, the counters from the last filter pass applied, which
// fields were relaxed (in order), and any relaxations denied because
// they touch a hard constraint.
type RelaxResult struct {
	Items     []jobstore.ResultItem
	Counters  FilterCounters
	Relaxed   []string
	Denied    []DeniedRelaxation
}

// ApplyWithRelax runs ApplyFilters, and if the surviving count is below
// minAcceptable, relaxes soft filters in relaxOrder one at a time,
// re-running the filter after each relaxation, until either the floor is
// met or every soft filter has been relaxed. isKosher / meatDairy are
// hard constraints and are recorded as denied if relaxation would have
// reached them.
func ApplyWithRelax(items []jobstore.ResultItem, filters SharedFilters, hours OpeningHours, now time.Time, minAcceptable int) RelaxResult {
	current := filters
	out, counters := ApplyFilters(items, current, hours, now)

	result := RelaxResult{Items: out, Counters: counters}
	if len(out) >= minAcceptable {
		return result
	}

	for _, field := range relaxOrder {
		if len(result.Items) >= minAcceptable {
			break
		}
		switch field {
		case "openState":
			if current.OpenState.Kind == "" {
				continue
			}
			current.OpenState = OpenState{}
		case "isGlutenFree":
			// Dietary hints are annotations, never removals;
			// there is nothing to relax here, so this step is a no-op
			// that still counts toward the fixed order.
			continue
		case "minRatingBucket":
			if current.MinRating == RatingNone {
				continue
			}
			current.MinRating = RatingNone
		case "priceIntent":
			// Price intent is consumed upstream by the route/profile
			// selection, not by ApplyFilters; nothing to relax on the
			// item list itself.
			continue
		}

		result.Relaxed = append(result.Relaxed, field)
		result.Items, result.Counters = ApplyFilters(items, current, hours, now)
	}

	// Hard constraints are never placed in current and so are never
	// relaxed; if the caller's filters carried them, record the denial
	// explicitly for meta surfacing.
	if filters.IsKosher {
		result.Denied = append(result.Denied, DeniedRelaxation{Field: "isKosher", ReasonCode: "HARD_CONSTRAINT"})
	}
	if filters.MeatDairy != "" {
		result.Denied = append(result.Denied, DeniedRelaxation{Field: "meatDairy", ReasonCode: "HARD_CONSTRAINT"})
	}

	return result
}
