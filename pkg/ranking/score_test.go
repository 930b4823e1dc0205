package ranking

import (
	"testing"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/stretchr/testify/require"
)

func TestComposite_HigherRatingScoresHigher(t *testing.T) {
	r1, r2 := 4.9, 3.0
	items := []jobstore.ResultItem{
		{PlaceID: "a", Rating: &r1},
		{PlaceID: "b", Rating: &r2},
	}
	scores := Composite(items, ScoreInputs{Weights: Profiles[ProfileBalanced], MaxReviews: 100})
	require.Greater(t, scores["a"], scores["b"])
}

func TestStableSortByComposite_TieBreaksByPlaceID(t *testing.T) {
	items := []jobstore.ResultItem{{PlaceID: "z"}, {PlaceID: "a"}}
	composite := map[string]float64{"z": 0.5, "a": 0.5}
	StableSortByComposite(items, composite)
	require.Equal(t, "a", items[0].PlaceID)
}

func TestHaversine_ZeroDistanceSameSpot(t *testing.T) {
	d := haversineMeters(jobstore.LatLng{Lat: 32.08, Lng: 34.78}, jobstore.LatLng{Lat: 32.08, Lng: 34.78})
	require.InDelta(t, 0, d, 1)
}
