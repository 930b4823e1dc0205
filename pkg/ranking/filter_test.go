package ranking

import (
	"testing"
	"time"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestApplyFilters_OpenNowKeepsUnknownByDefault(t *testing.T) {
	items := []jobstore.ResultItem{
		{PlaceID: "a", OpenNow: boolPtr(true)},
		{PlaceID: "b", OpenNow: boolPtr(false)},
		{PlaceID: "c", OpenNow: nil},
	}
	out, counters := ApplyFilters(items, SharedFilters{OpenState: OpenState{Kind: "OPEN_NOW"}}, nil, time.Now())
	require.Len(t, out, 2)
	require.Equal(t, 3, counters.Before)
	require.Equal(t, 2, counters.After)
	require.Equal(t, 1, counters.Removed)
	require.Equal(t, 1, counters.UnknownKept)
	require.Equal(t, counters.Before, counters.After+counters.Removed)
}

func TestApplyFilters_OpenNowDropsUnknownWhenToggled(t *testing.T) {
	items := []jobstore.ResultItem{
		{PlaceID: "a", OpenNow: boolPtr(true)},
		{PlaceID: "c", OpenNow: nil},
	}
	out, counters := ApplyFilters(items, SharedFilters{OpenState: OpenState{Kind: "OPEN_NOW"}, DropUnknownOpen: true}, nil, time.Now())
	require.Len(t, out, 1)
	require.Equal(t, 1, counters.UnknownRemoved)
}

func TestApplyFilters_MinRatingKeepsUnrated(t *testing.T) {
	rating := 3.0
	items := []jobstore.ResultItem{
		{PlaceID: "a", Rating: &rating},
		{PlaceID: "b", Rating: nil},
	}
	out, _ := ApplyFilters(items, SharedFilters{MinRating: Rating40}, nil, time.Now())
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].PlaceID)
}

func TestApplyFilters_BeforeEqualsAfterPlusRemoved(t *testing.T) {
	items := make([]jobstore.ResultItem, 10)
	for i := range items {
		items[i] = jobstore.ResultItem{PlaceID: string(rune('a' + i)), OpenNow: boolPtr(i%2 == 0)}
	}
	_, counters := ApplyFilters(items, SharedFilters{OpenState: OpenState{Kind: "OPEN_NOW"}}, nil, time.Now())
	require.Equal(t, counters.Before, counters.After+counters.Removed)
	require.GreaterOrEqual(t, counters.Removed, 0)
}

func TestOpenBetween_CrossesMidnight(t *testing.T) {
	hours := OpeningHours{
		"a": {{Day: time.Friday, Start: "22:00", End: "02:00"}},
	}
	filters := SharedFilters{OpenState: OpenState{Kind: "OPEN_BETWEEN", Day: time.Friday, Start: "23:00", End: "23:30"}}
	out, _ := ApplyFilters([]jobstore.ResultItem{{PlaceID: "a"}}, filters, hours, time.Now())
	require.Len(t, out, 1)
}

func TestSelectProfile(t *testing.T) {
	require.Equal(t, ProfileNoLocation, SelectProfile(Signals{HasUserLocation: false}))
	require.Equal(t, ProfileDistanceHeavy, SelectProfile(Signals{HasUserLocation: true, Route: "nearbySearch"}))
	require.Equal(t, ProfileDistanceHeavy, SelectProfile(Signals{HasUserLocation: true, IntentReason: "proximity_keywords"}))
	require.Equal(t, ProfileQualityFocused, SelectProfile(Signals{HasUserLocation: true, CuisineKey: "fine_dining"}))
	require.Equal(t, ProfileQualityFocused, SelectProfile(Signals{HasUserLocation: true, Occasion: "romantic"}))
	require.Equal(t, ProfileCuisineFocused, SelectProfile(Signals{HasUserLocation: true, CuisineKey: "italian"}))
	require.Equal(t, ProfileBalanced, SelectProfile(Signals{HasUserLocation: true}))
}

func TestSelectProfile_NearbyWithNoUserLocation(t *testing.T) {
	// boundary behavior: nearbySearch route with no user location still
	// yields NO_LOCATION (distance weight observed as 0).
	p := SelectProfile(Signals{HasUserLocation: false, Route: "nearbySearch"})
	require.Equal(t, ProfileNoLocation, p)
	require.Equal(t, 0.0, Profiles[p].Distance)
}

func TestSelectProfile_NearbyRouteWinsOverNonProximityReason(t *testing.T) {
	// A nearbySearch route must select DISTANCE_HEAVY even when the LLM's
	// intentReason isn't one of the recognized proximity phrases.
	p := SelectProfile(Signals{HasUserLocation: true, Route: "nearbySearch", IntentReason: "user_said_nearby_restaurants"})
	require.Equal(t, ProfileDistanceHeavy, p)
}

func TestValidateProfiles(t *testing.T) {
	require.NoError(t, ValidateProfiles())
}

func TestSelectDistanceOrigin(t *testing.T) {
	require.Equal(t, OriginCityCenter, SelectDistanceOrigin("explicit_city_mentioned", true, true))
	require.Equal(t, OriginUserLocation, SelectDistanceOrigin("other", false, true))
	require.Equal(t, OriginNone, SelectDistanceOrigin("other", false, false))
}

func TestApplyWithRelax_RelaxesInOrderAndRespectsHardConstraints(t *testing.T) {
	rating := 3.0
	items := []jobstore.ResultItem{
		{PlaceID: "a", Rating: &rating, OpenNow: boolPtr(false)},
		{PlaceID: "b", Rating: &rating, OpenNow: boolPtr(false)},
	}
	filters := SharedFilters{
		OpenState: OpenState{Kind: "OPEN_NOW"},
		MinRating: Rating45,
		IsKosher:  true,
	}
	result := ApplyWithRelax(items, filters, nil, time.Now(), 2)
	require.Len(t, result.Items, 2)
	require.Contains(t, result.Relaxed, "openState")
	require.Len(t, result.Denied, 1)
	require.Equal(t, "isKosher", result.Denied[0].Field)
}
