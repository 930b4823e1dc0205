package pipeline

import (
	"context"
	"strings"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// DeterministicRoute is the production RouteStage: a pure decision table,
// no external calls. It picks the provider method and enforces the
// text-search location-anchor guard.
type DeterministicRoute struct{}

func (DeterministicRoute) Run(ctx context.Context, req jobstore.RequestPayload, intent IntentFields) (RouteResult, error) {
	hasCity := strings.TrimSpace(intent.City) != ""
	hasLandmark := strings.TrimSpace(intent.Landmark) != ""
	hasUserLocation := req.UserLocation != nil

	if intent.NearMe || (hasUserLocation && !hasCity && !hasLandmark) {
		return RouteResult{Route: RouteNearbySearch}, nil
	}
	if hasLandmark {
		return RouteResult{Route: RouteLandmarkPlan}, nil
	}
	if hasCity {
		return RouteResult{Route: RouteTextSearch}, nil
	}
	if !hasUserLocation {
		return RouteResult{FailureReason: FailureLocationRequired}, nil
	}
	return RouteResult{Route: RouteNearbySearch}, nil
}
