package pipeline

import (
	"context"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/langctx"
	"github.com/shacharon/pizza-sub006/pkg/provider"
)

// ProviderCallStage adapts pkg/provider.Client to ProviderStage,
// translating the orchestrator's RouteKind into the matching provider
// method and asserting providerLanguage immutability before the call.
type ProviderCallStage struct {
	Client *provider.Client
}

func (p *ProviderCallStage) Run(ctx context.Context, route RouteKind, req jobstore.RequestPayload, intent IntentFields, lang langctx.Context) ([]jobstore.ResultItem, error) {
	if err := langctx.AssertProviderLanguage(lang, lang.ProviderLanguage); err != nil {
		return nil, err
	}

	var page provider.Page
	var err error

	switch route {
	case RouteNearbySearch:
		var lat, lng float64
		if req.UserLocation != nil {
			lat, lng = req.UserLocation.Lat, req.UserLocation.Lng
		}
		page, err = p.Client.NearbySearch(ctx, lat, lng, 1500, intent.CuisineKey, lang.ProviderLanguage)
	case RouteLandmarkPlan:
		page, err = p.Client.FindPlace(ctx, intent.Landmark, lang.ProviderLanguage)
	default: // RouteTextSearch
		query := intent.City
		if intent.CuisineKey != "" {
			query = intent.CuisineKey + " " + query
		}
		page, err = p.Client.TextSearch(ctx, query, lang.ProviderLanguage, lang.RegionCode, "")
	}
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
