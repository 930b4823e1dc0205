package api

import "github.com/shacharon/pizza-sub006/pkg/jobstore"

// SearchRequest is the HTTP request body for POST /api/v1/search.
type SearchRequest struct {
	Query          string            `json:"query"`
	LanguageHint   string            `json:"languageHint,omitempty"`
	UserLocation   *jobstore.LatLng  `json:"userLocation,omitempty"`
	FilterOverride map[string]string `json:"filterOverrides,omitempty"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
}
