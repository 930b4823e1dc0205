// Package provider implements fetch-with-timeout, retry, and
// normalization against the external Places vendor. The concrete vendor
// SDK is out of scope — Client wraps plain HTTP against a
// vendor base URL plus an API key, matching the fetch-with-timeout shape
// the reference codebase uses for its other outbound HTTP integrations.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// ErrorCode is the Provider Adapter's own error taxonomy.
type ErrorCode string

const (
	ErrDNSFail      ErrorCode = "DNS_FAIL"
	ErrTimeout      ErrorCode = "TIMEOUT"
	ErrAbort        ErrorCode = "ABORT"
	ErrHTTPError    ErrorCode = "HTTP_ERROR"
	ErrNetworkError ErrorCode = "NETWORK_ERROR"
)

// Error is a typed provider failure; Retryable mirrors whether the
// underlying cause is transient.
type Error struct {
	Code       ErrorCode
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *Error) Error() string { return fmt.Sprintf("provider: %s: %s", e.Code, e.Message) }

// DomainStatus maps a provider Error to the caller-facing status per
// 400->user, 429->RATE_LIMITED, 5xx->UPSTREAM_TIMEOUT.
func (e *Error) DomainStatus() string {
	switch {
	case e.StatusCode == 400:
		return "VALIDATION_ERROR"
	case e.StatusCode == 429:
		return "RATE_LIMITED"
	case e.StatusCode >= 500:
		return "UPSTREAM_TIMEOUT"
	case e.Code == ErrDNSFail:
		return "DNS_FAIL"
	case e.Code == ErrTimeout || e.Code == ErrAbort:
		return "UPSTREAM_TIMEOUT"
	default:
		return "NETWORK_ERROR"
	}
}

// MethodKind tags the provider call the Route mapping stage selected.
type MethodKind string

const (
	MethodTextSearch   MethodKind = "textSearch"
	MethodNearbySearch MethodKind = "nearbySearch"
	MethodFindPlace    MethodKind = "findPlace"
	MethodGeocode      MethodKind = "geocodeAddress"
)

// Config bundles per-method timeouts and retry policy.
type Config struct {
	BaseURL        string
	APIKey         string
	TextSearchTO   time.Duration
	NearbyTO       time.Duration
	FindPlaceTO    time.Duration
	RetryAttempts  int
	RetryBackoff   []time.Duration
	DNSPreflightTO time.Duration // 0 disables the preflight
	PageSizeCeil   int
}

// Client is the Provider Adapter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a Provider Adapter client.
func NewClient(cfg Config) *Client {
	if cfg.PageSizeCeil == 0 {
		cfg.PageSizeCeil = 20
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
}

// rawPlace is the vendor's wire shape for one place, before
// normalization. Field names are illustrative of the vendor contract.
type rawPlace struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Address          string   `json:"formatted_address"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	OpenNow          *bool    `json:"open_now"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	PriceLevel       *int     `json:"price_level"`
	Types            []string `json:"types"`
}

type rawSearchResponse struct {
	Results          []rawPlace `json:"results"`
	NextPageToken    string     `json:"next_page_token"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message"`
}

// Page is one normalized page of results plus an optional continuation
// token.
type Page struct {
	Items         []jobstore.ResultItem
	NextPageToken string
}

// TextSearch, NearbySearch, FindPlace, GeocodeAddress are thin wrappers
// around the shared fetchAndNormalize — only the URL construction differs.

func (c *Client) TextSearch(ctx context.Context, query, language, region string, pageToken string) (Page, error) {
	url := fmt.Sprintf("%s/textsearch?query=%s&language=%s&region=%s&pagetoken=%s&key=%s",
		c.cfg.BaseURL, query, language, region, pageToken, c.cfg.APIKey)
	return c.fetchAndNormalize(ctx, url, c.cfg.TextSearchTO)
}

func (c *Client) NearbySearch(ctx context.Context, lat, lng float64, radiusM int, keyword, language string) (Page, error) {
	url := fmt.Sprintf("%s/nearbysearch?location=%f,%f&radius=%d&keyword=%s&language=%s&key=%s",
		c.cfg.BaseURL, lat, lng, radiusM, keyword, language, c.cfg.APIKey)
	return c.fetchAndNormalize(ctx, url, c.cfg.NearbyTO)
}

func (c *Client) FindPlace(ctx context.Context, input, language string) (Page, error) {
	url := fmt.Sprintf("%s/findplacefromtext?input=%s&language=%s&key=%s", c.cfg.BaseURL, input, language, c.cfg.APIKey)
	return c.fetchAndNormalize(ctx, url, c.cfg.FindPlaceTO)
}

func (c *Client) GeocodeAddress(ctx context.Context, address string) (jobstore.LatLng, error) {
	url := fmt.Sprintf("%s/geocode?address=%s&key=%s", c.cfg.BaseURL, address, c.cfg.APIKey)
	page, err := c.fetchAndNormalize(ctx, url, c.cfg.FindPlaceTO)
	if err != nil {
		return jobstore.LatLng{}, err
	}
	if len(page.Items) == 0 {
		return jobstore.LatLng{}, &Error{Code: ErrHTTPError, Message: "no geocode results"}
	}
	return jobstore.LatLng{Lat: page.Items[0].Lat, Lng: page.Items[0].Lng}, nil
}

// fetchAndNormalize performs fetch-with-timeout plus retry, then
// normalizes the raw vendor response into domain ResultItems.
func (c *Client) fetchAndNormalize(ctx context.Context, url string, timeout time.Duration) (Page, error) {
	if c.cfg.DNSPreflightTO > 0 {
		if err := c.dnsPreflight(ctx, url); err != nil {
			return Page{}, err
		}
	}

	var resp rawSearchResponse
	err := c.withRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel() // fetch-with-timeout: finally always clears the timer

		body, fetchErr := c.doFetch(callCtx, url)
		if fetchErr != nil {
			return fetchErr
		}
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
			return &Error{Code: ErrHTTPError, Message: "decode response: " + jsonErr.Error()}
		}
		return nil
	})
	if err != nil {
		return Page{}, err
	}

	return normalize(resp, c.cfg.PageSizeCeil), nil
}

func (c *Client) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Code: ErrNetworkError, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Code: ErrTimeout, Message: err.Error(), Retryable: true}
		}
		if ctx.Err() == context.Canceled {
			return nil, &Error{Code: ErrAbort, Message: err.Error()}
		}
		return nil, &Error{Code: ErrNetworkError, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: ErrNetworkError, Message: err.Error(), Retryable: true}
	}

	if resp.StatusCode >= 500 {
		return nil, &Error{Code: ErrHTTPError, StatusCode: resp.StatusCode, Message: "server error", Retryable: true}
	}
	if resp.StatusCode == 429 {
		return nil, &Error{Code: ErrHTTPError, StatusCode: 429, Message: "rate limited", Retryable: true}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Code: ErrHTTPError, StatusCode: resp.StatusCode, Message: "client error"}
	}

	return data, nil
}

// dnsPreflight resolves the URL's host with its own short budget,
// independent of the call's main timeout.
func (c *Client) dnsPreflight(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return &Error{Code: ErrDNSFail, Message: err.Error()}
	}
	preCtx, cancel := context.WithTimeout(ctx, c.cfg.DNSPreflightTO)
	defer cancel()

	resolver := &net.Resolver{}
	if _, err := resolver.LookupHost(preCtx, host); err != nil {
		return &Error{Code: ErrDNSFail, Message: err.Error()}
	}
	return nil
}

// withRetry calls fn at most cfg.RetryAttempts times in total, retrying
// transient errors after the delays in the configured backoff vector.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	attempt := 0
	policy := backoff.WithContext(&vectorBackOff{vector: c.cfg.RetryBackoff, maxAttempts: c.cfg.RetryAttempts}, ctx)

	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		var perr *Error
		if ok := asProviderError(err, &perr); ok && !perr.Retryable {
			return backoff.Permanent(err)
		}
		c.logger.Warn("provider call failed, retrying", "attempt", attempt, "error", err)
		return err
	}, policy)
}

func asProviderError(err error, out **Error) bool {
	if pe, ok := err.(*Error); ok {
		*out = pe
		return true
	}
	return false
}

// normalize maps vendor rawPlace items to domain ResultItems. Items
// without a placeId are silently dropped.
func normalize(resp rawSearchResponse, pageSizeCeil int) Page {
	items := make([]jobstore.ResultItem, 0, len(resp.Results))
	for _, rp := range resp.Results {
		if rp.PlaceID == "" {
			continue
		}
		if len(items) >= pageSizeCeil {
			break
		}
		items = append(items, jobstore.ResultItem{
			PlaceID:          rp.PlaceID,
			Name:             rp.Name,
			Address:          rp.Address,
			Lat:              rp.Lat,
			Lng:              rp.Lng,
			OpenNow:          rp.OpenNow,
			Rating:           rp.Rating,
			UserRatingsTotal: rp.UserRatingsTotal,
			PriceLevel:       rp.PriceLevel,
			Types:            rp.Types,
		})
	}
	return Page{Items: items, NextPageToken: resp.NextPageToken}
}
