package provider

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestError_DomainStatus(t *testing.T) {
	require.Equal(t, "RATE_LIMITED", (&Error{StatusCode: 429}).DomainStatus())
	require.Equal(t, "UPSTREAM_TIMEOUT", (&Error{StatusCode: 503}).DomainStatus())
	require.Equal(t, "VALIDATION_ERROR", (&Error{StatusCode: 400}).DomainStatus())
	require.Equal(t, "DNS_FAIL", (&Error{Code: ErrDNSFail}).DomainStatus())
}

func TestNormalize_DropsItemsWithoutPlaceID(t *testing.T) {
	resp := rawSearchResponse{Results: []rawPlace{
		{PlaceID: "a", Name: "A"},
		{PlaceID: "", Name: "no id"},
	}}
	page := normalize(resp, 20)
	require.Len(t, page.Items, 1)
	require.Equal(t, "a", page.Items[0].PlaceID)
}

func TestNormalize_EnforcesPageSizeCeiling(t *testing.T) {
	var results []rawPlace
	for i := 0; i < 50; i++ {
		results = append(results, rawPlace{PlaceID: "p"})
	}
	page := normalize(rawSearchResponse{Results: results}, 10)
	require.Len(t, page.Items, 10)
}

func TestVectorBackOff_StopsAtMaxAttempts(t *testing.T) {
	v := &vectorBackOff{vector: []time.Duration{0, 300 * time.Millisecond}, maxAttempts: 3}
	require.Equal(t, time.Duration(0), v.NextBackOff())
	require.Equal(t, 300*time.Millisecond, v.NextBackOff())
	require.Equal(t, backoff.Stop, v.NextBackOff())
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("https://places.example.com/textsearch?query=pizza")
	require.NoError(t, err)
	require.Equal(t, "places.example.com", host)

	_, err = hostOf("not a url")
	require.Error(t, err)
}
