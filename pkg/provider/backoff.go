package provider

import (
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// vectorBackOff replays a fixed backoff vector (e.g. [0, 300]ms) rather
// than the library's default exponential curve, matching the explicit
// backoff vector the external interface contract specifies
// (PROVIDER_RETRY_BACKOFF_MS).
type vectorBackOff struct {
	vector      []time.Duration
	maxAttempts int
	attempt     int
}

var _ backoff.BackOff = (*vectorBackOff)(nil)

func (v *vectorBackOff) Reset() { v.attempt = 0 }

func (v *vectorBackOff) NextBackOff() time.Duration {
	if v.attempt >= v.maxAttempts-1 || len(v.vector) == 0 {
		return backoff.Stop
	}
	idx := v.attempt
	if idx >= len(v.vector) {
		idx = len(v.vector) - 1
	}
	v.attempt++
	return v.vector[idx]
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in url")
	}
	return u.Hostname(), nil
}
