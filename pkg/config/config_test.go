package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearSearchEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SESSION_COOKIE_SECRET", "JWT_SECRET", "DEDUP_RUNNING_MAX_AGE_MS",
		"PROVIDER_RETRY_BACKOFF_MS", "HTTP_PORT",
	}
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, orig)
			}
		})
	}
}

func TestLoad_RequiresSecrets(t *testing.T) {
	clearSearchEnv(t)
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	clearSearchEnv(t)
	os.Setenv("SESSION_COOKIE_SECRET", "s")
	os.Setenv("JWT_SECRET", "j")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, 90*time.Second, cfg.DedupRunningMaxAge)
	require.Equal(t, 3, cfg.ProviderRetryAttempts)
	require.Equal(t, []time.Duration{0, 300 * time.Millisecond}, cfg.ProviderRetryBackoff)
	require.Equal(t, "IL", cfg.DefaultRegion)
}

func TestLoad_BackoffVectorParsing(t *testing.T) {
	clearSearchEnv(t)
	os.Setenv("SESSION_COOKIE_SECRET", "s")
	os.Setenv("JWT_SECRET", "j")
	os.Setenv("PROVIDER_RETRY_BACKOFF_MS", "[10, 20,30]")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, cfg.ProviderRetryBackoff)
}
