package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shacharon/pizza-sub006/pkg/assistant"
	"github.com/shacharon/pizza-sub006/pkg/auth"
	"github.com/shacharon/pizza-sub006/pkg/config"
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/pipeline"
	"github.com/shacharon/pizza-sub006/pkg/realtime"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := jobstore.NewMemory(jobstore.DefaultConfig(), nil)
	authService := &auth.Service{
		Backend:      auth.NewStore(7*24*time.Hour, 60*time.Second),
		CookieSecret: "test-secret",
		TicketTTL:    60 * time.Second,
	}
	cfg := &config.Config{CookieSameSite: "Lax"}
	hub := realtime.NewHub(32, 0)
	streamer := &assistant.Streamer{Store: store}
	orchestrator := &pipeline.Orchestrator{Store: store, Timeouts: pipeline.DefaultTimeouts()}

	return NewServer(cfg, nil, store, orchestrator, hub, streamer, authService)
}

func TestHealthHandler_NoDBConfigured(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestBootstrapHandler_SetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/bootstrap", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	setCookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "session=")
	assert.Contains(t, rec.Body.String(), "sessionId")
}

func TestWSTicketHandler_RequiresIdentity(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/ws-ticket", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWSTicketHandler_IssuesTicketAfterBootstrap(t *testing.T) {
	s := newTestServer(t)

	bootstrapReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/bootstrap", nil)
	bootstrapRec := httptest.NewRecorder()
	s.echo.ServeHTTP(bootstrapRec, bootstrapReq)
	require.Equal(t, http.StatusOK, bootstrapRec.Code)

	ticketReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/ws-ticket", nil)
	ticketReq.Header.Set("Cookie", firstSetCookie(bootstrapRec.Header().Get("Set-Cookie")))
	ticketRec := httptest.NewRecorder()
	s.echo.ServeHTTP(ticketRec, ticketReq)

	assert.Equal(t, http.StatusOK, ticketRec.Code)
	assert.Contains(t, ticketRec.Body.String(), "ticket")
}

func TestCreateSearchHandler_RejectsEmptyQuery(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSearchHandler_NotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// firstSetCookie extracts "name=value" from a Set-Cookie header value,
// stripping trailing attributes (Path, HttpOnly, etc.) for reuse as a
// request Cookie header in tests.
func firstSetCookie(setCookie string) string {
	for i := 0; i < len(setCookie); i++ {
		if setCookie[i] == ';' {
			return setCookie[:i]
		}
	}
	return setCookie
}
