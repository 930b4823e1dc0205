package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return &Service{
		Backend:      NewStore(7*24*time.Hour, 60*time.Second),
		CookieSecret: "test-secret",
		TicketTTL:    60 * time.Second,
	}
}

func TestBootstrapSession_ReturnsValidSignedCookie(t *testing.T) {
	s := newTestService()
	sessionID, cookie, err := s.BootstrapSession()
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	id, err := s.ResolveIdentity(cookie, "", nil)
	require.NoError(t, err)
	require.Equal(t, sessionID, id.SessionID)
}

func TestResolveIdentity_TamperedCookieRejected(t *testing.T) {
	s := newTestService()
	_, cookie, err := s.BootstrapSession()
	require.NoError(t, err)

	repl := "0"
	if cookie[len(cookie)-1] == '0' {
		repl = "1"
	}
	tampered := cookie[:len(cookie)-1] + repl
	_, err = s.ResolveIdentity(tampered, "", nil)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveIdentity_FallsBackToBearerToken(t *testing.T) {
	s := newTestService()
	verify := func(token string) (Identity, error) {
		if token == "good-token" {
			return Identity{SessionID: "sess-from-token"}, nil
		}
		return Identity{}, ErrUnauthorized
	}

	id, err := s.ResolveIdentity("", "good-token", verify)
	require.NoError(t, err)
	require.Equal(t, "sess-from-token", id.SessionID)
}

func TestResolveIdentity_NeitherValidFails(t *testing.T) {
	s := newTestService()
	_, err := s.ResolveIdentity("", "", nil)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestIssueAndConsumeWSTicket_OneTimeUse(t *testing.T) {
	s := newTestService()
	ticket, ttl, err := s.IssueWSTicket(Identity{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	id, ok, err := s.ConsumeWSTicket(ticket)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sess-1", id.SessionID)

	_, ok, err = s.ConsumeWSTicket(ticket)
	require.NoError(t, err)
	require.False(t, ok)
}
