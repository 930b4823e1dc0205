// Package auth implements the Session & Auth Substrate:
// session bootstrap with a signed HttpOnly cookie, one-time WS ticket
// issuance/consumption, and identity resolution from either the cookie
// or a JWT bearer token.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned by ResolveIdentity when neither a valid
// cookie nor a valid bearer token is present.
var ErrUnauthorized = errors.New("auth: unauthorized")

// ErrServiceUnavailable signals the session backend could not be
// reached (maps to HTTP 503).
var ErrServiceUnavailable = errors.New("auth: session store unavailable")

// Identity mirrors jobstore.Identity; duplicated here (rather than
// imported) to keep this package free of a dependency on the job model.
type Identity struct {
	SessionID string
	UserID    string // empty if anonymous
}

type sessionRecord struct {
	Identity  Identity
	UpdatedAt time.Time
}

type ticketRecord struct {
	Identity  Identity
	CreatedAt time.Time
}

// Backend is the session/ticket persistence contract. The in-process
// Store below is the only implementation this module ships; a
// Redis-backed one would satisfy the same interface for multi-replica
// deployments.
type Backend interface {
	PutSession(sessionID string, id Identity) error
	GetSession(sessionID string) (Identity, bool, error)
	TouchSession(sessionID string) error

	PutTicket(ticket string, id Identity) error
	// ConsumeTicket deletes the ticket on first successful read
	// (consumed-once semantics) and reports whether it existed.
	ConsumeTicket(ticket string) (Identity, bool, error)
}

// Store is the in-memory Backend. Sessions carry a sliding TTL enforced
// at read time; tickets are deleted on first use.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]sessionRecord
	tickets    map[string]ticketRecord
	sessionTTL time.Duration
	ticketTTL  time.Duration
	now        func() time.Time
}

func NewStore(sessionTTL, ticketTTL time.Duration) *Store {
	return &Store{
		sessions:   make(map[string]sessionRecord),
		tickets:    make(map[string]ticketRecord),
		sessionTTL: sessionTTL,
		ticketTTL:  ticketTTL,
		now:        time.Now,
	}
}

func (s *Store) PutSession(sessionID string, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = sessionRecord{Identity: id, UpdatedAt: s.now()}
	return nil
}

func (s *Store) GetSession(sessionID string) (Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return Identity{}, false, nil
	}
	if s.now().Sub(rec.UpdatedAt) > s.sessionTTL {
		delete(s.sessions, sessionID)
		return Identity{}, false, nil
	}
	return rec.Identity, true, nil
}

func (s *Store) TouchSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	rec.UpdatedAt = s.now()
	s.sessions[sessionID] = rec
	return nil
}

func (s *Store) PutTicket(ticket string, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticket] = ticketRecord{Identity: id, CreatedAt: s.now()}
	return nil
}

func (s *Store) ConsumeTicket(ticket string) (Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tickets[ticket]
	if !ok {
		return Identity{}, false, nil
	}
	delete(s.tickets, ticket)
	if s.now().Sub(rec.CreatedAt) > s.ticketTTL {
		return Identity{}, false, nil
	}
	return rec.Identity, true, nil
}

// Service wires a Backend plus cookie-signing secret into the three
// operations this package exposes.
type Service struct {
	Backend      Backend
	CookieSecret string
	TicketTTL    time.Duration
}

// BootstrapSession generates a fresh opaque session id, stores it with
// a sliding TTL, and returns the id plus the signed cookie value to set.
func (s *Service) BootstrapSession() (sessionID, cookieValue string, err error) {
	sessionID = uuid.New().String()
	if err := s.Backend.PutSession(sessionID, Identity{SessionID: sessionID}); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return sessionID, s.signCookie(sessionID), nil
}

// IssueWSTicket stores a one-time ticket for identity and returns it
// plus its TTL.
func (s *Service) IssueWSTicket(id Identity) (ticket string, ttl time.Duration, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", 0, err
	}
	ticket = base64.RawURLEncoding.EncodeToString(raw)
	ttl = s.TicketTTL
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	if err := s.Backend.PutTicket(ticket, id); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return ticket, ttl, nil
}

// ConsumeWSTicket resolves and deletes a ticket in one step, for the WS
// upgrade handler. Returns ok=false (caller closes with 4401) if the
// ticket is missing, already consumed, or expired.
func (s *Service) ConsumeWSTicket(ticket string) (Identity, bool, error) {
	id, ok, err := s.Backend.ConsumeTicket(ticket)
	if err != nil {
		return Identity{}, false, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return id, ok, nil
}

// ResolveIdentity checks the signed cookie first, then falls back to a
// bearer token resolved by verifyBearer (kept as a function parameter so
// this package's JWT verification lives in jwt.go and is swappable in
// tests).
func (s *Service) ResolveIdentity(cookieValue, bearerToken string, verifyBearer func(token string) (Identity, error)) (Identity, error) {
	if cookieValue != "" {
		sessionID, ok := s.verifyCookie(cookieValue)
		if ok {
			id, found, err := s.Backend.GetSession(sessionID)
			if err != nil {
				return Identity{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
			}
			if found {
				_ = s.Backend.TouchSession(sessionID)
				return id, nil
			}
		}
	}
	if bearerToken != "" && verifyBearer != nil {
		id, err := verifyBearer(bearerToken)
		if err == nil {
			return id, nil
		}
	}
	return Identity{}, ErrUnauthorized
}

// signCookie produces "<sessionID>.<hmac>" so the cookie is tamper-evident
// without needing a server-side lookup just to validate its shape.
func (s *Service) signCookie(sessionID string) string {
	mac := hmac.New(sha256.New, []byte(s.CookieSecret))
	mac.Write([]byte(sessionID))
	sig := hex.EncodeToString(mac.Sum(nil))
	return sessionID + "." + sig
}

func (s *Service) verifyCookie(value string) (sessionID string, ok bool) {
	idx := len(value) - 64 // hex sha256 digest length
	if idx <= 1 || value[idx-1] != '.' {
		return "", false
	}
	sessionID = value[:idx-1]
	sig := value[idx:]

	mac := hmac.New(sha256.New, []byte(s.CookieSecret))
	mac.Write([]byte(sessionID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return sessionID, true
}
