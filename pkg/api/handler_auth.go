package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// bootstrapHandler handles POST /api/v1/auth/bootstrap: issues a fresh
// anonymous session and sets the signed session cookie.
func (s *Server) bootstrapHandler(c *echo.Context) error {
	sessionID, cookieValue, err := s.authService.BootstrapSession()
	if err != nil {
		return mapServiceError(err)
	}

	secure := s.cfg.CookieSameSite != "None" || c.Request().TLS != nil
	setSessionCookie(c, cookieValue, s.cfg.CookieDomain, s.cfg.CookieSameSite, secure)

	return c.JSON(http.StatusOK, &BootstrapResponse{SessionID: sessionID})
}

// wsTicketHandler handles POST /api/v1/auth/ws-ticket: issues a one-time
// ticket the client exchanges for a WebSocket upgrade.
func (s *Server) wsTicketHandler(c *echo.Context) error {
	id, err := s.resolveIdentity(c)
	if err != nil {
		return mapServiceError(err)
	}

	ticket, ttl, err := s.authService.IssueWSTicket(id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &WSTicketResponse{
		Ticket:    ticket,
		ExpiresIn: int(ttl.Seconds()),
	})
}
