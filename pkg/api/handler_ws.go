package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/shacharon/pizza-sub006/pkg/realtime"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// Realtime Hub. The ticket query parameter is resolved to an identity
// and consumed (one-time use) before the upgrade completes. A ticket
// that is unknown, already consumed or expired is upgraded and then
// closed with 4401; a request without a ticket gets HTTP 401.
func (s *Server) wsHandler(c *echo.Context) error {
	ticket := c.QueryParam("ticket")
	if ticket == "" {
		return echo.NewHTTPError(401, "missing ticket")
	}

	id, ok, err := s.authService.ConsumeWSTicket(ticket)
	if err != nil {
		return mapServiceError(err)
	}
	if !ok {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return err
		}
		_ = conn.Close(websocket.StatusCode(realtime.CloseUnauthorized), "invalid or expired ticket")
		return nil
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Origin validation deferred to deployment-specific config; this
		// mirrors the allow-all-origins posture documented for the
		// reference connection manager until an allowlist is wired in.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.hub.HandleUpgrade(c.Request().Context(), conn, id.SessionID)
	return nil
}
