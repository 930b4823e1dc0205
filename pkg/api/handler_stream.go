package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// assistantStreamHandler handles GET /api/v1/stream/assistant/:requestId,
// upgrading the connection to Server-Sent Events and delegating to the
// Assistant SSE Streamer. echo.Response implements both io.Writer and
// Flush, satisfying assistant.Writer directly.
func (s *Server) assistantStreamHandler(c *echo.Context) error {
	requestID := c.Param("requestId")
	if requestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requestId is required")
	}

	id, err := s.resolveIdentity(c)
	if err != nil {
		return mapServiceError(err)
	}

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	s.streamer.HandleRequest(c.Request().Context(), resp, requestID, id.SessionID)
	return nil
}
