// Package api provides the HTTP surface for the search orchestrator:
// session bootstrap, search submission/polling, the Assistant SSE
// stream, and the Realtime Hub WebSocket upgrade.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/shacharon/pizza-sub006/pkg/assistant"
	"github.com/shacharon/pizza-sub006/pkg/auth"
	"github.com/shacharon/pizza-sub006/pkg/config"
	"github.com/shacharon/pizza-sub006/pkg/database"
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/pipeline"
	"github.com/shacharon/pizza-sub006/pkg/realtime"
	"github.com/shacharon/pizza-sub006/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg          *config.Config
	dbClient     *database.Client
	store        jobstore.Store
	orchestrator *pipeline.Orchestrator
	hub          *realtime.Hub
	streamer     *assistant.Streamer
	authService  *auth.Service
	verifyBearer func(token string) (auth.Identity, error)
}

// NewServer creates a new API server with Echo v5.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	store jobstore.Store,
	orchestrator *pipeline.Orchestrator,
	hub *realtime.Hub,
	streamer *assistant.Streamer,
	authService *auth.Service,
) *Server {
	e := echo.New()

	s := &Server{
		echo:         e,
		cfg:          cfg,
		dbClient:     dbClient,
		store:        store,
		orchestrator: orchestrator,
		hub:          hub,
		streamer:     streamer,
		authService:  authService,
		verifyBearer: auth.VerifyBearer(cfg.JWTSecret),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	// Server-wide body size limit — small, since a search request body is
	// just a query plus a couple of coordinates.
	s.echo.Use(middleware.BodyLimit(64 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/auth/bootstrap", s.bootstrapHandler)
	v1.POST("/auth/ws-ticket", s.wsTicketHandler)

	v1.POST("/search", s.createSearchHandler)
	v1.GET("/search/:requestId", s.getSearchHandler)

	v1.GET("/stream/assistant/:requestId", s.assistantStreamHandler)

	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on the given address and blocks until
// the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health. Only the database is checked (when
// one is configured); the job store, the LLM collaborator and places
// provider are external and excluded so their outages don't flap this
// process's liveness probe.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := "healthy"

	if s.dbClient != nil {
		if _, err := database.Health(reqCtx, s.dbClient.DB()); err != nil {
			status = "unhealthy"
			checks["database"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
		} else {
			checks["database"] = HealthCheck{Status: "healthy"}
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.Full(),
		Checks:  checks,
	})
}
