package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// createSearchHandler handles POST /api/v1/search: resolves the dedup
// decision via the Job Store, and — for a freshly-created job only —
// launches the orchestrator pipeline as a detached background goroutine
// before returning. A reused job is returned as it is, without starting
// another pipeline run.
func (s *Server) createSearchHandler(c *echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	id, err := s.resolveIdentity(c)
	if err != nil {
		return mapServiceError(err)
	}

	payload := jobstore.RequestPayload{
		Query:          req.Query,
		LanguageHint:   req.LanguageHint,
		UserLocation:   req.UserLocation,
		FilterOverride: req.FilterOverride,
	}

	job, decision, err := s.store.CreateOrGet(c.Request().Context(), payload, req.IdempotencyKey, jobstore.Identity{
		SessionID: id.SessionID,
		UserID:    id.UserID,
	})
	if err != nil {
		return mapServiceError(err)
	}

	if !decision.Reused {
		go s.orchestrator.Run(context.Background(), job.RequestID)
	}

	return c.JSON(http.StatusAccepted, &SearchResponse{
		RequestID:  job.RequestID,
		Status:     string(job.Status),
		Reused:     decision.Reused,
		ReasonCode: decision.ReasonCode,
	})
}

// getSearchHandler handles GET /api/v1/search/:requestId: returns the
// current Job snapshot (status/progress/result/error/assist).
func (s *Server) getSearchHandler(c *echo.Context) error {
	requestID := c.Param("requestId")
	if requestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requestId is required")
	}

	job, err := s.store.GetJob(c.Request().Context(), requestID)
	if err != nil {
		return mapServiceError(err)
	}
	if job == nil {
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	}

	return c.JSON(http.StatusOK, &JobResponse{
		RequestID: job.RequestID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Result:    job.Result,
		Error:     job.Error,
		Assist:    job.Assist,
	})
}
