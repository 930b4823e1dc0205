package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/shacharon/pizza-sub006/pkg/auth"
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// mapServiceError maps domain-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, jobstore.ErrStoreUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "job store unavailable")
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if errors.Is(err, auth.ErrServiceUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
	}

	slog.Error("unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
