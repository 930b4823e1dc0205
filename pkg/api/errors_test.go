package api

import (
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/shacharon/pizza-sub006/pkg/auth"
	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "store unavailable maps to 503",
			err:        fmt.Errorf("wrapped: %w", jobstore.ErrStoreUnavailable),
			expectCode: http.StatusServiceUnavailable,
			expectMsg:  "job store unavailable",
		},
		{
			name:       "unauthorized maps to 401",
			err:        auth.ErrUnauthorized,
			expectCode: http.StatusUnauthorized,
			expectMsg:  "unauthorized",
		},
		{
			name:       "session store unavailable maps to 503",
			err:        fmt.Errorf("wrapped: %w", auth.ErrServiceUnavailable),
			expectCode: http.StatusServiceUnavailable,
			expectMsg:  "session store unavailable",
		},
		{
			name:       "unknown error maps to 500",
			err:        fmt.Errorf("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
