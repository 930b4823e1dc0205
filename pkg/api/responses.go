package api

import "github.com/shacharon/pizza-sub006/pkg/jobstore"

// SearchResponse is returned by POST /api/v1/search.
type SearchResponse struct {
	RequestID  string `json:"requestId"`
	Status     string `json:"status"`
	Reused     bool   `json:"reused"`
	ReasonCode string `json:"reasonCode,omitempty"`
}

// JobResponse is returned by GET /api/v1/search/:requestId.
type JobResponse struct {
	RequestID string                  `json:"requestId"`
	Status    string                  `json:"status"`
	Progress  int                     `json:"progress"`
	Result    *jobstore.ResultBundle  `json:"result,omitempty"`
	Error     *jobstore.ErrorRecord   `json:"error,omitempty"`
	Assist    *jobstore.AssistPayload `json:"assist,omitempty"`
}

// BootstrapResponse is returned by POST /api/v1/auth/bootstrap.
type BootstrapResponse struct {
	SessionID string `json:"sessionId"`
}

// WSTicketResponse is returned by POST /api/v1/auth/ws-ticket.
type WSTicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expiresInSeconds"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
