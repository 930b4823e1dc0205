package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// JobFailedInput contains the data needed to notify operators that a
// search job reached DONE_FAILED (wired via the orchestrator's OnTerminalFailure hook).
// Location-required clarifications never reach this path — they are
// a normal outcome, not an operational failure.
type JobFailedInput struct {
	RequestID     string
	FailureReason string
}

// Service handles Slack notification delivery for terminal pipeline
// failures. Nil-safe: all methods are no-ops when service is nil, so
// callers can wire Orchestrator.OnTerminalFailure unconditionally.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyJobFailed posts a terminal-failure notification. Fail-open:
// errors are logged, never returned — this must never become a reason
// a request fails. main wires it into
// pipeline.Orchestrator.OnTerminalFailure through a small closure.
func (s *Service) NotifyJobFailed(ctx context.Context, input JobFailedInput) {
	if s == nil {
		return
	}

	// Thread repeat failures for the same requestId onto the earlier
	// notification instead of posting a new top-level message each time
	// a retried job fails again.
	threadTS, err := s.client.FindMessageByFingerprint(ctx, input.RequestID)
	if err != nil {
		s.logger.Warn("failed to look up existing Slack thread",
			"request_id", input.RequestID, "error", err)
	}

	blocks := BuildJobFailedMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("failed to send Slack failure notification",
			"request_id", input.RequestID,
			"failure_reason", input.FailureReason,
			"error", err)
	}
}
