// Package cleanup provides data retention for the audit log.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// AuditPurger is the narrow slice of pkg/audit.Sink this service needs.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// Config controls the retention loop's cadence and window.
type Config struct {
	RetentionDays   int
	CleanupInterval time.Duration
}

// Service periodically purges job_transitions/stage_events rows older
// than the configured retention window. All operations are idempotent
// and safe to run from multiple replicas.
type Service struct {
	config *Config
	audit  AuditPurger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *Config, audit AuditPurger) *Service {
	return &Service{config: cfg, audit: audit}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"retention_days", s.config.RetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.purgeAuditLog(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeAuditLog(ctx)
		}
	}
}

func (s *Service) purgeAuditLog(ctx context.Context) {
	count, err := s.audit.PurgeOlderThan(ctx, s.config.RetentionDays)
	if err != nil {
		slog.Error("retention: audit log purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged audit log rows", "count", count)
	}
}
