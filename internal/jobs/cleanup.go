// Package jobs holds background maintenance work that runs alongside the API
// server.
//
// CleanupJob periodically purges verification tokens that can no longer be
// redeemed and audit entries older than the configured retention window.
// Both purges are idempotent, so several replicas running the job at once
// only repeat work.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/helporbit/helporbit/internal/telemetry"
)

// VerificationPurger removes expired or consumed verification tokens.
type VerificationPurger interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPurger removes audit entries older than a cutoff.
type AuditPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob runs the purges on a fixed interval.
type CleanupJob struct {
	verifications VerificationPurger
	audit         AuditPurger
	retention     time.Duration
	interval      time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger
	stopChan      chan struct{}
}

// NewCleanupJob creates a job that runs every interval. retentionDays of zero
// keeps audit entries forever; a nil audit purger does the same.
func NewCleanupJob(verifications VerificationPurger, audit AuditPurger, retentionDays int, interval time.Duration, clock clockwork.Clock) *CleanupJob {
	if interval <= 0 {
		interval = time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CleanupJob{
		verifications: verifications,
		audit:         audit,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
		interval:      interval,
		clock:         clock,
		logger:        slog.Default().With("job", "cleanup"),
		stopChan:      make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval until ctx is
// cancelled or Stop is called. It blocks, so callers run it in a goroutine.
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("cleanup job started", "interval", j.interval, "audit_retention", j.retention)
	j.RunOnce(ctx)

	for {
		select {
		case <-ticker.Chan():
			j.RunOnce(ctx)
		case <-j.stopChan:
			j.logger.Info("cleanup job stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the loop started by Start.
func (j *CleanupJob) Stop() {
	close(j.stopChan)
}

// RunOnce performs a single pass. Failures are logged and retried on the
// next tick.
func (j *CleanupJob) RunOnce(ctx context.Context) {
	now := j.clock.Now()

	if j.verifications != nil {
		n, err := j.verifications.DeleteStale(ctx, now)
		if err != nil {
			j.logger.Error("failed to purge verification tokens", "error", err)
		} else if n > 0 {
			telemetry.CleanupPurgedRowsTotal.WithLabelValues("verifications").Add(float64(n))
			j.logger.Info("purged verification tokens", "count", n)
		}
	}

	if j.audit != nil && j.retention > 0 {
		n, err := j.audit.DeleteBefore(ctx, now.Add(-j.retention))
		if err != nil {
			j.logger.Error("failed to purge audit logs", "error", err)
		} else if n > 0 {
			telemetry.CleanupPurgedRowsTotal.WithLabelValues("audit_logs").Add(float64(n))
			j.logger.Info("purged audit logs", "count", n)
		}
	}
}
