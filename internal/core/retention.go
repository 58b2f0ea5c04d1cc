package core

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// RetentionConfig tunes the pending-job purge loop.
type RetentionConfig struct {
	// PendingTTL is how long a job may await confirmation before it
	// is cancelled and its staged file removed.
	PendingTTL time.Duration

	// CheckInterval is how often expired jobs are swept.
	CheckInterval time.Duration
}

// StartRetention runs the purge loop until the context is cancelled.
// Abandoned confirmations would otherwise leak staged files forever.
// Run it in its own goroutine from main.
func (s *Service) StartRetention(ctx context.Context, cfg RetentionConfig) {
	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	slog.Info("retention job started",
		"pending_ttl", cfg.PendingTTL, "check_interval", cfg.CheckInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention job stopped")
			return
		case <-ticker.C:
			s.purgeExpired(ctx, cfg.PendingTTL)
		}
	}
}

func (s *Service) purgeExpired(ctx context.Context, ttl time.Duration) {
	cutoff := time.Now().UTC().Add(-ttl)

	jobs, err := s.store.ExpiredPendingJobs(ctx, cutoff)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}

	for _, job := range jobs {
		if job.TempPath != "" {
			if err := os.Remove(job.TempPath); err != nil && !os.IsNotExist(err) {
				slog.Warn("failed to remove staged file",
					"job_id", job.ID, "path", job.TempPath, "error", err)
			}
		}
		if err := s.store.SetImportJobStatus(ctx, job.ID, JobCancelled); err != nil {
			slog.Error("failed to cancel expired job", "job_id", job.ID, "error", err)
			continue
		}
		slog.Info("expired pending job cancelled",
			"job_id", job.ID, "created_at", job.CreatedAt)
	}
}
