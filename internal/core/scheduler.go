package core

// scheduler.go runs the audit retention job. It is long-running and stops
// with its context; a failed purge is logged and retried on the next tick.

import (
	"context"
	"time"
)

// PurgeConfig holds configuration for the purge scheduler.
type PurgeConfig struct {
	RetentionDays int           // Days to keep in audit_log (default: 180)
	Interval      time.Duration // How often to run (default: 24h)
}

func (c PurgeConfig) withDefaults() PurgeConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 180
	}
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	return c
}

// StartPurgeScheduler deletes audit entries older than the retention window.
// It runs immediately, then every Interval, until ctx is cancelled. It
// returns at once when no audit store is configured.
func (s *Service) StartPurgeScheduler(ctx context.Context, cfg PurgeConfig) {
	if s.audit == nil {
		return
	}
	cfg = cfg.withDefaults()
	s.log.Info("audit purge scheduler started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.Interval.String(),
	)

	s.runPurgeJob(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("audit purge scheduler stopped")
			return
		case <-ticker.C:
			s.runPurgeJob(ctx, cfg)
		}
	}
}

// runPurgeJob performs one purge.
func (s *Service) runPurgeJob(ctx context.Context, cfg PurgeConfig) {
	start := time.Now()
	cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)

	purged, err := s.audit.PurgeBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("audit purge failed", "error", err)
		return
	}
	s.log.Info("purged old audit entries",
		"entries_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
