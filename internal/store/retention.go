package store

// retention.go prunes the import audit trail on a schedule.
//
// The scheduler is long-running and stops with its context. Failed prune
// cycles are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes import runs older than a cutoff.
type Pruner interface {
	PruneImportRuns(ctx context.Context, olderThan time.Time) (int64, error)
}

// RetentionConfig holds configuration for the retention scheduler.
// Zero values fall back to defaults.
type RetentionConfig struct {
	RetentionDays int           // Days to keep import runs (default: 90)
	CheckInterval time.Duration // How often to run (default: 24h)
}

const (
	defaultRetentionDays = 90
	defaultCheckInterval = 24 * time.Hour
)

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaultRetentionDays
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	return c
}

// StartRetentionScheduler prunes old import runs immediately and then every
// CheckInterval until ctx is cancelled. It blocks; run it in a goroutine.
func StartRetentionScheduler(ctx context.Context, p Pruner, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval.String(),
	)

	runRetentionJob(ctx, p, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case now := <-ticker.C:
			runRetentionJob(ctx, p, cfg, now)
		}
	}
}

// runRetentionJob performs one prune cycle and returns the rows removed.
func runRetentionJob(ctx context.Context, p Pruner, cfg RetentionConfig, now time.Time) int64 {
	start := time.Now()
	cutoff := now.AddDate(0, 0, -cfg.RetentionDays)

	pruned, err := p.PruneImportRuns(ctx, cutoff)
	if err != nil {
		slog.Error("prune import runs failed", "error", err)
		return 0
	}

	slog.Info("pruned import runs",
		"runs_pruned", pruned,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pruned
}
