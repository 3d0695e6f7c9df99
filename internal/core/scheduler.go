package core

// scheduler.go keeps every tool fresh in the background.
//
// Each pass calls EnsureUpdated without force for every tool, so tools that
// were committed today cost one freshness read. Failures are logged and the
// next pass retries; the scheduler never stops the process.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRefreshInterval is how often the scheduler checks all tools.
const DefaultRefreshInterval = time.Hour

// SchedulerConfig holds configuration for the refresh scheduler.
type SchedulerConfig struct {
	Interval   time.Duration // How often to run (default: 1h)
	RunOnStart bool          // Run a pass before the first tick
}

// StartScheduler runs refresh passes until ctx is cancelled.
func (s *Service) StartScheduler(ctx context.Context, cfg SchedulerConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	slog.Info("refresh scheduler started", "interval", cfg.Interval.String())

	if cfg.RunOnStart {
		s.RefreshAll(ctx)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// RefreshAll runs one non-forced pass over every tool and returns the
// reports of the tools that were refreshed or failed.
func (s *Service) RefreshAll(ctx context.Context) []*RefreshReport {
	start := time.Now()
	var reports []*RefreshReport

	for _, tool := range s.catalog.Tools() {
		if ctx.Err() != nil {
			break
		}
		report, err := s.EnsureUpdated(ctx, tool.ID, false)
		if err != nil {
			slog.Error("scheduled refresh failed", "tool", tool.ID, "error", err)
			if report == nil {
				report = &RefreshReport{ToolID: tool.ID, State: StateAborted}
			}
		}
		if report.State != StateFresh {
			reports = append(reports, report)
		}
	}

	slog.Info("refresh pass completed",
		"refreshed", len(reports),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reports
}
