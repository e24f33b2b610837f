package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/services"
)

// Scheduler triggers the rolling waves once per local day and the
// cleanup on its configured date. It checks hourly; the waves themselves
// are idempotent, so a missed or repeated trigger is harmless.
type Scheduler struct {
	jobs   *Jobs
	cfg    *config.Config
	clock  services.Clock
	logger *slog.Logger

	lastWaveDay    string
	lastCleanupDay string
}

func NewScheduler(jobs *Jobs, cfg *config.Config, clk services.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{jobs: jobs, cfg: cfg, clock: clk, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires whatever is due at the current instant.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	day := now.Format("2006-01-02")

	if s.lastWaveDay != day {
		s.lastWaveDay = day
		if err := s.jobs.YearlyWave(ctx); err != nil {
			s.logger.Error("yearly wave failed", "err", err)
		}
		if err := s.jobs.MonthlyWave(ctx); err != nil {
			s.logger.Error("monthly wave failed", "err", err)
		}
	}

	if int(now.Month()) == s.cfg.CleanupMonth && now.Day() == s.cfg.CleanupDay && s.lastCleanupDay != day {
		s.lastCleanupDay = day
		if err := s.jobs.Cleanup(ctx); err != nil {
			s.logger.Error("cleanup failed", "err", err)
		}
	}
}
