// Package scheduler dispatches features carrying a cron expression through
// the features engine on their schedule.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/archonhq/archon/pkg/features"
	"github.com/robfig/cron/v3"
)

// Scheduler registers each scheduled feature with a cron runner. Execution
// is best-effort: failures are logged and the schedule keeps firing.
type Scheduler struct {
	logger     *slog.Logger
	repository features.Repository
	engine     *features.Engine
	cron       *cron.Cron
}

func NewScheduler(logger *slog.Logger, repository features.Repository, engine *features.Engine) *Scheduler {
	return &Scheduler{
		logger:     logger.With(slog.String("module", "scheduler")),
		repository: repository,
		engine:     engine,
		cron:       cron.New(),
	}
}

// Start registers every scheduled feature and starts the cron runner.
// Returns the number of registered entries.
func (s *Scheduler) Start(ctx context.Context) (int, error) {
	scheduled, err := s.repository.FindScheduled(ctx)
	if err != nil {
		return 0, err
	}

	registered := 0

	for _, feature := range scheduled {
		_, err := s.cron.AddFunc(feature.RunOnSchedule, s.entry(ctx, feature.ID))
		if err != nil {
			s.logger.ErrorContext(ctx, "Invalid schedule expression",
				slog.String("feature_id", feature.ID),
				slog.String("schedule", feature.RunOnSchedule), "error", err)

			continue
		}

		registered++
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", slog.Int("entries", registered))

	return registered, nil
}

// Stop halts the cron runner and waits for in-flight runs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) entry(ctx context.Context, featureID string) func() {
	return func() {
		// Re-read the definition on every tick so replacements take
		// effect without restarting the scheduler.
		feature, err := s.repository.GetByID(ctx, featureID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Scheduled feature no longer exists",
				slog.String("feature_id", featureID), "error", err)

			return
		}

		if err := s.engine.RunScheduled(ctx, feature); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled run failed",
				slog.String("feature_id", featureID), "error", err)
		}
	}
}
