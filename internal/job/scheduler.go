package job

import (
	"context"
	"time"

	"sitevault/internal/logging"
)

// Runner starts the backup a schedule describes and blocks until the job
// reaches a terminal state. The orchestration layer implements it.
type Runner interface {
	RunScheduled(ctx context.Context, sched *Schedule) (*Job, error)
}

// Scheduler drives recurring backups: on every tick it fires the earliest
// due active schedule, persists the recomputed next_run regardless of how
// the run went, then applies the schedule's retention policy.
type Scheduler struct {
	store     *ScheduleStore
	runner    Runner
	retention *RetentionPolicy
	logger    *logging.Logger
}

// NewScheduler wires a scheduler. retention may be nil when no pruning is
// wanted.
func NewScheduler(store *ScheduleStore, runner Runner, retention *RetentionPolicy, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Scheduler{
		store:     store,
		runner:    runner,
		retention: retention,
		logger:    logger,
	}
}

// RunDue fires at most one schedule: the active one with the earliest due
// next_run. A schedule that has never run is due immediately. Returns the
// finished job, or nil when nothing was due.
//
// next_run and last_run are persisted before the run outcome is reported,
// so a failing backup still moves its schedule forward instead of
// re-firing on every tick.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) (*Job, error) {
	schedules, err := s.store.List()
	if err != nil {
		return nil, err
	}

	var due *Schedule
	for _, sched := range schedules {
		if !sched.Active {
			continue
		}
		if sched.NextRun != nil && sched.NextRun.After(now) {
			continue
		}
		if due == nil || earlier(sched.NextRun, due.NextRun) {
			due = sched
		}
	}
	if due == nil {
		return nil, nil
	}

	s.logger.WithFields(map[string]interface{}{
		"operation": "schedule_run",
		"schedule":  due.ID,
		"name":      due.Name,
		"kind":      string(due.Kind),
	}).Info("Running due schedule")

	ran, runErr := s.runner.RunScheduled(ctx, due)

	last := now
	next := due.NextAfter(now)
	due.LastRun = &last
	due.NextRun = &next
	if err := s.store.Save(due); err != nil {
		return ran, err
	}

	if runErr != nil {
		s.logger.WithError(runErr).WithField("schedule", due.ID).Error("Scheduled backup failed")
		return ran, runErr
	}

	if s.retention != nil && due.Retention > 0 {
		deleted, err := s.retention.Apply(ctx, due.Name, due.Retention)
		if err != nil {
			// Retention failures never fail the run that produced a good
			// backup.
			s.logger.WithError(err).WithField("schedule", due.ID).Warn("Retention pass failed")
		} else if len(deleted) > 0 {
			s.logger.WithFields(map[string]interface{}{
				"schedule": due.ID,
				"deleted":  len(deleted),
			}).Info("Retention pruned old backups")
		}
	}

	return ran, nil
}

// RunLoop ticks until the context is canceled. Errors from individual
// runs are logged and do not stop the loop.
func (s *Scheduler) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.WithField("interval", interval.String()).Info("Scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case now := <-ticker.C:
			if _, err := s.RunDue(ctx, now); err != nil {
				s.logger.WithError(err).Warn("Scheduler tick failed")
			}
		}
	}
}

// earlier treats a nil next_run as due since forever.
func earlier(a, b *time.Time) bool {
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}
