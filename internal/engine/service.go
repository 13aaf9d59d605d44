// Package engine orchestrates the full backup, restore, and migration
// flows: it owns job lifecycles, serializes runs per backup target, drives
// the dump/archive/container pipeline, and fans the finished container out
// to the configured storage destinations.
package engine

import (
	"context"
	"database/sql"
	"sync"

	"sitevault/internal/config"
	"sitevault/internal/job"
	"sitevault/internal/logging"
	"sitevault/internal/storage"
)

// ProgressObserver receives every job progress update as it is recorded.
// The CLI registers one to drive a terminal progress bar.
type ProgressObserver func(pct int, message string)

// Service is the orchestration entry point consumed by the CLI and the
// scheduler. The database handle may be nil for purely file-based work.
type Service struct {
	cfg      *config.Config
	db       *sql.DB
	jobs     *job.Service
	registry *storage.Registry
	version  string
	logger   *logging.Logger
	observer ProgressObserver

	// Each logical backup target (schedule name, or the site itself) is
	// single-writer: two triggers for the same target run in sequence so
	// they can never race on one output path.
	mu      sync.Mutex
	targets map[string]*sync.Mutex
}

// NewService wires an orchestration service.
func NewService(cfg *config.Config, db *sql.DB, jobs *job.Service, registry *storage.Registry, version string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Service{
		cfg:      cfg,
		db:       db,
		jobs:     jobs,
		registry: registry,
		version:  version,
		logger:   logger,
		targets:  make(map[string]*sync.Mutex),
	}
}

// Jobs exposes the job service for status and listing queries.
func (s *Service) Jobs() *job.Service { return s.jobs }

// SetProgressObserver registers a callback invoked on every progress
// update in addition to the job store write. Set it before starting an
// operation; it is not safe to swap mid-run.
func (s *Service) SetProgressObserver(fn ProgressObserver) { s.observer = fn }

// JobStatus returns the external status view of one job.
func (s *Service) JobStatus(ctx context.Context, id string) (*job.StatusView, error) {
	return s.jobs.Status(ctx, id)
}

// RunScheduled implements job.Runner: it executes the backup a schedule
// describes, named after the schedule so retention can scope pruning to it.
func (s *Service) RunScheduled(ctx context.Context, sched *job.Schedule) (*job.Job, error) {
	return s.CreateBackup(ctx, BackupOptions{
		Kind:         sched.Kind,
		Destinations: sched.Destinations,
		Schedule:     sched.Name,
	})
}

// lockTarget acquires the serialization lock for one backup target and
// returns its release func.
func (s *Service) lockTarget(key string) func() {
	if key == "" {
		key = s.cfg.Site.Name
	}

	s.mu.Lock()
	lock, ok := s.targets[key]
	if !ok {
		lock = &sync.Mutex{}
		s.targets[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// progress records a job progress update. A failed update never aborts the
// operation that produced it.
func (s *Service) progress(ctx context.Context, id string, pct int, msg string) {
	if s.observer != nil {
		s.observer(pct, msg)
	}
	if err := s.jobs.SetProgress(ctx, id, pct, msg); err != nil {
		s.logger.WithError(err).WithField("job", id).Debug("Failed to record job progress")
	}
}

// failJob marks the job failed and returns its final record.
func (s *Service) failJob(ctx context.Context, id string, cause error) *job.Job {
	if err := s.jobs.Fail(ctx, id, cause); err != nil {
		s.logger.WithError(err).WithField("job", id).Error("Failed to record job failure")
	}
	finished, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil
	}
	return finished
}
