package engine

import (
	"context"
	"fmt"

	"sitevault/internal/dump"
	"sitevault/internal/errors"
	"sitevault/internal/job"
	"sitevault/internal/replace"
	"sitevault/internal/restore"
)

// Restore runs a container restore as a tracked job. Options left at their
// zero value fall back to the configuration: target root, replay policy.
func (s *Service) Restore(ctx context.Context, opts restore.Options) (*job.Job, *restore.Summary, error) {
	if opts.TargetRoot == "" {
		opts.TargetRoot = s.cfg.Site.RootDir
	}
	if opts.Policy == "" {
		policy, err := dump.ParseReplayPolicy(s.cfg.Restore.ReplayPolicy)
		if err != nil {
			return nil, nil, errors.NewConfigurationError(err.Error(), nil)
		}
		opts.Policy = policy
	}

	created, err := s.jobs.Create(ctx, job.KindRestore)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.lockTarget("")
	defer unlock()

	if err := s.jobs.Start(ctx, created.ID); err != nil {
		return created, nil, err
	}
	s.progress(ctx, created.ID, 10, "verifying backup container")

	var restorer *dump.Restorer
	if s.db != nil {
		restorer = dump.NewRestorer(s.db, s.logger)
	}

	summary, err := restore.NewEngine(restorer, s.version, s.logger).Restore(ctx, opts)
	if err != nil {
		return s.failJob(ctx, created.ID, err), nil, err
	}

	if err := s.jobs.Complete(ctx, created.ID, &job.Result{OutputPath: opts.ContainerPath}); err != nil {
		return created, summary, err
	}
	finished, err := s.jobs.Get(ctx, created.ID)
	return finished, summary, err
}

// MigrateURL rewrites every stored spelling of oldURL to newURL across the
// site's tables as a tracked job. Dry runs report what would change
// without persisting anything.
func (s *Service) MigrateURL(ctx context.Context, oldURL, newURL string, dryRun bool) (*job.Job, *replace.Report, error) {
	return s.runTransform(ctx, func(eng *replace.Engine, opts replace.Options) (*replace.Report, error) {
		opts.DryRun = dryRun
		return eng.RunURLMigration(ctx, oldURL, newURL, opts)
	})
}

// SearchReplace runs a literal search-and-replace across the site's tables
// as a tracked job.
func (s *Service) SearchReplace(ctx context.Context, opts replace.Options) (*job.Job, *replace.Report, error) {
	return s.runTransform(ctx, func(eng *replace.Engine, defaults replace.Options) (*replace.Report, error) {
		if opts.BatchSize <= 0 {
			opts.BatchSize = defaults.BatchSize
		}
		if opts.PreviewLimit <= 0 {
			opts.PreviewLimit = defaults.PreviewLimit
		}
		return eng.Run(ctx, opts)
	})
}

// runTransform is the shared job flow for the rewrite operations. The
// site-wide target lock keeps rewrites from interleaving with a backup of
// the same database.
func (s *Service) runTransform(ctx context.Context, run func(*replace.Engine, replace.Options) (*replace.Report, error)) (*job.Job, *replace.Report, error) {
	if s.db == nil {
		return nil, nil, errors.NewValidationError("search-and-replace requires a database connection", nil)
	}

	created, err := s.jobs.Create(ctx, job.KindMigrate)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.lockTarget("")
	defer unlock()

	if err := s.jobs.Start(ctx, created.ID); err != nil {
		return created, nil, err
	}

	defaults := replace.Options{
		BatchSize:    s.cfg.Replace.BatchSize,
		PreviewLimit: s.cfg.Replace.PreviewLimit,
	}
	report, err := run(s.replaceEngine(), defaults)
	if err != nil {
		return s.failJob(ctx, created.ID, err), nil, err
	}

	s.progress(ctx, created.ID, 99,
		fmt.Sprintf("%d cells changed across %d tables", report.TotalCells, len(report.Tables)))
	if err := s.jobs.Complete(ctx, created.ID, nil); err != nil {
		return created, report, err
	}
	finished, err := s.jobs.Get(ctx, created.ID)
	return finished, report, err
}
