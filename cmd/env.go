package cmd

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitevault/internal/config"
	"sitevault/internal/database"
	"sitevault/internal/display"
	"sitevault/internal/engine"
	"sitevault/internal/job"
	"sitevault/internal/logging"
	"sitevault/internal/storage"
)

// timeRounding trims sub-millisecond noise from durations shown to users.
const timeRounding = time.Millisecond

// appEnv carries the wired dependencies for one command invocation.
type appEnv struct {
	cfg      *config.Config
	logger   *logging.Logger
	disp     *display.Service
	db       *sql.DB
	dbSvc    *database.Service
	jobs     *job.Service
	registry *storage.Registry
	engine   *engine.Service
}

// newAppEnv loads the configuration and wires the services a command run
// needs. needDB opens the database connection up front; file-only commands
// skip it and pass a nil handle to the engine.
func newAppEnv(needDB bool) (*appEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	disp, err := newDisplay()
	if err != nil {
		return nil, err
	}

	if askPass {
		password, err := promptDBPassword()
		if err != nil {
			return nil, err
		}
		cfg.Database.Password = password
	}

	dbSvc := database.NewServiceWithLogger(logger)
	var db *sql.DB
	if needDB {
		db, err = dbSvc.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
	}

	registry, err := storage.NewRegistry(cfg.Storage, settingsCipher(), logger)
	if err != nil {
		dbSvc.Close(db)
		return nil, err
	}

	repo, err := job.NewFileRepository(cfg.Schedule.JobsFile)
	if err != nil {
		dbSvc.Close(db)
		return nil, err
	}
	jobs := job.NewService(repo, logger)

	return &appEnv{
		cfg:      cfg,
		logger:   logger,
		disp:     disp,
		db:       db,
		dbSvc:    dbSvc,
		jobs:     jobs,
		registry: registry,
		engine:   engine.NewService(cfg, db, jobs, registry, version, logger),
	}, nil
}

// Close releases the database connection if one was opened.
func (e *appEnv) Close() {
	e.dbSvc.Close(e.db)
}

// scheduleStore opens the schedule store backing the schedule and agent
// commands.
func (e *appEnv) scheduleStore() (*job.ScheduleStore, error) {
	return job.NewScheduleStore(e.cfg.Schedule.StoreFile)
}

// attachProgressBar drives a terminal progress bar from engine progress
// updates. The caller finishes the bar once the operation returns.
func (e *appEnv) attachProgressBar(label string) *display.ProgressBar {
	bar := e.disp.StartProgress(100, label)
	e.engine.SetProgressObserver(func(pct int, message string) {
		if message != "" {
			bar.SetLabel(message)
		}
		bar.Set(int64(pct))
	})
	return bar
}

// signalContext returns a context canceled on SIGINT or SIGTERM so
// long-running operations unwind cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
