package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sitevault/internal/job"
)

// createScheduleCommand creates the schedule command and its subcommands
func createScheduleCommand() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring backup schedules",
		Long: `Manage the recurring backup schedules the agent executes.

Schedules live in a YAML store next to the backup output. Each names a
backup kind, a cadence, destinations, and how many completed backups to
keep. Run 'sitevault agent' to execute them.`,
	}

	scheduleCmd.AddCommand(createScheduleListCommand())
	scheduleCmd.AddCommand(createScheduleAddCommand())
	scheduleCmd.AddCommand(createScheduleRemoveCommand())
	scheduleCmd.AddCommand(createScheduleRunCommand())
	return scheduleCmd
}

// createScheduleListCommand creates the schedule list subcommand
func createScheduleListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			store, err := env.scheduleStore()
			if err != nil {
				return err
			}
			schedules, err := store.List()
			if err != nil {
				return err
			}

			if env.disp.Structured() {
				return env.disp.Emit(schedules)
			}

			env.disp.Header("Schedules")
			if len(schedules) == 0 {
				env.disp.Info("No schedules defined; add one with 'sitevault schedule add'")
				return nil
			}

			table := env.disp.NewTable("ID", "NAME", "KIND", "FREQUENCY", "NEXT RUN", "KEEP", "ACTIVE")
			for _, sched := range schedules {
				next := "on next tick"
				if sched.NextRun != nil {
					next = sched.NextRun.Format("2006-01-02 15:04")
				}
				keep := "all"
				if sched.Retention > 0 {
					keep = fmt.Sprintf("%d", sched.Retention)
				}
				active := "yes"
				if !sched.Active {
					active = "no"
				}
				table.Append(sched.ID, sched.Name, string(sched.Kind), string(sched.Frequency), next, keep, active)
			}
			table.RenderTo(env.disp.Writer())
			return nil
		},
	}
}

// createScheduleAddCommand creates the schedule add subcommand
func createScheduleAddCommand() *cobra.Command {
	var (
		name       string
		kind       string
		frequency  string
		hour       int
		weekday    int
		dayOfMonth int
		dests      []string
		retention  int
	)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a backup schedule",
		Long: `Add a recurring backup schedule.

A new schedule has no next-run time yet, so the agent fires it on its
next tick and the cadence settles from there.

Examples:
  # Nightly full backup at 02:00, keep the last 14
  sitevault schedule add --name nightly --frequency daily --hour 2 --retention 14

  # Weekly database backup to S3, Sundays at 04:00
  sitevault schedule add --name weekly-db --kind database --frequency weekly \
      --weekday 0 --hour 4 --dest s3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			parsedFreq, err := job.ParseFrequency(frequency)
			if err != nil {
				return err
			}

			sched := &job.Schedule{
				ID:           job.GenerateScheduleID(),
				Name:         name,
				Kind:         job.Kind(kind),
				Frequency:    parsedFreq,
				Hour:         hour,
				Weekday:      weekday,
				DayOfMonth:   dayOfMonth,
				Destinations: dests,
				Retention:    retention,
				Active:       true,
			}
			if err := sched.Validate(); err != nil {
				return err
			}

			store, err := env.scheduleStore()
			if err != nil {
				return err
			}
			if err := store.Save(sched); err != nil {
				return err
			}

			if env.disp.Structured() {
				return env.disp.Emit(sched)
			}
			env.disp.Success(fmt.Sprintf("Schedule %s created (%s)", sched.Name, sched.ID))
			env.disp.Info(fmt.Sprintf("First run: on the next agent tick, then %s", describeCadence(sched)))
			return nil
		},
	}

	addCmd.Flags().StringVar(&name, "name", "", "schedule name, also the container name prefix (required)")
	addCmd.Flags().StringVar(&kind, "kind", "full", "what to capture (full, database, files)")
	addCmd.Flags().StringVar(&frequency, "frequency", "daily", "cadence (hourly, twice-daily, daily, weekly, monthly)")
	addCmd.Flags().IntVar(&hour, "hour", 2, "hour of day to fire, 0-23 (daily, weekly, monthly)")
	addCmd.Flags().IntVar(&weekday, "weekday", 0, "weekday to fire, 0=Sunday (weekly)")
	addCmd.Flags().IntVar(&dayOfMonth, "day-of-month", 1, "day of month to fire, clamped to month length (monthly)")
	addCmd.Flags().StringSliceVar(&dests, "dest", nil, "destination storage kinds; defaults to storage.destinations")
	addCmd.Flags().IntVar(&retention, "retention", 0, "completed backups to keep, 0 keeps all")
	addCmd.MarkFlagRequired("name")
	return addCmd
}

// describeCadence renders a schedule's cadence for humans.
func describeCadence(sched *job.Schedule) string {
	switch sched.Frequency {
	case job.FrequencyHourly:
		return "hourly on the hour"
	case job.FrequencyTwiceDaily:
		return "every twelve hours"
	case job.FrequencyDaily:
		return fmt.Sprintf("daily at %02d:00", sched.Hour)
	case job.FrequencyWeekly:
		return fmt.Sprintf("%ss at %02d:00", time.Weekday(sched.Weekday), sched.Hour)
	case job.FrequencyMonthly:
		return fmt.Sprintf("monthly on day %d at %02d:00", sched.DayOfMonth, sched.Hour)
	}
	return string(sched.Frequency)
}

// createScheduleRemoveCommand creates the schedule remove subcommand
func createScheduleRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id-or-name>",
		Short: "Remove a backup schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			store, err := env.scheduleStore()
			if err != nil {
				return err
			}
			sched, err := resolveSchedule(store, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(sched.ID); err != nil {
				return err
			}
			env.disp.Success(fmt.Sprintf("Removed schedule %s (%s)", sched.Name, sched.ID))
			return nil
		},
	}
}

// createScheduleRunCommand creates the schedule run subcommand
func createScheduleRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id-or-name>",
		Short: "Run a schedule immediately",
		Long: `Run a schedule's backup now, regardless of when it is next due.

The run counts as the schedule's latest: its next-run time is recomputed
and its retention policy is applied, exactly as if the agent had fired it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(true)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			store, err := env.scheduleStore()
			if err != nil {
				return err
			}
			sched, err := resolveSchedule(store, args[0])
			if err != nil {
				return err
			}

			env.disp.Header(fmt.Sprintf("Schedule %s", sched.Name))
			bar := env.attachProgressBar("preparing backup")
			finished, runErr := env.engine.RunScheduled(ctx, sched)

			// The schedule moves forward even when the run failed, exactly
			// like an agent-fired run.
			now := time.Now()
			next := sched.NextAfter(now)
			sched.LastRun = &now
			sched.NextRun = &next
			if err := store.Save(sched); err != nil {
				bar.Finish("run failed")
				return err
			}
			if runErr != nil {
				bar.Finish("run failed")
				return runErr
			}
			bar.Finish("run complete")

			if sched.Retention > 0 {
				policy := job.NewRetentionPolicy(env.engine, env.logger)
				if deleted, err := policy.Apply(ctx, sched.Name, sched.Retention); err != nil {
					env.disp.Warning(fmt.Sprintf("Retention pass failed: %v", err))
				} else {
					for _, name := range deleted {
						env.disp.Info(fmt.Sprintf("Retention deleted %s", name))
					}
				}
			}

			if env.disp.Structured() {
				return env.disp.Emit(finished)
			}
			reportBackupResult(env.disp, finished)
			env.disp.Info(fmt.Sprintf("Next run: %s", next.Format("2006-01-02 15:04")))
			return nil
		},
	}
}

// resolveSchedule finds a schedule by ID first, then by name.
func resolveSchedule(store *job.ScheduleStore, key string) (*job.Schedule, error) {
	schedules, err := store.List()
	if err != nil {
		return nil, err
	}
	for _, sched := range schedules {
		if sched.ID == key {
			return sched, nil
		}
	}
	for _, sched := range schedules {
		if sched.Name == key {
			return sched, nil
		}
	}
	return nil, fmt.Errorf("no schedule with id or name %q", key)
}

// createAgentCommand creates the agent command
func createAgentCommand() *cobra.Command {
	var interval time.Duration

	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the schedule agent in the foreground",
		Long: `Run the schedule agent: a foreground loop that fires due schedules,
recomputes their next-run times, and applies their retention policies.

The agent runs until interrupted. Pair it with a process supervisor for
unattended operation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(true)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			store, err := env.scheduleStore()
			if err != nil {
				return err
			}

			tick := interval
			if tick <= 0 {
				tick = env.cfg.Schedule.CheckInterval
			}

			env.disp.Info(fmt.Sprintf("Agent started, checking schedules every %s (Ctrl-C to stop)", tick))
			scheduler := job.NewScheduler(store, env.engine, job.NewRetentionPolicy(env.engine, env.logger), env.logger)
			return scheduler.RunLoop(ctx, tick)
		},
	}

	agentCmd.Flags().DurationVar(&interval, "interval", 0, "schedule check interval; defaults to schedule.check_interval")
	return agentCmd
}
