package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sitevault/internal/display"
	"sitevault/internal/job"
)

// createJobsCommand creates the jobs command and its subcommands
func createJobsCommand() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect tracked operations",
		Long: `Inspect the tracked operations this installation has run: backups,
restores, and migrations, with their progress and results.`,
	}

	jobsCmd.AddCommand(createJobsListCommand())
	jobsCmd.AddCommand(createJobsStatusCommand())
	return jobsCmd
}

// createJobsListCommand creates the jobs list subcommand
func createJobsListCommand() *cobra.Command {
	var (
		kindName   string
		statusName string
		limit      int
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := job.Filter{Limit: limit}
			if kindName != "" {
				kind, err := job.ParseKind(kindName)
				if err != nil {
					return err
				}
				filter.Kind = kind
			}
			status, err := parseJobStatus(statusName)
			if err != nil {
				return err
			}
			filter.Status = status

			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			jobs, err := env.jobs.List(ctx, filter)
			if err != nil {
				return err
			}

			if env.disp.Structured() {
				return env.disp.Emit(jobs)
			}

			env.disp.Header("Jobs")
			if len(jobs) == 0 {
				env.disp.Info("No jobs recorded")
				return nil
			}

			table := env.disp.NewTable("ID", "KIND", "STATUS", "PROGRESS", "CREATED")
			table.Align(3, display.AlignRight)
			for _, j := range jobs {
				table.Append(j.ID, string(j.Kind), string(j.Status),
					fmt.Sprintf("%d%%", j.Progress),
					j.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			table.RenderTo(env.disp.Writer())
			return nil
		},
	}

	listCmd.Flags().StringVar(&kindName, "kind", "", "filter by kind (full, database, files, restore, migrate)")
	listCmd.Flags().StringVar(&statusName, "status", "", "filter by status (pending, processing, completed, failed)")
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum jobs to show, 0 shows all")
	return listCmd
}

// createJobsStatusCommand creates the jobs status subcommand
func createJobsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			j, err := env.jobs.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if env.disp.Structured() {
				return env.disp.Emit(j)
			}
			reportJobDetail(env.disp, j)
			return nil
		},
	}
}

// reportJobDetail prints one job's full record.
func reportJobDetail(disp *display.Service, j *job.Job) {
	disp.Header(fmt.Sprintf("Job %s", j.ID))
	disp.Printf("%s %s %s, %d%%\n", disp.Icon(statusIcon(j.Status)), j.Kind, j.Status, j.Progress)
	if j.Message != "" {
		disp.Info(j.Message)
	}
	disp.Info(fmt.Sprintf("Created: %s", j.CreatedAt.Format("2006-01-02 15:04:05")))
	if j.StartedAt != nil {
		disp.Info(fmt.Sprintf("Started: %s", j.StartedAt.Format("2006-01-02 15:04:05")))
	}
	if j.CompletedAt != nil {
		disp.Info(fmt.Sprintf("Finished: %s", j.CompletedAt.Format("2006-01-02 15:04:05")))
		if j.StartedAt != nil {
			disp.Info(fmt.Sprintf("Duration: %s", j.CompletedAt.Sub(*j.StartedAt).Round(timeRounding)))
		}
	}
	if j.Error != "" {
		disp.Error(j.Error)
	}
	if result := j.Result; result != nil {
		if result.OutputName != "" {
			disp.Info(fmt.Sprintf("Output: %s (%s)", result.OutputName, display.FormatBytes(result.Size)))
		}
		if result.Checksum != "" {
			disp.Info(fmt.Sprintf("Checksum: %s", result.Checksum))
		}
		for _, dest := range result.Destinations {
			if dest.Error != "" {
				disp.Warning(fmt.Sprintf("Upload to %s failed: %s", dest.Kind, dest.Error))
				continue
			}
			disp.Info(fmt.Sprintf("Uploaded to %s: %s", dest.Kind, dest.RemotePath))
		}
	}
}

// statusIcon maps a job status to its display icon name.
func statusIcon(status job.Status) string {
	switch status {
	case job.StatusPending:
		return "pending"
	case job.StatusProcessing:
		return "running"
	case job.StatusCompleted:
		return "done"
	case job.StatusFailed:
		return "failed"
	}
	return "info"
}

// parseJobStatus validates a --status filter value. Empty means no filter.
func parseJobStatus(s string) (job.Status, error) {
	switch status := job.Status(strings.ToLower(strings.TrimSpace(s))); status {
	case "", job.StatusPending, job.StatusProcessing, job.StatusCompleted, job.StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status: %q", s)
	}
}
