package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitevault/internal/confirmation"
	"sitevault/internal/display"
	"sitevault/internal/engine"
	"sitevault/internal/job"
)

// createBackupCommand creates the backup command and its subcommands
func createBackupCommand() *cobra.Command {
	var (
		backupKind  string
		dests       []string
		compression string
	)

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup container",
		Long: `Create a backup container holding the site's database dump, its file
tree, or both, then upload it to the configured storage destinations.

The container is a zip archive with a manifest listing every payload
entry and its checksum. Containers larger than the configured split
threshold are written as numbered parts next to a .parts.json index.

Examples:
  # Full backup to the configured destinations
  sitevault backup

  # Database only, compressed with zstd, uploaded to S3
  sitevault backup --kind database --compression zstd --dest s3

  # Files only, kept locally
  sitevault backup --kind files --dest local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Files-only backups never touch the database
			needDB := backupKind != string(job.KindFiles)
			env, err := newAppEnv(needDB)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			env.disp.Header("Backup")
			bar := env.attachProgressBar("preparing backup")
			finished, err := env.engine.CreateBackup(ctx, engine.BackupOptions{
				Kind:         job.Kind(backupKind),
				Destinations: dests,
				Compression:  compression,
			})
			if err != nil {
				bar.Finish("backup failed")
				return err
			}
			bar.Finish("backup complete")

			if env.disp.Structured() {
				return env.disp.Emit(finished)
			}
			reportBackupResult(env.disp, finished)
			return nil
		},
	}

	backupCmd.Flags().StringVar(&backupKind, "kind", "full", "what to capture (full, database, files)")
	backupCmd.Flags().StringSliceVar(&dests, "dest", nil, "destination storage kinds (local, s3, azure, gcs); defaults to storage.destinations")
	backupCmd.Flags().StringVar(&compression, "compression", "", "dump compression (none, gzip, lz4, zstd); defaults to backup.compression")

	backupCmd.AddCommand(createBackupListCommand())
	backupCmd.AddCommand(createBackupDeleteCommand())
	backupCmd.AddCommand(createBackupPruneCommand())
	return backupCmd
}

// reportBackupResult prints the human-readable outcome of a backup job.
func reportBackupResult(disp *display.Service, finished *job.Job) {
	result := finished.Result
	if result == nil {
		disp.Warning(fmt.Sprintf("Job %s finished without a result payload", finished.ID))
		return
	}

	disp.Success(fmt.Sprintf("Backup complete: %s (%s)", result.OutputName, display.FormatBytes(result.Size)))
	disp.Info(fmt.Sprintf("Local path: %s", result.OutputPath))
	disp.Info(fmt.Sprintf("Checksum: %s", result.Checksum))
	for _, dest := range result.Destinations {
		if dest.Error != "" {
			disp.Warning(fmt.Sprintf("Upload to %s failed: %s", dest.Kind, dest.Error))
			continue
		}
		disp.Success(fmt.Sprintf("Uploaded to %s: %s", dest.Kind, dest.RemotePath))
	}
	disp.Verbose(fmt.Sprintf("Job ID: %s", finished.ID))
}

// createBackupListCommand creates the backup list subcommand
func createBackupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local backup containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			backups, err := env.engine.ListBackups(ctx)
			if err != nil {
				return err
			}

			if env.disp.Structured() {
				return env.disp.Emit(backups)
			}

			env.disp.Header("Backups")
			if len(backups) == 0 {
				env.disp.Info("No backups found")
				return nil
			}

			table := env.disp.NewTable("NAME", "SIZE", "CREATED")
			table.Align(1, display.AlignRight)
			for _, b := range backups {
				table.Append(b.Name, display.FormatBytes(b.Size), b.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			table.RenderTo(env.disp.Writer())
			return nil
		},
	}
}

// createBackupDeleteCommand creates the backup delete subcommand
func createBackupDeleteCommand() *cobra.Command {
	var force bool

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a backup container locally and from every destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			name := args[0]
			approved, err := confirmation.New(env.disp, force).Confirm(confirmation.Request{
				Action: "Delete backup",
				Target: name,
				Warnings: []string{
					"The container is removed locally and from every configured destination",
					"Deleted backups cannot be recovered",
				},
			})
			if err != nil {
				return err
			}
			if !approved {
				return nil
			}

			if err := env.engine.DeleteBackup(ctx, name); err != nil {
				return err
			}
			env.disp.Success(fmt.Sprintf("Deleted %s", name))
			return nil
		},
	}

	deleteCmd.Flags().BoolVar(&force, "force", false, "delete without confirmation")
	return deleteCmd
}

// createBackupPruneCommand creates the backup prune subcommand
func createBackupPruneCommand() *cobra.Command {
	var (
		keep   int
		prefix string
		force  bool
	)

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest backups sharing a name prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}

			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			scope := prefix
			if scope == "" {
				scope = env.cfg.Backup.NamePrefix
			}

			approved, err := confirmation.New(env.disp, force).Confirm(confirmation.Request{
				Action: "Prune old backups",
				Target: scope,
				Details: []string{
					fmt.Sprintf("Keep the %d newest containers", keep),
				},
				Warnings: []string{
					"Pruned backups are removed locally and from every configured destination",
				},
			})
			if err != nil {
				return err
			}
			if !approved {
				return nil
			}

			deleted, err := env.engine.ApplyRetention(ctx, scope, keep)
			if err != nil {
				return err
			}

			if env.disp.Structured() {
				return env.disp.Emit(map[string]interface{}{"deleted": deleted})
			}
			if len(deleted) == 0 {
				env.disp.Info("Nothing to prune")
				return nil
			}
			for _, name := range deleted {
				env.disp.Success(fmt.Sprintf("Deleted %s", name))
			}
			return nil
		},
	}

	pruneCmd.Flags().IntVar(&keep, "keep", 0, "number of newest backups to keep (required)")
	pruneCmd.Flags().StringVar(&prefix, "prefix", "", "container name prefix to prune (defaults to backup.name_prefix)")
	pruneCmd.Flags().BoolVar(&force, "force", false, "prune without confirmation")
	pruneCmd.MarkFlagRequired("keep")
	return pruneCmd
}
