package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitevault/internal/confirmation"
	"sitevault/internal/display"
	"sitevault/internal/dump"
	"sitevault/internal/restore"
)

// createRestoreCommand creates the restore command
func createRestoreCommand() *cobra.Command {
	var (
		restoreDatabase bool
		restoreFiles    bool
		configFiles     bool
		targetRoot      string
		policyName      string
		force           bool
	)

	restoreCmd := &cobra.Command{
		Use:   "restore <container>",
		Short: "Restore a backup container over the live site",
		Long: `Restore a backup container: replay its database dump into the connected
database and extract its file payload over the site root.

Every entry is checksum-verified against the container manifest before it
is applied. Without --database or --files the whole container is
restored. Captured config files are staged as -staged siblings
(wp-config-staged.php) instead of overwriting their live counterparts, so
credentials for the current environment survive the restore.

A split backup restores directly from its part index: pass the
.parts.json file and the parts are joined and verified first.

Examples:
  # Full restore with confirmation
  sitevault restore backups/site-20260301-020000-full-1a2b3c4d.zip

  # Database only, abort on the first failed statement
  sitevault restore backup.zip --database --policy strict

  # Files only, into a staging directory
  sitevault restore backup.zip --files --target /var/www/staging --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := dump.ParseReplayPolicy(policyName)
			if err != nil {
				return err
			}

			// Neither flag means the whole container
			if !restoreDatabase && !restoreFiles {
				restoreDatabase = true
				restoreFiles = true
			}

			env, err := newAppEnv(restoreDatabase)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			target := targetRoot
			if target == "" {
				target = env.cfg.Site.RootDir
			}
			stageConfig := env.cfg.Restore.StageConfigFiles
			if cmd.Flags().Changed("config-files") {
				stageConfig = configFiles
			}
			if policyName == "" {
				policy, _ = dump.ParseReplayPolicy(env.cfg.Restore.ReplayPolicy)
			}

			details := []string{fmt.Sprintf("Container: %s", args[0])}
			warnings := []string{}
			if restoreDatabase {
				details = append(details, fmt.Sprintf("Database: %s on %s", env.cfg.Database.Database, env.cfg.Database.Host))
				warnings = append(warnings, "Existing tables in the dump are dropped and recreated")
			}
			if restoreFiles {
				details = append(details, fmt.Sprintf("Site root: %s", target))
				warnings = append(warnings, "Site files are overwritten in place")
			}
			approved, err := confirmation.New(env.disp, force).Confirm(confirmation.Request{
				Action:   "Restore backup",
				Target:   env.cfg.Site.Name,
				Details:  details,
				Warnings: warnings,
			})
			if err != nil {
				return err
			}
			if !approved {
				return nil
			}

			env.disp.Header("Restore")
			bar := env.attachProgressBar("verifying container")
			finished, summary, err := env.engine.Restore(ctx, restore.Options{
				ContainerPath: args[0],
				Database:      restoreDatabase,
				Files:         restoreFiles,
				ConfigFiles:   stageConfig,
				TargetRoot:    target,
				Policy:        policy,
			})
			if err != nil {
				bar.Finish("restore failed")
				return err
			}
			bar.Finish("restore complete")

			if env.disp.Structured() {
				return env.disp.Emit(map[string]interface{}{"job": finished, "summary": summary})
			}
			reportRestoreSummary(env.disp, summary)
			return nil
		},
	}

	restoreCmd.Flags().BoolVar(&restoreDatabase, "database", false, "restore the database payload")
	restoreCmd.Flags().BoolVar(&restoreFiles, "files", false, "restore the file payload")
	restoreCmd.Flags().BoolVar(&configFiles, "config-files", false, "stage captured config files next to their live counterparts")
	restoreCmd.Flags().StringVar(&targetRoot, "target", "", "directory to extract files into (defaults to site.root_dir)")
	restoreCmd.Flags().StringVar(&policyName, "policy", "", "replay policy (lenient, strict); defaults to restore.replay_policy")
	restoreCmd.Flags().BoolVar(&force, "force", false, "restore without confirmation")
	return restoreCmd
}

// reportRestoreSummary prints the human-readable outcome of a restore.
func reportRestoreSummary(disp *display.Service, summary *restore.Summary) {
	if m := summary.Manifest; m != nil {
		disp.Info(fmt.Sprintf("Container created %s by %s %s", m.CreatedAt.Format("2006-01-02 15:04:05"), m.Generator, m.GeneratorVersion))
		if m.SiteURL != "" {
			disp.Info(fmt.Sprintf("Backed-up site URL: %s", m.SiteURL))
		}
	}
	if summary.DatabaseRestored {
		disp.Success("Database restored")
		if r := summary.Replay; r != nil {
			disp.Info(fmt.Sprintf("Replayed %d statements in %s (%d skipped, %d failed)",
				r.Executed, r.Duration.Round(timeRounding), r.Skipped, r.Failed))
		}
	}
	if summary.FilesRestored > 0 {
		disp.Success(fmt.Sprintf("Restored %d files", summary.FilesRestored))
	}
	for _, staged := range summary.ConfigStaged {
		disp.Info(fmt.Sprintf("Config staged: %s", staged))
	}
	for _, warning := range summary.Warnings {
		disp.Warning(warning)
	}
}
