package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sitevault/internal/config"
	"sitevault/internal/display"
	"sitevault/internal/errors"
)

// createConfigCommand creates the config command and its subcommands
func createConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Work with the configuration file",
	}

	configCmd.AddCommand(createConfigSampleCommand())
	configCmd.AddCommand(createConfigValidateCommand())
	return configCmd
}

// createConfigSampleCommand creates the config sample subcommand
func createConfigSampleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print a commented sample configuration",
		Long: `Print a complete, commented configuration template.

Redirect it to a file and adjust it for your site:
  sitevault config sample > sitevault.yaml`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(config.SampleConfig)
		},
	}
}

// createConfigValidateCommand creates the config validate subcommand
func createConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for problems",
		Long: `Load the configuration the other commands would use and report every
problem found, instead of stopping at the first one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			disp, err := newDisplay()
			if err != nil {
				return err
			}

			cfg := &config.Config{}
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to parse configuration: %w", err)
			}
			cfg.SetDefaults()

			source := viper.ConfigFileUsed()
			if source == "" {
				source = "defaults and environment only (no config file found)"
			}
			disp.Info(fmt.Sprintf("Configuration source: %s", source))

			err = cfg.Validate()
			if err == nil {
				disp.Success("Configuration is valid")
				reportConfigSummary(disp, cfg)
				return nil
			}

			if verrs, ok := err.(*errors.ValidationErrors); ok {
				for _, issue := range verrs.Errors {
					disp.Error(fmt.Sprintf("%s: %s", issue.Field, issue.Message))
				}
				return fmt.Errorf("%d configuration problems found", len(verrs.Errors))
			}
			return err
		},
	}
}

// reportConfigSummary prints the key effective settings after validation.
func reportConfigSummary(disp *display.Service, cfg *config.Config) {
	disp.Info(fmt.Sprintf("Site root: %s", cfg.Site.RootDir))
	disp.Info(fmt.Sprintf("Database: %s@%s:%d/%s", cfg.Database.Username, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	disp.Info(fmt.Sprintf("Backups: %s (compression %s)", cfg.Backup.OutputDir, cfg.Backup.Compression))
	disp.Info(fmt.Sprintf("Destinations: %s", strings.Join(cfg.Storage.Destinations, ", ")))
	if os.Getenv("SITEVAULT_SETTINGS_PASSPHRASE") == "" {
		disp.Verbose("Storage credentials are stored in plaintext; set SITEVAULT_SETTINGS_PASSPHRASE to encrypt them")
	}
}
