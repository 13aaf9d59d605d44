package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"sitevault/internal/config"
	"sitevault/internal/crypt"
	"sitevault/internal/display"
	"sitevault/internal/logging"
	"sitevault/internal/storage"
)

var cfgFile string

// Global flag variables
var (
	verbose      bool
	quiet        bool
	debugMode    bool
	noColor      bool
	themeName    string
	outputFormat string
	askPass      bool

	// Config overrides
	siteRoot  string
	outputDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitevault",
	Short: "Backup, restore, and migrate WordPress-style sites",
	Long: `SiteVault captures a site's database and file tree into a single
verifiable backup container, restores containers over a live site, and
rewrites URLs and other serialized values during migrations.

Backups are chunked zip containers carrying a manifest with per-entry
checksums, so every restore verifies what it extracts. Containers can be
fanned out to local disk, S3, Azure Blob Storage, or Google Cloud Storage.

Examples:
  # Full backup (database + files) to the configured destinations
  sitevault backup

  # Database-only backup straight to S3, compressed with zstd
  sitevault backup --kind database --dest s3 --compression zstd

  # Restore an entire container over the configured site root
  sitevault restore backups/site-20260301-020000-full-1a2b3c4d.zip

  # Preview a serialization-aware search-and-replace
  sitevault search-replace 'http://old.example' 'https://new.example' --dry-run

  # Move the site to a new URL
  sitevault migrate-url http://old.example https://new.example

  # Run the schedule agent in the foreground
  sitevault agent`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateGlobalFlags()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sitevault.yaml or $HOME/sitevault.yaml)")

	// Output flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&themeName, "theme", "dark", "color theme (dark, light, high-contrast, plain)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "output format (text, json, yaml)")

	// Connection flags
	rootCmd.PersistentFlags().BoolVar(&askPass, "ask-pass", false, "prompt for the database password instead of reading it from config")

	// Config overrides
	rootCmd.PersistentFlags().StringVar(&siteRoot, "site-root", "", "site installation root (overrides site.root_dir)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "local backup output directory (overrides backup.output_dir)")

	// Bind override flags to viper so they land in the unmarshaled config
	viper.BindPFlag("site.root_dir", rootCmd.PersistentFlags().Lookup("site-root"))
	viper.BindPFlag("backup.output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
}

// validateGlobalFlags rejects flag combinations that contradict each other.
func validateGlobalFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}
	if _, err := display.ParseFormat(outputFormat); err != nil {
		return err
	}
	return nil
}

// initConfig reads in the config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName("sitevault")
	}

	// SITEVAULT_DATABASE_PASSWORD etc. override file values
	viper.SetEnvPrefix("SITEVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig unmarshals the merged configuration and validates it.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logLevel resolves the effective log level from flags and config.
// Flags win over the config file; --debug wins over everything.
func logLevel(cfg *config.Config) logging.LogLevel {
	switch {
	case debugMode:
		return logging.LogLevelDebug
	case verbose:
		return logging.LogLevelVerbose
	case quiet:
		return logging.LogLevelQuiet
	}
	if cfg.Logging.Level != "" {
		return logging.LogLevel(cfg.Logging.Level)
	}
	return logging.LogLevelNormal
}

// newLogger builds the logger the command run will use. Logs go to stderr
// (or the configured file) so structured output on stdout stays parseable.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:      logLevel(cfg),
		Format:     cfg.Logging.Format,
		ShowCaller: debugMode,
		LogFile:    cfg.Logging.File,
	})
}

// newDisplay builds the display service from the global output flags.
func newDisplay() (*display.Service, error) {
	format, err := display.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return display.NewService(display.Options{
		Format:  format,
		Theme:   themeName,
		Quiet:   quiet,
		Verbose: verbose || debugMode,
		NoColor: noColor,
	}), nil
}

// settingsCipher builds the cipher protecting storage credentials at rest.
// Returns nil (plaintext pass-through) when no passphrase is configured.
func settingsCipher() storage.SettingsCipher {
	passphrase := os.Getenv("SITEVAULT_SETTINGS_PASSPHRASE")
	if passphrase == "" {
		return nil
	}
	cipher, err := crypt.New(passphrase)
	if err != nil {
		return nil
	}
	return cipher
}

// promptDBPassword reads the database password from the terminal without
// echoing it. Used when --ask-pass is set.
func promptDBPassword() (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("--ask-pass requires an interactive terminal; set database.password or SITEVAULT_DATABASE_PASSWORD instead")
	}
	fmt.Fprint(os.Stderr, "Database password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sitevault version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

func init() {
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createBackupCommand())
	rootCmd.AddCommand(createRestoreCommand())
	rootCmd.AddCommand(createSearchReplaceCommand())
	rootCmd.AddCommand(createMigrateURLCommand())
	rootCmd.AddCommand(createScheduleCommand())
	rootCmd.AddCommand(createAgentCommand())
	rootCmd.AddCommand(createJobsCommand())
	rootCmd.AddCommand(createStorageCommand())
	rootCmd.AddCommand(createConfigCommand())
}
