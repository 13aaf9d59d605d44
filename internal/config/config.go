package config

import (
	"path/filepath"
	"time"

	"sitevault/internal/database"
	"sitevault/internal/errors"
	"sitevault/internal/storage"
)

// Config represents the complete engine configuration
type Config struct {
	Site     SiteConfig      `mapstructure:"site" yaml:"site"`
	Database database.Config `mapstructure:"database" yaml:"database"`
	Backup   BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Storage  storage.Config  `mapstructure:"storage" yaml:"storage"`
	Restore  RestoreConfig   `mapstructure:"restore" yaml:"restore"`
	Replace  ReplaceConfig   `mapstructure:"replace" yaml:"replace"`
	Schedule ScheduleConfig  `mapstructure:"schedule" yaml:"schedule"`
	Logging  LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// SiteConfig identifies the site being backed up
type SiteConfig struct {
	// RootDir is the site installation root (the directory holding wp-config.php)
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`
	// URL is the canonical site URL; autodetected from the options table when empty
	URL  string `mapstructure:"url" yaml:"url"`
	Name string `mapstructure:"name" yaml:"name"`
}

// BackupConfig controls dump and archive behavior
type BackupConfig struct {
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	NamePrefix  string `mapstructure:"name_prefix" yaml:"name_prefix"`
	Compression string `mapstructure:"compression" yaml:"compression"` // none, gzip, lz4, zstd

	// Dump batching
	BatchSize     int      `mapstructure:"batch_size" yaml:"batch_size"`
	ExcludeTables []string `mapstructure:"exclude_tables" yaml:"exclude_tables"`

	// File archiving
	FileRoots          []string `mapstructure:"file_roots" yaml:"file_roots"`
	ExcludePatterns    []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	MaxFileSize        int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	IncludeCore        bool     `mapstructure:"include_core" yaml:"include_core"`
	ArchiveReopenEvery int      `mapstructure:"archive_reopen_every" yaml:"archive_reopen_every"`
	FilesPerChunk      int      `mapstructure:"files_per_chunk" yaml:"files_per_chunk"`

	// Container limits
	MaxArchiveSize int64 `mapstructure:"max_archive_size" yaml:"max_archive_size"`
	SplitSize      int64 `mapstructure:"split_size" yaml:"split_size"`

	// Upload strategy
	UploadChunkSize int64 `mapstructure:"upload_chunk_size" yaml:"upload_chunk_size"`
	UploadThreshold int64 `mapstructure:"upload_threshold" yaml:"upload_threshold"`
}

// RestoreConfig controls restore replay behavior
type RestoreConfig struct {
	// ReplayPolicy is "lenient" (log failed statements and continue) or
	// "strict" (abort on the first failed statement)
	ReplayPolicy     string `mapstructure:"replay_policy" yaml:"replay_policy"`
	StageConfigFiles bool   `mapstructure:"stage_config_files" yaml:"stage_config_files"`
}

// ReplaceConfig controls the search-and-replace engine
type ReplaceConfig struct {
	BatchSize    int `mapstructure:"batch_size" yaml:"batch_size"`
	PreviewLimit int `mapstructure:"preview_limit" yaml:"preview_limit"`
}

// ScheduleConfig controls the scheduler agent
type ScheduleConfig struct {
	StoreFile     string        `mapstructure:"store_file" yaml:"store_file"`
	JobsFile      string        `mapstructure:"jobs_file" yaml:"jobs_file"`
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// DefaultExcludePatterns are the file patterns skipped by every backup
// unless overridden: version control metadata, caches, logs and previous
// backup output.
var DefaultExcludePatterns = []string{
	".git",
	".svn",
	".DS_Store",
	"node_modules",
	"*.log",
	"wp-content/cache",
	"wp-content/upgrade",
	"wp-content/updraft",
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Site.RootDir == "" {
		c.Site.RootDir = "."
	}
	if c.Site.Name == "" {
		c.Site.Name = "site"
	}

	c.Database.SetDefaults()

	if c.Backup.OutputDir == "" {
		c.Backup.OutputDir = filepath.Join(c.Site.RootDir, "wp-content", "sitevault-backups")
	}
	if c.Backup.NamePrefix == "" {
		c.Backup.NamePrefix = "sitevault"
	}
	if c.Backup.Compression == "" {
		c.Backup.Compression = "none"
	}
	if c.Backup.BatchSize <= 0 {
		c.Backup.BatchSize = 1000
	}
	if len(c.Backup.FileRoots) == 0 {
		c.Backup.FileRoots = []string{"."}
	}
	if len(c.Backup.ExcludePatterns) == 0 {
		c.Backup.ExcludePatterns = append([]string(nil), DefaultExcludePatterns...)
	}
	if c.Backup.ArchiveReopenEvery <= 0 {
		c.Backup.ArchiveReopenEvery = 500
	}
	if c.Backup.FilesPerChunk < 0 {
		c.Backup.FilesPerChunk = 0
	}
	if c.Backup.UploadChunkSize <= 0 {
		c.Backup.UploadChunkSize = 10 * 1024 * 1024
	}
	if c.Backup.UploadThreshold <= 0 {
		c.Backup.UploadThreshold = c.Backup.UploadChunkSize
	}

	c.Storage.SetDefaults()
	if c.Storage.Local.BasePath == "" {
		c.Storage.Local.BasePath = c.Backup.OutputDir
	}

	if c.Restore.ReplayPolicy == "" {
		c.Restore.ReplayPolicy = "lenient"
	}

	if c.Replace.BatchSize <= 0 {
		c.Replace.BatchSize = 1000
	}
	if c.Replace.PreviewLimit <= 0 {
		c.Replace.PreviewLimit = 50
	}

	if c.Schedule.StoreFile == "" {
		c.Schedule.StoreFile = filepath.Join(c.Backup.OutputDir, "schedules.yaml")
	}
	if c.Schedule.JobsFile == "" {
		c.Schedule.JobsFile = filepath.Join(c.Backup.OutputDir, "jobs.json")
	}
	if c.Schedule.CheckInterval <= 0 {
		c.Schedule.CheckInterval = time.Minute
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "normal"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	var verrs errors.ValidationErrors

	if c.Site.RootDir == "" {
		verrs.Add("site.root_dir", "site root directory is required")
	}

	if err := c.Database.Validate(); err != nil {
		verrs.Add("database", err.Error())
	}

	if c.Backup.OutputDir == "" {
		verrs.Add("backup.output_dir", "backup output directory is required")
	}

	switch c.Backup.Compression {
	case "", "none", "gzip", "lz4", "zstd":
	default:
		verrs.Add("backup.compression", "must be one of none, gzip, lz4, zstd")
	}

	if c.Backup.BatchSize < 0 {
		verrs.Add("backup.batch_size", "batch size cannot be negative")
	}
	if c.Backup.MaxFileSize < 0 {
		verrs.Add("backup.max_file_size", "max file size cannot be negative")
	}
	if c.Backup.MaxArchiveSize < 0 {
		verrs.Add("backup.max_archive_size", "max archive size cannot be negative")
	}
	if c.Backup.SplitSize < 0 {
		verrs.Add("backup.split_size", "split size cannot be negative")
	}
	if c.Backup.UploadChunkSize < 0 {
		verrs.Add("backup.upload_chunk_size", "upload chunk size cannot be negative")
	}

	switch c.Restore.ReplayPolicy {
	case "", "lenient", "strict":
	default:
		verrs.Add("restore.replay_policy", "must be lenient or strict")
	}

	if err := c.Storage.Validate(); err != nil {
		verrs.Add("storage", err.Error())
	}

	if verrs.HasErrors() {
		return &verrs
	}

	return nil
}
