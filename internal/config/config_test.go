package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sitevault/internal/errors"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Site.RootDir = "/var/www/site"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 3306
	cfg.Database.Username = "wp"
	cfg.Database.Password = "secret"
	cfg.Database.Database = "wordpress"
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := validConfig()

	if got, want := cfg.Backup.OutputDir, filepath.Join("/var/www/site", "wp-content", "sitevault-backups"); got != want {
		t.Errorf("OutputDir = %q, want %q", got, want)
	}
	if cfg.Backup.NamePrefix != "sitevault" {
		t.Errorf("NamePrefix = %q, want sitevault", cfg.Backup.NamePrefix)
	}
	if cfg.Backup.Compression != "none" {
		t.Errorf("Compression = %q, want none", cfg.Backup.Compression)
	}
	if cfg.Backup.BatchSize != 1000 {
		t.Errorf("BatchSize = %d, want 1000", cfg.Backup.BatchSize)
	}
	if len(cfg.Backup.ExcludePatterns) == 0 {
		t.Error("ExcludePatterns should default to the built-in list")
	}
	if cfg.Backup.UploadThreshold != cfg.Backup.UploadChunkSize {
		t.Errorf("UploadThreshold = %d, want chunk size %d", cfg.Backup.UploadThreshold, cfg.Backup.UploadChunkSize)
	}
	if cfg.Storage.Local.BasePath != cfg.Backup.OutputDir {
		t.Errorf("Local.BasePath = %q, want the output dir", cfg.Storage.Local.BasePath)
	}
	if cfg.Restore.ReplayPolicy != "lenient" {
		t.Errorf("ReplayPolicy = %q, want lenient", cfg.Restore.ReplayPolicy)
	}
	if got, want := cfg.Schedule.StoreFile, filepath.Join(cfg.Backup.OutputDir, "schedules.yaml"); got != want {
		t.Errorf("StoreFile = %q, want %q", got, want)
	}
	if got, want := cfg.Schedule.JobsFile, filepath.Join(cfg.Backup.OutputDir, "jobs.json"); got != want {
		t.Errorf("JobsFile = %q, want %q", got, want)
	}
	if cfg.Schedule.CheckInterval != time.Minute {
		t.Errorf("CheckInterval = %v, want 1m", cfg.Schedule.CheckInterval)
	}
	if cfg.Logging.Level != "normal" {
		t.Errorf("Logging.Level = %q, want normal", cfg.Logging.Level)
	}
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Site.RootDir = "/srv/site"
	cfg.Backup.OutputDir = "/backups"
	cfg.Backup.Compression = "zstd"
	cfg.Backup.ExcludePatterns = []string{"*.tmp"}
	cfg.SetDefaults()

	if cfg.Backup.OutputDir != "/backups" {
		t.Errorf("OutputDir = %q, want /backups", cfg.Backup.OutputDir)
	}
	if cfg.Backup.Compression != "zstd" {
		t.Errorf("Compression = %q, want zstd", cfg.Backup.Compression)
	}
	if len(cfg.Backup.ExcludePatterns) != 1 || cfg.Backup.ExcludePatterns[0] != "*.tmp" {
		t.Errorf("ExcludePatterns = %v, want the explicit list", cfg.Backup.ExcludePatterns)
	}
	if cfg.Storage.Local.BasePath != "/backups" {
		t.Errorf("Local.BasePath = %q, want /backups", cfg.Storage.Local.BasePath)
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Site.RootDir = ""
	cfg.Backup.OutputDir = ""
	cfg.Backup.Compression = "bzip2"
	cfg.Restore.ReplayPolicy = "yolo"
	cfg.Database.Host = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}
	verrs, ok := err.(*errors.ValidationErrors)
	if !ok {
		t.Fatalf("Validate() returned %T, want *errors.ValidationErrors", err)
	}
	if len(verrs.Errors) < 5 {
		t.Errorf("collected %d problems, want at least 5: %v", len(verrs.Errors), err)
	}

	fields := make([]string, 0, len(verrs.Errors))
	for _, issue := range verrs.Errors {
		fields = append(fields, issue.Field)
	}
	joined := strings.Join(fields, ",")
	for _, want := range []string{"site.root_dir", "backup.output_dir", "backup.compression", "restore.replay_policy", "database"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing validation for %s in %v", want, fields)
		}
	}
}

func TestValidateRejectsNegativeSizes(t *testing.T) {
	cfg := validConfig()
	cfg.Backup.BatchSize = -1
	cfg.Backup.SplitSize = -2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}
	if !strings.Contains(err.Error(), "batch size") {
		t.Errorf("error %q should mention batch size", err)
	}
	if !strings.Contains(err.Error(), "split size") {
		t.Errorf("error %q should mention split size", err)
	}
}
