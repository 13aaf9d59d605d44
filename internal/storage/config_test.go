package storage

import (
	"testing"
)

func TestConfigSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	if len(cfg.Destinations) != 1 || cfg.Destinations[0] != "local" {
		t.Errorf("default destinations = %v, want [local]", cfg.Destinations)
	}
	if cfg.Local.Permissions != 0700 {
		t.Errorf("default permissions = %o, want 0700", cfg.Local.Permissions)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("default region = %s, want us-east-1", cfg.S3.Region)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "local only",
			cfg: Config{
				Destinations: []string{"local"},
				Local:        LocalConfig{BasePath: "/tmp/backups"},
			},
			wantErr: false,
		},
		{
			name: "unknown destination",
			cfg: Config{
				Destinations: []string{"dropbox"},
			},
			wantErr: true,
		},
		{
			name: "s3 missing secret key",
			cfg: Config{
				Destinations: []string{"local"},
				S3: S3Config{
					Bucket:    "backups",
					AccessKey: "AKIA...",
				},
			},
			wantErr: true,
		},
		{
			name: "azure missing account key",
			cfg: Config{
				Destinations: []string{"local"},
				Azure: AzureConfig{
					AccountName:   "account",
					ContainerName: "backups",
				},
			},
			wantErr: true,
		},
		{
			name: "complete s3",
			cfg: Config{
				Destinations: []string{"s3"},
				S3: S3Config{
					Bucket:    "backups",
					Region:    "eu-west-1",
					AccessKey: "key",
					SecretKey: "secret",
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackendIsConfigured(t *testing.T) {
	if (S3Config{}).IsConfigured() {
		t.Error("empty S3 config reports configured")
	}
	if !(S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}).IsConfigured() {
		t.Error("complete S3 config reports unconfigured")
	}

	if (AzureConfig{}).IsConfigured() {
		t.Error("empty Azure config reports configured")
	}
	if !(AzureConfig{AccountName: "a", AccountKey: "k", ContainerName: "c"}).IsConfigured() {
		t.Error("complete Azure config reports unconfigured")
	}

	if (GCSConfig{}).IsConfigured() {
		t.Error("empty GCS config reports configured")
	}
	if !(GCSConfig{Bucket: "b"}).IsConfigured() {
		t.Error("GCS config with bucket reports unconfigured")
	}

	if (LocalConfig{}).IsConfigured() {
		t.Error("empty local config reports configured")
	}
	if !(LocalConfig{BasePath: "/tmp"}).IsConfigured() {
		t.Error("local config with base path reports unconfigured")
	}
}
