package storage

import (
	"os"

	"sitevault/internal/errors"
)

// Config holds the configuration for every storage backend
type Config struct {
	// Destinations are the adapter kinds used when a backup does not name
	// its own destination set
	Destinations []string    `mapstructure:"destinations" yaml:"destinations"`
	Local        LocalConfig `mapstructure:"local" yaml:"local"`
	S3           S3Config    `mapstructure:"s3" yaml:"s3"`
	Azure        AzureConfig `mapstructure:"azure" yaml:"azure"`
	GCS          GCSConfig   `mapstructure:"gcs" yaml:"gcs"`
}

// LocalConfig configures the local file system adapter
type LocalConfig struct {
	BasePath    string      `mapstructure:"base_path" yaml:"base_path"`
	Permissions os.FileMode `mapstructure:"permissions" yaml:"permissions"`
}

// S3Config configures the S3 adapter
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// AzureConfig configures the Azure blob storage adapter
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// GCSConfig configures the Google Cloud Storage adapter
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

// SetDefaults sets default values for the storage configuration
func (c *Config) SetDefaults() {
	if len(c.Destinations) == 0 {
		c.Destinations = []string{string(KindLocal)}
	}
	if c.Local.Permissions == 0 {
		c.Local.Permissions = 0700
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Validate checks the storage configuration
func (c *Config) Validate() error {
	var verrs errors.ValidationErrors

	for _, dest := range c.Destinations {
		if _, err := ParseKind(dest); err != nil {
			verrs.Add("destinations", "unknown storage kind: "+dest)
		}
	}

	if err := c.S3.Validate(); err != nil {
		verrs.Add("s3", err.Error())
	}
	if err := c.Azure.Validate(); err != nil {
		verrs.Add("azure", err.Error())
	}
	if err := c.GCS.Validate(); err != nil {
		verrs.Add("gcs", err.Error())
	}

	if verrs.HasErrors() {
		return &verrs
	}
	return nil
}

// IsConfigured reports whether the local adapter has a base path
func (c *LocalConfig) IsConfigured() bool {
	return c.BasePath != ""
}

// IsConfigured reports whether the S3 adapter has complete credentials
func (c *S3Config) IsConfigured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Validate checks the S3 configuration for partial credentials
func (c *S3Config) Validate() error {
	if c.Bucket == "" && c.AccessKey == "" && c.SecretKey == "" {
		return nil // unconfigured is fine
	}
	var verrs errors.ValidationErrors
	if c.Bucket == "" {
		verrs.Add("bucket", "bucket is required")
	}
	if c.AccessKey == "" {
		verrs.Add("access_key", "access key is required")
	}
	if c.SecretKey == "" {
		verrs.Add("secret_key", "secret key is required")
	}
	if verrs.HasErrors() {
		return &verrs
	}
	return nil
}

// IsConfigured reports whether the Azure adapter has complete credentials
func (c *AzureConfig) IsConfigured() bool {
	return c.AccountName != "" && c.AccountKey != "" && c.ContainerName != ""
}

// Validate checks the Azure configuration for partial credentials
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" && c.AccountKey == "" && c.ContainerName == "" {
		return nil
	}
	var verrs errors.ValidationErrors
	if c.AccountName == "" {
		verrs.Add("account_name", "account name is required")
	}
	if c.AccountKey == "" {
		verrs.Add("account_key", "account key is required")
	}
	if c.ContainerName == "" {
		verrs.Add("container_name", "container name is required")
	}
	if verrs.HasErrors() {
		return &verrs
	}
	return nil
}

// IsConfigured reports whether the GCS adapter has a bucket and credentials
func (c *GCSConfig) IsConfigured() bool {
	return c.Bucket != "" && c.CredentialsPath != ""
}

// Validate checks the GCS configuration for partial credentials
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" && c.CredentialsPath == "" {
		return nil
	}
	var verrs errors.ValidationErrors
	if c.Bucket == "" {
		verrs.Add("bucket", "bucket is required")
	}
	if c.CredentialsPath == "" {
		verrs.Add("credentials_path", "credentials path is required")
	}
	if verrs.HasErrors() {
		return &verrs
	}
	return nil
}
