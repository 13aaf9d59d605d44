package database

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Host:     "localhost",
				Port:     3306,
				Username: "wp",
				Password: "secret",
				Database: "wordpress",
				Timeout:  30 * time.Second,
			},
			wantErr: false,
		},
		{
			name: "missing host",
			config: Config{
				Port:     3306,
				Username: "wp",
				Database: "wordpress",
			},
			wantErr: true,
		},
		{
			name: "invalid port",
			config: Config{
				Host:     "localhost",
				Port:     70000,
				Username: "wp",
				Database: "wordpress",
			},
			wantErr: true,
		},
		{
			name: "missing username",
			config: Config{
				Host:     "localhost",
				Port:     3306,
				Database: "wordpress",
			},
			wantErr: true,
		},
		{
			name: "missing database",
			config: Config{
				Host:     "localhost",
				Port:     3306,
				Username: "wp",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateSetsDefaultTimeout(t *testing.T) {
	config := Config{
		Host:     "localhost",
		Port:     3306,
		Username: "wp",
		Database: "wordpress",
	}

	if err := config.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", config.Timeout)
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	config := Config{
		Host:     "localhost",
		Username: "wp",
		Database: "wordpress",
	}

	config.SetDefaults()

	if config.Port != 3306 {
		t.Errorf("Expected default port 3306, got %d", config.Port)
	}
	if config.Charset != "utf8mb4" {
		t.Errorf("Expected default charset utf8mb4, got %s", config.Charset)
	}
	if config.TablePrefix != "wp_" {
		t.Errorf("Expected default table prefix wp_, got %s", config.TablePrefix)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", config.Timeout)
	}
}

func TestConfig_DSN(t *testing.T) {
	config := Config{
		Host:     "db.example.com",
		Port:     3307,
		Username: "wp",
		Password: "secret",
		Database: "wordpress",
		Charset:  "utf8mb4",
		Timeout:  10 * time.Second,
	}

	dsn := config.DSN()

	if !strings.HasPrefix(dsn, "wp:secret@tcp(db.example.com:3307)/wordpress?") {
		t.Errorf("Unexpected DSN prefix: %s", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("Expected parseTime=true in DSN: %s", dsn)
	}
	if !strings.Contains(dsn, "charset=utf8mb4") {
		t.Errorf("Expected charset=utf8mb4 in DSN: %s", dsn)
	}
	if !strings.Contains(dsn, "timeout=10s") {
		t.Errorf("Expected timeout=10s in DSN: %s", dsn)
	}
}
