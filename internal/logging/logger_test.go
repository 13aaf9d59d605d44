package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   LogLevel
	}{
		{
			name: "default config",
			config: Config{
				Level:  LogLevelNormal,
				Format: "text",
			},
			want: LogLevelNormal,
		},
		{
			name: "verbose config",
			config: Config{
				Level:  LogLevelVerbose,
				Format: "json",
			},
			want: LogLevelVerbose,
		},
		{
			name: "quiet config",
			config: Config{
				Level:  LogLevelQuiet,
				Format: "text",
			},
			want: LogLevelQuiet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			logger, err := NewLogger(tt.config)
			if err != nil {
				t.Errorf("NewLogger() error = %v", err)
				return
			}

			if logger.GetLevel() != tt.want {
				t.Errorf("NewLogger() level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger()
	if logger == nil {
		t.Error("NewDefaultLogger() returned nil")
	}

	if logger.GetLevel() != LogLevelNormal {
		t.Errorf("NewDefaultLogger() level = %v, want %v", logger.GetLevel(), LogLevelNormal)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	fields := map[string]interface{}{
		"test_field": "test_value",
		"number":     42,
	}

	logger.WithFields(fields).Info("test message")

	output := buf.String()
	if !strings.Contains(output, "test_field=test_value") {
		t.Errorf("Expected output to contain test_field=test_value, got: %s", output)
	}
	if !strings.Contains(output, "number=42") {
		t.Errorf("Expected output to contain number=42, got: %s", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx := CreateContextWithJobID(context.Background(), "job-20240101-120000-abcd1234")
	logger.WithContext(ctx).Info("test message with context")

	output := buf.String()
	if !strings.Contains(output, "job_id=job-20240101-120000-abcd1234") {
		t.Errorf("Expected output to contain job_id, got: %s", output)
	}
}

func TestLogDatabaseConnection(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	// Test successful connection
	logger.LogDatabaseConnection("localhost", "wordpress", true, 100*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Database connection established") {
		t.Errorf("Expected success message, got: %s", output)
	}
	if !strings.Contains(output, "host=localhost") {
		t.Errorf("Expected host=localhost, got: %s", output)
	}

	// Reset buffer
	buf.Reset()

	// Test failed connection
	testErr := errors.New("connection timeout")
	logger.LogDatabaseConnection("localhost", "wordpress", false, 5*time.Second, testErr)
	output = buf.String()
	if !strings.Contains(output, "Database connection failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "connection timeout") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

func TestLogStatementReplay(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	// Test successful replay
	stmt := "INSERT INTO wp_options VALUES (1, 'siteurl')"
	logger.LogStatementReplay(stmt, 50*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Statement replayed") {
		t.Errorf("Expected success message, got: %s", output)
	}

	// Reset buffer
	buf.Reset()

	// Test failed replay
	testErr := errors.New("syntax error")
	logger.LogStatementReplay(stmt, 10*time.Millisecond, testErr)
	output = buf.String()
	if !strings.Contains(output, "Statement replay failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "syntax error") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

func TestLogStatementReplayTruncation(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	// Create a long statement
	longStmt := "INSERT INTO wp_posts VALUES " + strings.Repeat("(1,'post','content'),", 20)
	logger.LogStatementReplay(longStmt, 50*time.Millisecond, nil)

	output := buf.String()
	if !strings.Contains(output, "...") {
		t.Errorf("Expected truncated statement with '...', got: %s", output)
	}
	if !strings.Contains(output, "statement_length=") {
		t.Errorf("Expected statement_length field, got: %s", output)
	}
}

func TestLogTableDump(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogTableDump("wp_posts", 1500, 200*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Table dumped") {
		t.Errorf("Expected success message, got: %s", output)
	}
	if !strings.Contains(output, "rows=1500") {
		t.Errorf("Expected rows=1500, got: %s", output)
	}

	// Reset buffer
	buf.Reset()

	testErr := errors.New("table is marked as crashed")
	logger.LogTableDump("wp_posts", 0, 10*time.Millisecond, testErr)
	output = buf.String()
	if !strings.Contains(output, "Table dump failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
}

func TestLogUpload(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelNormal,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogUpload("s3", "backups/site-full.zip", 1048576, 500*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Upload completed") {
		t.Errorf("Expected success message, got: %s", output)
	}
	if !strings.Contains(output, "adapter=s3") {
		t.Errorf("Expected adapter=s3, got: %s", output)
	}

	// Reset buffer
	buf.Reset()

	testErr := errors.New("access denied")
	logger.LogUpload("s3", "backups/site-full.zip", 1048576, 100*time.Millisecond, testErr)
	output = buf.String()
	if !strings.Contains(output, "Upload failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "access denied") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

func TestLogArchiveBuild(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelNormal,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogArchiveBuild("site-full.zip", 3, 2048, 500*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Archive build completed") {
		t.Errorf("Expected success message, got: %s", output)
	}
	if !strings.Contains(output, "entries=3") {
		t.Errorf("Expected entries=3, got: %s", output)
	}
}

func TestSetLevel(t *testing.T) {
	logger := NewDefaultLogger()

	logger.SetLevel(LogLevelVerbose)
	if logger.GetLevel() != LogLevelVerbose {
		t.Errorf("SetLevel() failed, got %v, want %v", logger.GetLevel(), LogLevelVerbose)
	}

	logger.SetLevel(LogLevelQuiet)
	if logger.GetLevel() != LogLevelQuiet {
		t.Errorf("SetLevel() failed, got %v, want %v", logger.GetLevel(), LogLevelQuiet)
	}
}

func TestIsLevelEnabled(t *testing.T) {
	tests := []struct {
		name        string
		loggerLevel LogLevel
		testLevel   LogLevel
		want        bool
	}{
		{"quiet logger, error level", LogLevelQuiet, LogLevelQuiet, true},
		{"quiet logger, normal level", LogLevelQuiet, LogLevelNormal, false},
		{"normal logger, normal level", LogLevelNormal, LogLevelNormal, true},
		{"normal logger, verbose level", LogLevelNormal, LogLevelVerbose, false},
		{"verbose logger, verbose level", LogLevelVerbose, LogLevelVerbose, true},
		{"verbose logger, debug level", LogLevelVerbose, LogLevelDebug, false},
		{"debug logger, debug level", LogLevelDebug, LogLevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			config := Config{
				Level:  tt.loggerLevel,
				Output: &buf,
				Format: "text",
			}

			logger, err := NewLogger(config)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if got := logger.IsLevelEnabled(tt.testLevel); got != tt.want {
				t.Errorf("IsLevelEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogOperationStart(t *testing.T) {
	var buf bytes.Buffer
	config := Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	fields := map[string]interface{}{
		"table": "wp_posts",
		"count": 100,
	}

	finishFunc := logger.LogOperationStart("table_dump", fields)

	// Check start message
	output := buf.String()
	if !strings.Contains(output, "Operation started") {
		t.Errorf("Expected start message, got: %s", output)
	}
	if !strings.Contains(output, "table=wp_posts") {
		t.Errorf("Expected table=wp_posts, got: %s", output)
	}

	// Reset buffer
	buf.Reset()

	// Test successful completion
	finishFunc(nil)
	output = buf.String()
	if !strings.Contains(output, "Operation completed") {
		t.Errorf("Expected completion message, got: %s", output)
	}
	if !strings.Contains(output, "success=true") {
		t.Errorf("Expected success=true, got: %s", output)
	}

	// Reset buffer
	buf.Reset()

	// Test failed completion
	finishFunc2 := logger.LogOperationStart("table_dump_2", fields)
	buf.Reset() // Clear start message

	testErr := errors.New("operation failed")
	finishFunc2(testErr)
	output = buf.String()
	if !strings.Contains(output, "Operation failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "success=false") {
		t.Errorf("Expected success=false, got: %s", output)
	}
	if !strings.Contains(output, "operation failed") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

func TestCreateContextWithJobID(t *testing.T) {
	ctx := context.Background()
	jobID := "job-test-123"

	newCtx := CreateContextWithJobID(ctx, jobID)

	retrievedID := GetJobIDFromContext(newCtx)
	if retrievedID != jobID {
		t.Errorf("GetJobIDFromContext() = %v, want %v", retrievedID, jobID)
	}
}

func TestGetJobIDFromContext(t *testing.T) {
	// Test with no job ID
	ctx := context.Background()
	id := GetJobIDFromContext(ctx)
	if id != "" {
		t.Errorf("GetJobIDFromContext() = %v, want empty string", id)
	}

	// Test with job ID
	jobID := "job-test-456"
	ctx = CreateContextWithJobID(ctx, jobID)
	id = GetJobIDFromContext(ctx)
	if id != jobID {
		t.Errorf("GetJobIDFromContext() = %v, want %v", id, jobID)
	}
}

func TestSanitizeStatement(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain statement",
			input: "SELECT * FROM wp_users",
			want:  "SELECT * FROM wp_users",
		},
		{
			name:  "create user with quoted credential",
			input: "CREATE USER 'svc'@'%' IDENTIFIED BY 'hunter2'",
			want:  "CREATE USER 'svc'@'%' IDENTIFIED BY ***",
		},
		{
			name:  "connection string with password",
			input: "-- dsn: host=db.local password=secret123 timeout=5s",
			want:  "-- dsn: host=db.local password=*** timeout=5s",
		},
		{
			name:  "uppercase PASSWORD",
			input: "GRANT ALL ON db.* TO 'svc' PASSWORD='secret123'",
			want:  "GRANT ALL ON db.* TO 'svc' PASSWORD=***",
		},
		{
			name:  "very long statement",
			input: strings.Repeat("SELECT * FROM very_long_table_name ", 20),
			want:  strings.Repeat("SELECT * FROM very_long_table_name ", 20)[:500] + "... [truncated]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeStatement(tt.input); got != tt.want {
				t.Errorf("SanitizeStatement() = %v, want %v", got, tt.want)
			}
		})
	}
}
