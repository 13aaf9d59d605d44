package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	// Logs go to stderr by default so stdout stays reserved for command
	// output (tables, json/yaml documents).
	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	// Set format
	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   false,
		})
	}

	// Set log level based on our custom levels
	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	// Enable caller reporting if requested
	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	// Set up file logging if specified
	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		// Use multi-writer to write to both the file and the stream
		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stderr, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	config := Config{
		Level:      LogLevelNormal,
		Output:     os.Stderr,
		Format:     "text",
		ShowCaller: false,
	}

	logger, _ := NewLogger(config)
	return logger
}

// WithContext returns a logger with context fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)

	// Add job ID if available in context
	if jobID := ctx.Value("job_id"); jobID != nil {
		entry = entry.WithField("job_id", jobID)
	}

	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// WithError returns a logger with the error attached as a field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.logger.WithError(err)
}

// Backup operation logging methods

// LogDatabaseConnection logs database connection attempts
func (l *Logger) LogDatabaseConnection(host string, database string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "database_connection",
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Info("Database connection established")
	} else {
		if err != nil {
			fields["error"] = err.Error()
		}
		l.logger.WithFields(fields).Error("Database connection failed")
	}
}

// LogTableDump logs the completion of a single table dump
func (l *Logger) LogTableDump(table string, rows int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "table_dump",
		"table":     table,
		"rows":      rows,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Table dump failed")
	} else {
		if l.level == LogLevelVerbose || l.level == LogLevelDebug {
			l.logger.WithFields(fields).Debug("Table dumped")
		}
	}
}

// LogStatementReplay logs replay of a single dump statement
func (l *Logger) LogStatementReplay(statement string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "statement_replay",
		"duration":  duration.String(),
	}

	// Truncate long statements for readability
	if len(statement) > 200 {
		fields["statement"] = statement[:200] + "..."
		fields["statement_length"] = len(statement)
	} else {
		fields["statement"] = statement
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Warn("Statement replay failed")
	} else {
		if l.level == LogLevelVerbose || l.level == LogLevelDebug {
			l.logger.WithFields(fields).Debug("Statement replayed")
		}
	}
}

// LogArchiveBuild logs archive container creation
func (l *Logger) LogArchiveBuild(container string, entries int, size int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "archive_build",
		"container": container,
		"entries":   entries,
		"size":      size,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Archive build failed")
	} else {
		l.logger.WithFields(fields).Info("Archive build completed")
	}
}

// LogUpload logs a storage upload attempt
func (l *Logger) LogUpload(adapter string, remotePath string, size int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "upload",
		"adapter":     adapter,
		"remote_path": remotePath,
		"size":        size,
		"duration":    duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Upload failed")
	} else {
		l.logger.WithFields(fields).Info("Upload completed")
	}
}

// LogJobTransition logs a job status transition
func (l *Logger) LogJobTransition(jobID string, from string, to string) {
	l.logger.WithFields(logrus.Fields{
		"operation": "job_transition",
		"job_id":    jobID,
		"from":      from,
		"to":        to,
	}).Debug("Job status changed")
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.logger.Fatal(msg)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	switch level {
	case LogLevelQuiet:
		l.logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		l.logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		l.logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		l.logger.SetLevel(logrus.TraceLevel)
	}
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet:
		return l.logger.IsLevelEnabled(logrus.ErrorLevel)
	case LogLevelNormal:
		return l.logger.IsLevelEnabled(logrus.InfoLevel)
	case LogLevelVerbose:
		return l.logger.IsLevelEnabled(logrus.DebugLevel)
	case LogLevelDebug:
		return l.logger.IsLevelEnabled(logrus.TraceLevel)
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}

	// Add additional fields
	for k, v := range fields {
		logFields[k] = v
	}

	l.logger.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		duration := time.Since(startTime)
		logFields["status"] = "completed"
		logFields["duration"] = duration.String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.logger.WithFields(logFields).Error("Operation failed")
		} else {
			logFields["success"] = true
			l.logger.WithFields(logFields).Info("Operation completed")
		}
	}
}

// CreateContextWithJobID creates a context carrying a job ID for tracing
func CreateContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, "job_id", jobID)
}

// GetJobIDFromContext extracts the job ID from context
func GetJobIDFromContext(ctx context.Context) string {
	if jobID := ctx.Value("job_id"); jobID != nil {
		if id, ok := jobID.(string); ok {
			return id
		}
	}
	return ""
}

// SanitizeStatement sanitizes a SQL statement for logging by masking credentials
func SanitizeStatement(sql string) string {
	// Mask password values that may appear in replayed statements
	for _, marker := range []string{"password=", "PASSWORD=", "IDENTIFIED BY "} {
		if !strings.Contains(sql, marker) {
			continue
		}
		parts := strings.Split(sql, marker)
		if len(parts) < 2 {
			continue
		}
		// Find the end of the credential value (space, quote, or end of string)
		valuePart := parts[1]
		var endIndex int
		if len(valuePart) > 0 && (valuePart[0] == '\'' || valuePart[0] == '"') {
			// Quoted value - find closing quote
			quote := valuePart[0]
			endIndex = strings.Index(valuePart[1:], string(quote))
			if endIndex != -1 {
				endIndex += 2 // Include both quotes
			} else {
				endIndex = len(valuePart)
			}
		} else {
			// Unquoted value - find space or end
			endIndex = strings.Index(valuePart, " ")
			if endIndex == -1 {
				endIndex = len(valuePart)
			}
		}
		sql = parts[0] + marker + "***" + valuePart[endIndex:]
	}

	// Truncate very long statements
	if len(sql) > 500 {
		return sql[:500] + "... [truncated]"
	}

	return sql
}
