package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeValidation represents malformed or rejected input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeIntegrity represents a missing/invalid manifest or checksum mismatch
	ErrorTypeIntegrity ErrorType = "integrity"
	// ErrorTypeIO represents file or stream read/write failures
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeTransfer represents storage adapter upload/download/session failures
	ErrorTypeTransfer ErrorType = "transfer"
	// ErrorTypeSizeLimit represents an archive exceeding the configured ceiling
	ErrorTypeSizeLimit ErrorType = "size_limit"
	// ErrorTypeReplay represents a dump statement that failed during restore
	ErrorTypeReplay ErrorType = "replay"
	// ErrorTypeDatabase represents database connection or query errors
	ErrorTypeDatabase ErrorType = "database"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeNotFound represents missing jobs, backups or remote objects
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// EngineError represents an engine-specific error with context
type EngineError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
	UserMessage string
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *EngineError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// IsRecoverable returns whether the error is recoverable
func (e *EngineError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new engine error
func New(errorType ErrorType, message string, cause error) *EngineError {
	return &EngineError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Context:     make(map[string]interface{}),
		Recoverable: false,
	}
}

// NewRecoverable creates a new recoverable engine error
func NewRecoverable(errorType ErrorType, message string, cause error) *EngineError {
	return &EngineError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Context:     make(map[string]interface{}),
		Recoverable: true,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *EngineError {
	return New(ErrorTypeValidation, message, cause)
}

// NewIntegrityError creates an integrity error
func NewIntegrityError(message string, cause error) *EngineError {
	return New(ErrorTypeIntegrity, message, cause)
}

// NewIOError creates an I/O error
func NewIOError(message string, cause error) *EngineError {
	return NewRecoverable(ErrorTypeIO, message, cause)
}

// NewTransferError creates a storage transfer error
func NewTransferError(message string, cause error) *EngineError {
	return NewRecoverable(ErrorTypeTransfer, message, cause)
}

// NewSizeLimitError creates a size-limit error
func NewSizeLimitError(message string, cause error) *EngineError {
	return New(ErrorTypeSizeLimit, message, cause)
}

// NewReplayError creates a restore replay error
func NewReplayError(message string, cause error) *EngineError {
	return New(ErrorTypeReplay, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(message string, cause error) *EngineError {
	return New(ErrorTypeDatabase, message, cause)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *EngineError {
	return New(ErrorTypeConfiguration, message, cause)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(message string, cause error) *EngineError {
	return New(ErrorTypeNotFound, message, cause)
}

// IsRetryable returns true when the error is worth retrying
func IsRetryable(err error) bool {
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		return false
	}
	if engineErr.Recoverable {
		return true
	}
	switch engineErr.Type {
	case ErrorTypeIO, ErrorTypeTransfer, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// IsPermanent returns true when retrying the error cannot succeed
func IsPermanent(err error) bool {
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		return false
	}
	switch engineErr.Type {
	case ErrorTypeValidation, ErrorTypeIntegrity, ErrorTypeSizeLimit,
		ErrorTypeConfiguration, ErrorTypeNotFound, ErrorTypeReplay:
		return true
	default:
		return false
	}
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors collects field validation failures
type ValidationErrors struct {
	Errors []ValidationError
}

// Add appends a validation failure
func (v *ValidationErrors) Add(field, message string) {
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any validation failures were collected
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ErrorClassifier provides methods to classify and handle different types of errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an EngineError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *EngineError {
	if err == nil {
		return nil
	}

	// Check if it's already an EngineError
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr
	}

	// Classify MySQL errors
	if mysqlErr := ec.classifyMySQLError(err); mysqlErr != nil {
		return mysqlErr
	}

	// Classify network errors
	if netErr := ec.classifyNetworkError(err); netErr != nil {
		return netErr
	}

	// Classify context errors
	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	// Classify file system errors
	if fsErr := ec.classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	// Default to unknown error
	return New(ErrorTypeUnknown, "An unexpected error occurred", err)
}

// classifyMySQLError classifies MySQL-specific errors
func (ec *ErrorClassifier) classifyMySQLError(err error) *EngineError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1045: // Access denied
			return New(ErrorTypeDatabase,
				"Database access denied - check username and password", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1049: // Unknown database
			return New(ErrorTypeConfiguration,
				"Database does not exist", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1146: // Table doesn't exist
			return New(ErrorTypeDatabase,
				"Table does not exist", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1062: // Duplicate entry
			return New(ErrorTypeDatabase,
				"Duplicate entry - record already exists", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1064: // SQL syntax error
			return New(ErrorTypeDatabase,
				"SQL syntax error", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2003: // Can't connect to MySQL server
			return NewRecoverable(ErrorTypeDatabase,
				"Cannot connect to MySQL server - server may be down or unreachable", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2006: // MySQL server has gone away
			return NewRecoverable(ErrorTypeDatabase,
				"MySQL server connection lost - attempting to reconnect", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		default:
			return New(ErrorTypeDatabase,
				fmt.Sprintf("MySQL error: %s", mysqlErr.Message), err).
				WithContext("mysql_error_code", mysqlErr.Number)
		}
	}

	// Check for SQL driver errors
	if errors.Is(err, sql.ErrNoRows) {
		return New(ErrorTypeNotFound, "No rows found", err)
	}
	if errors.Is(err, sql.ErrTxDone) {
		return New(ErrorTypeDatabase, "Transaction has already been committed or rolled back", err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return NewRecoverable(ErrorTypeDatabase, "Database connection is closed", err)
	}

	return nil
}

// classifyNetworkError classifies network-related errors
func (ec *ErrorClassifier) classifyNetworkError(err error) *EngineError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewRecoverable(ErrorTypeTimeout,
				"Network operation timed out", err)
		}
	}

	// Check for specific network error types
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return NewRecoverable(ErrorTypeTransfer,
				"Failed to establish network connection", err)
		case "read", "write":
			return NewRecoverable(ErrorTypeTransfer,
				"Network I/O error", err)
		}
	}

	return nil
}

// classifyContextError classifies context-related errors
func (ec *ErrorClassifier) classifyContextError(err error) *EngineError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverable(ErrorTypeTimeout,
			"Operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrorTypeInterruption,
			"Operation was canceled", err)
	}

	return nil
}

// classifyFileSystemError classifies file system errors
func (ec *ErrorClassifier) classifyFileSystemError(err error) *EngineError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		switch pathErr.Err {
		case syscall.ENOENT:
			return New(ErrorTypeNotFound,
				fmt.Sprintf("File or directory not found: %s", pathErr.Path), err)
		case syscall.EACCES:
			return New(ErrorTypeIO,
				fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
		case syscall.ENOSPC:
			return New(ErrorTypeIO,
				"No space left on device", err)
		}
	}

	return nil
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryHandler provides retry functionality for operations
type RetryHandler struct {
	config     RetryConfig
	classifier *ErrorClassifier
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryConfig) *RetryHandler {
	return &RetryHandler{
		config:     config,
		classifier: NewErrorClassifier(),
	}
}

// NewDefaultRetryHandler creates a retry handler with default configuration
func NewDefaultRetryHandler() *RetryHandler {
	return NewRetryHandler(DefaultRetryConfig())
}

// Retry executes a function with retry logic for recoverable errors
func (rh *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= rh.config.MaxAttempts; attempt++ {
		// Check if context is canceled
		select {
		case <-ctx.Done():
			return New(ErrorTypeInterruption, "Operation canceled", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil // Success
		}

		lastErr = err
		engineErr := rh.classifier.ClassifyError(err)

		// If error is not recoverable, don't retry
		if !engineErr.IsRecoverable() {
			return engineErr
		}

		// Don't retry on the last attempt
		if attempt == rh.config.MaxAttempts {
			break
		}

		// Calculate delay with exponential backoff
		delay := rh.calculateDelay(attempt)

		// Wait before retrying
		select {
		case <-ctx.Done():
			return New(ErrorTypeInterruption, "Operation canceled during retry", ctx.Err())
		case <-time.After(delay):
			// Continue to next attempt
		}
	}

	// All attempts failed
	return rh.classifier.ClassifyError(lastErr).
		WithContext("attempts", rh.config.MaxAttempts)
}

// calculateDelay calculates the delay for a given attempt using exponential backoff
func (rh *RetryHandler) calculateDelay(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= rh.config.Multiplier
	}

	delay := time.Duration(float64(rh.config.BaseDelay) * multiplier)

	if delay > rh.config.MaxDelay {
		delay = rh.config.MaxDelay
	}

	return delay
}

// GracefulShutdownHandler handles graceful shutdown on interruption signals
type GracefulShutdownHandler struct {
	shutdownFuncs []func() error
	signalChan    chan os.Signal
	done          chan bool
}

// NewGracefulShutdownHandler creates a new graceful shutdown handler
func NewGracefulShutdownHandler() *GracefulShutdownHandler {
	return &GracefulShutdownHandler{
		shutdownFuncs: make([]func() error, 0),
		signalChan:    make(chan os.Signal, 1),
		done:          make(chan bool, 1),
	}
}

// RegisterShutdownFunc registers a function to be called during shutdown
func (gsh *GracefulShutdownHandler) RegisterShutdownFunc(fn func() error) {
	gsh.shutdownFuncs = append(gsh.shutdownFuncs, fn)
}

// Start starts listening for shutdown signals
func (gsh *GracefulShutdownHandler) Start() {
	signal.Notify(gsh.signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-gsh.signalChan
		gsh.shutdown()
	}()
}

// Stop stops the graceful shutdown handler
func (gsh *GracefulShutdownHandler) Stop() {
	signal.Stop(gsh.signalChan)
	close(gsh.signalChan)
}

// WaitForShutdown waits for shutdown to complete
func (gsh *GracefulShutdownHandler) WaitForShutdown() {
	<-gsh.done
}

// shutdown executes all registered shutdown functions
func (gsh *GracefulShutdownHandler) shutdown() {
	defer func() {
		gsh.done <- true
	}()

	for i := len(gsh.shutdownFuncs) - 1; i >= 0; i-- {
		if err := gsh.shutdownFuncs[i](); err != nil {
			// Log error but continue with shutdown
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.IsRecoverable()
	}
	return false
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Type
	}
	return ErrorTypeUnknown
}

// FormatUserError formats an error for display to users
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.GetUserMessage()
	}

	// For non-EngineError types, provide generic message
	return "An unexpected error occurred. Please check the logs for more details."
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return New(engineErr.Type, message, err)
	}

	classifier := NewErrorClassifier()
	classifiedErr := classifier.ClassifyError(err)
	classifiedErr.Message = message
	return classifiedErr
}
