package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.listen_addr")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLocks()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if _, _, err := net.SplitHostPort(c.Server.ListenAddr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "server.listen_addr",
			Value:   c.Server.ListenAddr,
			Message: "must be a valid host:port address",
		})
	}

	if c.Server.MaxDocuments < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_documents",
			Value:   c.Server.MaxDocuments,
			Message: "must be at least 1",
		})
	}
	if c.Server.MaxDocuments > 1000 {
		errors = append(errors, ValidationError{
			Field:   "server.max_documents",
			Value:   c.Server.MaxDocuments,
			Message: "must be at most 1000",
		})
	}

	return errors
}

// validateLocks validates the LockConfig
func (c *Config) validateLocks() []ValidationError {
	var errors []ValidationError

	if c.Locks.IdleWindowSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "locks.idle_window_seconds",
			Value:   c.Locks.IdleWindowSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Locks.SweepIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "locks.sweep_interval_seconds",
			Value:   c.Locks.SweepIntervalSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be at least 1",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
