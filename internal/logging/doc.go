// Package logging provides structured logging for the coedit server and
// client cores.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation support. Child loggers created via the With* methods
// carry persistent attributes (user ID, document name, component) so that
// every entry from a subsystem is filterable after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/coedit", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	docLogger := logger.WithDocument("notes")
//	docLogger.Info("lock acquired", "owner", "alice", "start", 2, "end", 4)
//
// # Rotation
//
// For long-running servers, [NewLoggerWithRotation] caps the log file size
// and keeps a fixed number of gzip-compressible backups.
//
// # Testing
//
// Use [NopLogger] to discard all output in tests.
package logging
