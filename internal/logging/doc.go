// Package logging provides structured logging for agentq.
//
// The package wraps log/slog with a JSON handler and adds persistent
// context attributes so every line written while a task moves through the
// store can be correlated afterwards:
//
//	logger, err := logging.NewLogger("/path/to/queue", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithTask("scan-20261017T101500-4242").
//	    WithPhase("scan").
//	    Info("task claimed", "partition", "running")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"task claimed","task_id":"scan-20261017T101500-4242","phase":"scan","partition":"running"}
//
// # Log Rotation
//
// The queue root is shared by every worker process, so the log file can
// grow quickly. [NewLoggerWithRotation] rotates debug.log once it exceeds
// MaxSizeMB, keeping MaxBackups numbered backups (debug.log.1 is the
// newest), optionally gzip-compressed.
//
// # Testing
//
// Use [NopLogger] to discard output.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package logging
