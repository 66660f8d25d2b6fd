// Package logging provides structured logging utilities for migstress.
//
// # Overview
//
// Two kinds of loggers are used:
//
//   - the process logger: JSON to stderr via log/slog, with module and version
//     attributes and source locations at debug level
//   - file loggers: append-only text logs, one per worker, one per round and
//     one per suite, every line timestamped
//
// # Log Levels
//
// Supported log levels (case-insensitive): debug, info (default), warn/warning, error.
// The LOG_LEVEL environment variable is used when no explicit level is passed.
//
// # Usage
//
//	logging.SetDefaultStructuredLoggerWithLevel("migstress", version, "debug")
//	slog.Info("round started", "kind", "standard", "workers", 7)
//
//	wl, err := logging.NewFileLogger("/var/log/migstress/run/standard/worker-0.log",
//	    "partition", id)
//	if err != nil {
//	    return err
//	}
//	defer wl.Close()
//	wl.Info("allocating", "target_bytes", target)
//
// Output format of the process logger:
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "INFO",
//	    "msg": "round finished",
//	    "module": "migstress",
//	    "version": "v0.3.0",
//	    "kind": "thrashing",
//	    "success": true
//	}
package logging
