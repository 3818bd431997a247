/*
Package log provides structured logging for cachedb using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every cachedb package without passing a value around

Log Levels:
  - Debug: Detailed debugging information (index builds, plan selection)
  - Info: General informational messages (cache opened, version swapped)
  - Warn: Warning messages (log reader falling behind, retrying a write)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: Add a component field, e.g. "logreader", "indexworker",
    "manager", "executor"
  - WithCacheName: Add the cache_name field

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	readerLog := log.WithComponent("logreader").With().Str("cache_name", "orders").Logger()
	readerLog.Info().Int64("offset", offset).Msg("resumed tailing operation log")

	workerLog := log.WithComponent("indexworker").With().Str("index_id", "by_tenant").Logger()
	workerLog.Error().Err(err).Msg("index apply failed")

# Security

Never log secrets or connection credentials. Use structured fields
(.Str, .Int) instead of string concatenation so user-supplied record
values can never be mistaken for log control characters.
*/
package log
