// Package logging provides structured logging for streamledger.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent context attributes. Every stream, consumer, and mutex carries a
// child logger so that a line can be traced back to the stream instance,
// partition locator, and handling concern that produced it.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses slog internally which is designed for concurrent access. Child loggers
// created via With* methods share the underlying writer and level.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/streamledger.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("stream created", "records", 0)
//
// # Context Propagation
//
//	streamLogger := logger.WithStream("orders", instanceID)
//	concernLogger := streamLogger.WithConcern("billing")
//	concernLogger.Debug("record claimed", "internal_record_id", 42)
//
// Output:
//
//	{"time":"...","level":"DEBUG","msg":"record claimed","stream":"orders","stream_instance":"...","concern":"billing","internal_record_id":42}
//
// # Levels
//
// The level of a logger tree can be changed at runtime with [Logger.SetLevel];
// the configuration watcher uses this to apply logging.level edits without a
// restart.
//
// # Testing
//
// Use [NopLogger] to discard all output, or [NewLoggerTo] with a buffer to
// assert on emitted lines.
package logging
