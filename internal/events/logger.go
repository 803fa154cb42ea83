package events

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// EventLogger provides structured logging for key events in sysagent.
type EventLogger struct {
	logger    *slog.Logger
	component string
	sessionID string
}

// NewEventLogger creates a new EventLogger with JSON output to stdout.
// It includes base attributes: component and session_id.
func NewEventLogger(component, sessionID string) *EventLogger {
	return NewEventLoggerWithWriter(component, sessionID, os.Stdout)
}

// NewEventLoggerWithWriter creates a new EventLogger with JSON output to a custom writer.
// The agent CLI uses this to keep event output off stdout, which carries the answer.
func NewEventLoggerWithWriter(component, sessionID string, w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(handler).With(
		"component", component,
		"session_id", sessionID,
	)
	return &EventLogger{
		logger:    logger,
		component: component,
		sessionID: sessionID,
	}
}

// LogServerStarted logs when the tool server begins accepting requests.
// event: "server_started"
// Attributes: addr, operations
func (el *EventLogger) LogServerStarted(addr string, operations int) {
	el.logger.Info("server_started",
		"addr", addr,
		"operations", operations,
	)
}

// LogServerStopped logs when the tool server shuts down.
// event: "server_stopped"
// Attributes: reason
func (el *EventLogger) LogServerStopped(reason string) {
	el.logger.Info("server_stopped",
		"reason", reason,
	)
}

// LogOperationInvoked logs a completed operation invocation.
// event: "operation_invoked"
// Attributes: operation, status, duration_ms
func (el *EventLogger) LogOperationInvoked(operation, status string, durationMs int64) {
	el.logger.Info("operation_invoked",
		"operation", operation,
		"status", status,
		"duration_ms", durationMs,
	)
}

// LogUnknownOperation logs a call to an operation that is not registered.
// event: "unknown_operation"
// Attributes: operation
func (el *EventLogger) LogUnknownOperation(operation string) {
	el.logger.Warn("unknown_operation",
		"operation", operation,
	)
}

// LogValidationFailed logs an argument validation rejection.
// event: "validation_failed"
// Attributes: operation, reason
func (el *EventLogger) LogValidationFailed(operation, reason string) {
	el.logger.Warn("validation_failed",
		"operation", operation,
		"reason", reason,
	)
}

// LogArtifactStored logs a file persisted through the artifact store.
// event: "artifact_stored"
// Attributes: file_name, path, size_bytes
func (el *EventLogger) LogArtifactStored(fileName, path string, sizeBytes int64) {
	el.logger.Info("artifact_stored",
		"file_name", fileName,
		"path", path,
		"size_bytes", sizeBytes,
	)
}

// LogArtifactsPruned logs a retention sweep that removed aged files.
// event: "artifacts_pruned"
// Attributes: removed, ttl_hours
func (el *EventLogger) LogArtifactsPruned(removed int, ttlHours float64) {
	el.logger.Info("artifacts_pruned",
		"removed", removed,
		"ttl_hours", ttlHours,
	)
}

// LogSessionStarted logs the start of an agent session.
// event: "session_started"
// Attributes: goal, operations
func (el *EventLogger) LogSessionStarted(goal string, operations int) {
	el.logger.Info("session_started",
		"goal", goal,
		"operations", operations,
	)
}

// LogCallsPlanned logs the tool calls requested in one planning turn.
// event: "calls_planned"
// Attributes: turn, calls
func (el *EventLogger) LogCallsPlanned(turn, calls int) {
	el.logger.Info("calls_planned",
		"turn", turn,
		"calls", calls,
	)
}

// LogCallAbsorbed logs a per-call failure recorded in the session instead
// of ending it.
// event: "call_absorbed"
// Attributes: operation, kind, reason
func (el *EventLogger) LogCallAbsorbed(operation, kind, reason string) {
	el.logger.Warn("call_absorbed",
		"operation", operation,
		"kind", kind,
		"reason", reason,
	)
}

// LogFallbackEngaged logs the switch to the deterministic planner.
// event: "fallback_engaged"
// Attributes: reason
func (el *EventLogger) LogFallbackEngaged(reason string) {
	el.logger.Warn("fallback_engaged",
		"reason", reason,
	)
}

// LogSessionFinished logs the end of an agent session.
// event: "session_finished"
// Attributes: outcome, turns, duration_ms
func (el *EventLogger) LogSessionFinished(outcome string, turns int, durationMs int64) {
	el.logger.Info("session_finished",
		"outcome", outcome,
		"turns", turns,
		"duration_ms", durationMs,
	)
}

// Global logger management
var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex

	noopOnce   sync.Once
	noopLogger *EventLogger
)

// SetGlobalEventLogger sets the global event logger instance.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the global event logger instance.
// If no logger is set, returns a no-op logger.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return NoopEventLogger()
}

// NoopEventLogger returns a shared event logger that discards all events.
// Useful for testing or when event logging is disabled.
func NoopEventLogger() *EventLogger {
	noopOnce.Do(func() {
		handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
		noopLogger = &EventLogger{logger: slog.New(handler)}
	})
	return noopLogger
}
