// Package observability provides production-grade observability features
// for triggerflow: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Scoped logging routed through the plugin manager
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/plugin"
)

// EnrichLogger adds invocation context to a logger.
// Returns a new logger with invocation_id, correlation_id and event fields.
func EnrichLogger(logger *slog.Logger, invocationID, correlationID, event string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("invocation_id", invocationID),
		slog.String("correlation_id", correlationID),
		slog.String("event", event),
	)
}

// LogInvocationStart logs the start of an invocation.
func LogInvocationStart(logger *slog.Logger, invocationID, correlationID string, registered int) {
	if logger == nil {
		return
	}
	logger.Info("invocation starting",
		slog.String("invocation_id", invocationID),
		slog.String("correlation_id", correlationID),
		slog.Int("events_registered", registered),
	)
}

// LogInvocationComplete logs invocation completion with its terminal status.
func LogInvocationComplete(logger *slog.Logger, invocationID, status string, durationMs float64, detected, jobs int) {
	if logger == nil {
		return
	}
	logger.Info("invocation completed",
		slog.String("invocation_id", invocationID),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
		slog.Int("events_detected", detected),
		slog.Int("jobs_executed", jobs),
	)
}

// LogDetection logs a detector verdict.
func LogDetection(logger *slog.Logger, event string, detected bool, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("detector settled",
		slog.String("event", event),
		slog.Bool("detected", detected),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDetectionError logs a detector failure (non-fatal).
func LogDetectionError(logger *slog.Logger, event string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("detector failed",
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// LogHandlerError logs a handler failure. The event's jobs never schedule.
func LogHandlerError(logger *slog.Logger, event string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// LogJobStart logs a job execution start.
func LogJobStart(logger *slog.Logger, event, job, jobExecutionID string) {
	if logger == nil {
		return
	}
	logger.Debug("job starting",
		slog.String("event", event),
		slog.String("job", job),
		slog.String("job_execution_id", jobExecutionID),
	)
}

// LogJobSettled logs a job's terminal status.
func LogJobSettled(logger *slog.Logger, event, job, status string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("event", event),
		slog.String("job", job),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.Warn("job settled", attrs...)
		return
	}
	logger.Debug("job settled", attrs...)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}

// ScopedLogger is a logging facade auto-prefixed by event/job scope.
//
// Every record is written to the underlying slog.Logger and mirrored to the
// plugin manager's log hook so plugins can ship log records elsewhere. With
// no manager configured the facade degrades to plain slog output.
type ScopedLogger struct {
	logger        *slog.Logger
	plugins       *plugin.Manager
	event         string
	job           string
	invocationID  string
	correlationID string
}

// NewScopedLogger creates a ScopedLogger. A nil logger falls back to
// slog.Default(); a nil manager disables hook mirroring.
func NewScopedLogger(logger *slog.Logger, plugins *plugin.Manager) *ScopedLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScopedLogger{logger: logger, plugins: plugins}
}

// WithInvocation returns a derived logger scoped to one invocation.
func (l *ScopedLogger) WithInvocation(invocationID, correlationID string) *ScopedLogger {
	scoped := *l
	scoped.invocationID = invocationID
	scoped.correlationID = correlationID
	scoped.logger = l.logger.With(
		slog.String("invocation_id", invocationID),
		slog.String("correlation_id", correlationID),
	)
	return &scoped
}

// WithEvent returns a derived logger scoped to one event.
func (l *ScopedLogger) WithEvent(event string) *ScopedLogger {
	scoped := *l
	scoped.event = event
	scoped.logger = l.logger.With(slog.String("event", event))
	return &scoped
}

// WithJob returns a derived logger scoped to one job.
func (l *ScopedLogger) WithJob(job string) *ScopedLogger {
	scoped := *l
	scoped.job = job
	scoped.logger = l.logger.With(slog.String("job", job))
	return &scoped
}

// Debug logs at debug level.
func (l *ScopedLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *ScopedLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *ScopedLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *ScopedLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *ScopedLogger) log(level slog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), level, msg, args...)

	if l.plugins == nil {
		return
	}
	l.plugins.Call(context.Background(), plugin.HookLog, &plugin.Context{
		EventName:     l.event,
		JobName:       l.job,
		InvocationID:  l.invocationID,
		CorrelationID: l.correlationID,
		Level:         level,
		Message:       msg,
		Fields:        argsToFields(args),
	})
}

// argsToFields converts slog-style key-value args into a map for hooks.
// Keys that are not strings and trailing values are skipped.
func argsToFields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	fields := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); {
		switch k := args[i].(type) {
		case slog.Attr:
			fields[k.Key] = k.Value.Any()
			i++
		case string:
			if i+1 >= len(args) {
				return fields
			}
			fields[k] = args[i+1]
			i += 2
		default:
			i++
		}
	}
	return fields
}
