package triggerflow

import (
	"maps"
	"time"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/observability"
)

// Options is the execution context carried alongside a payload for the
// duration of one invocation. It is constructed once per invocation and
// read-only to detectors, handlers and jobs; the engine derives narrowed
// copies when delegating to a job.
type Options struct {
	// InvocationID identifies this top-level invocation.
	InvocationID string

	// CorrelationID groups this invocation with every recursively
	// triggered child invocation. Always a UUID.
	CorrelationID string

	// Source labels the actor driving this invocation. Used as the
	// fallback tracking-token source when the payload carries none.
	Source string

	// MaxJobExecutionTime is the per-job wall-clock budget. Individual
	// jobs may override it via Job.Timeout.
	MaxJobExecutionTime time.Duration

	// Context holds caller-supplied values visible to every unit.
	Context map[string]any

	// Logger is the scoped logger bound to this invocation. Never nil
	// inside detectors, handlers and jobs.
	Logger *observability.ScopedLogger

	// Extensions holds free-form engine extension fields.
	Extensions map[string]any
}

// Value returns a caller-supplied context value, or nil.
func (o *Options) Value(key string) any {
	if o == nil || o.Context == nil {
		return nil
	}
	return o.Context[key]
}

// Extension returns an extension field, or nil.
func (o *Options) Extension(key string) any {
	if o == nil || o.Extensions == nil {
		return nil
	}
	return o.Extensions[key]
}

// narrowed returns a copy scoped to one event/job without mutating the
// invocation-wide Options.
func (o *Options) narrowed(event, job string) *Options {
	scoped := *o
	if o.Logger != nil {
		if event != "" {
			scoped.Logger = o.Logger.WithEvent(event)
		}
		if job != "" {
			scoped.Logger = scoped.Logger.WithJob(job)
		}
	}
	return &scoped
}

// InvokeOption configures one invocation.
type InvokeOption func(*Options)

// WithCorrelationID pins the correlation id instead of minting one.
// The id must be a UUID; Invoke rejects anything else.
func WithCorrelationID(id string) InvokeOption {
	return func(o *Options) {
		o.CorrelationID = id
	}
}

// WithSource overrides the invocation's source label.
func WithSource(source string) InvokeOption {
	return func(o *Options) {
		if source != "" {
			o.Source = source
		}
	}
}

// WithJobTimeout overrides the per-job wall-clock budget for this invocation.
func WithJobTimeout(d time.Duration) InvokeOption {
	return func(o *Options) {
		if d > 0 {
			o.MaxJobExecutionTime = d
		}
	}
}

// WithContextValue adds one caller-supplied context value.
func WithContextValue(key string, value any) InvokeOption {
	return func(o *Options) {
		if o.Context == nil {
			o.Context = make(map[string]any)
		}
		o.Context[key] = value
	}
}

// WithContextMap merges a caller-supplied context map.
func WithContextMap(values map[string]any) InvokeOption {
	return func(o *Options) {
		if len(values) == 0 {
			return
		}
		if o.Context == nil {
			o.Context = make(map[string]any, len(values))
		}
		maps.Copy(o.Context, values)
	}
}

// WithExtension sets one free-form extension field.
func WithExtension(key string, value any) InvokeOption {
	return func(o *Options) {
		if o.Extensions == nil {
			o.Extensions = make(map[string]any)
		}
		o.Extensions[key] = value
	}
}

// WithScopedLogger pre-binds a scoped logger for this invocation.
func WithScopedLogger(logger *observability.ScopedLogger) InvokeOption {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
