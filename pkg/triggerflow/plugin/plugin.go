// Package plugin lets independently-developed observers react to every
// phase of an invocation without the engine importing them.
//
// A plugin implements the Plugin interface; embedding Nop gives no-op
// defaults so implementations only override the hooks they care about.
// Hook failures are isolated by the Manager: a panicking or erroring
// plugin is logged and never destabilizes the engine or other plugins.
package plugin

import (
	"context"
	"log/slog"
)

// Hook identifies a lifecycle phase observed by plugins.
type Hook string

const (
	// HookBeforeDetect fires before each detector runs.
	HookBeforeDetect Hook = "before_detect"

	// HookAfterDetect fires after each detector settles, with the verdict.
	HookAfterDetect Hook = "after_detect"

	// HookBeforeJob fires before each job starts.
	HookBeforeJob Hook = "before_job"

	// HookAfterJob fires after each job settles, with the finalized record.
	HookAfterJob Hook = "after_job"

	// HookLog fires for every record emitted through a ScopedLogger.
	HookLog Hook = "log"

	// HookError fires when a detector, handler or job fails.
	HookError Hook = "error"
)

// Context carries phase information to a hook. Fields are populated as
// applicable to the phase; absent fields keep their zero value.
type Context struct {
	// Hook is the phase that triggered this call.
	Hook Hook

	// EventName is the registered event being detected or handled.
	EventName string

	// JobName is the job being executed, for job-phase hooks.
	JobName string

	// CorrelationID groups every hook call of one invocation chain.
	CorrelationID string

	// InvocationID identifies the current top-level invocation.
	InvocationID string

	// Payload is the normalized payload data, when the phase has one.
	Payload any

	// Detected carries the detector verdict for HookAfterDetect.
	Detected bool

	// TrackingToken is the lineage token stamped on the current job.
	TrackingToken string

	// Err is the unit failure for HookError and failed HookAfterJob calls.
	Err error

	// Level and Message carry the log record for HookLog.
	Level   slog.Level
	Message string

	// Fields holds structured log attributes for HookLog and free-form
	// extension data for other phases.
	Fields map[string]any
}

// Plugin is the full lifecycle hook surface. All hooks are optional in
// spirit: embed Nop and override the ones you need.
type Plugin interface {
	// Name identifies the plugin in logs and error reports.
	Name() string

	OnBeforeDetect(ctx context.Context, hc *Context) error
	OnAfterDetect(ctx context.Context, hc *Context) error
	OnBeforeJob(ctx context.Context, hc *Context) error
	OnAfterJob(ctx context.Context, hc *Context) error
	OnLog(ctx context.Context, hc *Context) error
	OnError(ctx context.Context, hc *Context) error
}

// Nop provides no-op implementations of every hook.
// Embed it so new hooks added to Plugin don't break existing plugins.
type Nop struct{}

// Name returns an empty name; named plugins should override it.
func (Nop) Name() string { return "" }

func (Nop) OnBeforeDetect(context.Context, *Context) error { return nil }
func (Nop) OnAfterDetect(context.Context, *Context) error  { return nil }
func (Nop) OnBeforeJob(context.Context, *Context) error    { return nil }
func (Nop) OnAfterJob(context.Context, *Context) error     { return nil }
func (Nop) OnLog(context.Context, *Context) error          { return nil }
func (Nop) OnError(context.Context, *Context) error        { return nil }

// Func adapts a single function into a Plugin that runs on the given hook.
// Useful for tests and small observers.
type Func struct {
	Nop

	// PluginName is reported by Name; defaults to "func".
	PluginName string

	// On is the hook the function should observe.
	On Hook

	// Fn is invoked when the hook fires.
	Fn func(ctx context.Context, hc *Context) error
}

// Name implements Plugin.
func (f *Func) Name() string {
	if f.PluginName == "" {
		return "func"
	}
	return f.PluginName
}

func (f *Func) dispatch(ctx context.Context, hook Hook, hc *Context) error {
	if f.Fn == nil || f.On != hook {
		return nil
	}
	return f.Fn(ctx, hc)
}

func (f *Func) OnBeforeDetect(ctx context.Context, hc *Context) error {
	return f.dispatch(ctx, HookBeforeDetect, hc)
}

func (f *Func) OnAfterDetect(ctx context.Context, hc *Context) error {
	return f.dispatch(ctx, HookAfterDetect, hc)
}

func (f *Func) OnBeforeJob(ctx context.Context, hc *Context) error {
	return f.dispatch(ctx, HookBeforeJob, hc)
}

func (f *Func) OnAfterJob(ctx context.Context, hc *Context) error {
	return f.dispatch(ctx, HookAfterJob, hc)
}

func (f *Func) OnLog(ctx context.Context, hc *Context) error {
	return f.dispatch(ctx, HookLog, hc)
}

func (f *Func) OnError(ctx context.Context, hc *Context) error {
	return f.dispatch(ctx, HookError, hc)
}
