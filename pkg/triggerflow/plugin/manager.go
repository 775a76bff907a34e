package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PluginHookError wraps a failure inside a plugin hook. It is logged by the
// Manager and never propagated to the engine's caller.
type PluginHookError struct {
	// Plugin is the name of the plugin that failed.
	Plugin string
	// Hook is the phase during which the failure occurred.
	Hook Hook
	// Err is the returned error, or the recovered panic value wrapped
	// as an error.
	Err error
}

// Error implements the error interface.
func (e *PluginHookError) Error() string {
	return fmt.Sprintf("plugin %s: hook %s: %v", e.Plugin, e.Hook, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PluginHookError) Unwrap() error {
	return e.Err
}

// Manager holds an ordered list of plugins and dispatches hook calls.
//
// Construct a Manager explicitly and hand it to the engine; there is no
// process-wide default. Registration is a startup-time concern: Register
// and Reset take the write lock, dispatch takes the read lock, so a
// Manager is safe to share across concurrent invocations once populated.
type Manager struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	inited  bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used to report hook failures.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates an initialized Manager with the given plugins.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger: slog.Default(),
		inited: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register appends plugins to the dispatch order.
func (m *Manager) Register(plugins ...Plugin) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = append(m.plugins, plugins...)
}

// Initialized reports whether the Manager was constructed via NewManager
// and has not been torn down.
func (m *Manager) Initialized() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inited
}

// Len returns the number of registered plugins.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// Reset removes all plugins and marks the Manager torn down.
// Intended for test isolation.
func (m *Manager) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = nil
	m.inited = false
}

// Call dispatches one hook to every plugin sequentially in registration
// order. Each plugin call is isolated: a returned error or a panic is
// captured as a PluginHookError and logged, and the remaining plugins still run.
// Call never returns an error and is safe on a nil Manager.
func (m *Manager) Call(ctx context.Context, hook Hook, hc *Context) {
	if m == nil {
		return
	}
	m.mu.RLock()
	plugins := m.plugins
	logger := m.logger
	m.mu.RUnlock()

	if hc == nil {
		hc = &Context{}
	}
	hc.Hook = hook

	for _, p := range plugins {
		if err := callOne(ctx, p, hook, hc); err != nil {
			hookErr := &PluginHookError{Plugin: p.Name(), Hook: hook, Err: err}
			if logger != nil {
				logger.Warn("plugin hook failed",
					slog.String("plugin", hookErr.Plugin),
					slog.String("hook", string(hook)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// callOne invokes a single plugin hook, converting panics into errors.
func callOne(ctx context.Context, p Plugin, hook Hook, hc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch hook {
	case HookBeforeDetect:
		return p.OnBeforeDetect(ctx, hc)
	case HookAfterDetect:
		return p.OnAfterDetect(ctx, hc)
	case HookBeforeJob:
		return p.OnBeforeJob(ctx, hc)
	case HookAfterJob:
		return p.OnAfterJob(ctx, hc)
	case HookLog:
		return p.OnLog(ctx, hc)
	case HookError:
		return p.OnError(ctx, hc)
	default:
		return fmt.Errorf("unknown hook %q", hook)
	}
}
