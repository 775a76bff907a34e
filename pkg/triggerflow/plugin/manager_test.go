package plugin_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/plugin"
)

// recorder captures the order and context of hook calls.
type recorder struct {
	plugin.Nop
	name  string
	calls []plugin.Hook
	fail  map[plugin.Hook]error
	panik map[plugin.Hook]bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) observe(hook plugin.Hook) error {
	r.calls = append(r.calls, hook)
	if r.panik[hook] {
		panic("recorder exploded")
	}
	if err, ok := r.fail[hook]; ok {
		return err
	}
	return nil
}

func (r *recorder) OnBeforeDetect(context.Context, *plugin.Context) error {
	return r.observe(plugin.HookBeforeDetect)
}

func (r *recorder) OnAfterDetect(context.Context, *plugin.Context) error {
	return r.observe(plugin.HookAfterDetect)
}

func (r *recorder) OnBeforeJob(context.Context, *plugin.Context) error {
	return r.observe(plugin.HookBeforeJob)
}

func (r *recorder) OnAfterJob(context.Context, *plugin.Context) error {
	return r.observe(plugin.HookAfterJob)
}

func (r *recorder) OnLog(context.Context, *plugin.Context) error {
	return r.observe(plugin.HookLog)
}

func (r *recorder) OnError(context.Context, *plugin.Context) error {
	return r.observe(plugin.HookError)
}

func TestCallDispatchesInRegistrationOrder(t *testing.T) {
	var order []string
	mk := func(name string) plugin.Plugin {
		return &plugin.Func{
			PluginName: name,
			On:         plugin.HookBeforeJob,
			Fn: func(context.Context, *plugin.Context) error {
				order = append(order, name)
				return nil
			},
		}
	}

	m := plugin.NewManager()
	m.Register(mk("first"), mk("second"), mk("third"))

	m.Call(context.Background(), plugin.HookBeforeJob, &plugin.Context{JobName: "j"})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestCallIsolatesFailingPlugin(t *testing.T) {
	failing := &recorder{
		name: "failing",
		fail: map[plugin.Hook]error{plugin.HookAfterJob: errors.New("boom")},
	}
	healthy := &recorder{name: "healthy"}

	m := plugin.NewManager()
	m.Register(failing, healthy)

	m.Call(context.Background(), plugin.HookAfterJob, nil)

	assert.Equal(t, []plugin.Hook{plugin.HookAfterJob}, failing.calls)
	assert.Equal(t, []plugin.Hook{plugin.HookAfterJob}, healthy.calls,
		"a failing plugin must not stop later plugins")
}

func TestCallIsolatesPanickingPlugin(t *testing.T) {
	panicking := &recorder{
		name:  "panicking",
		panik: map[plugin.Hook]bool{plugin.HookBeforeDetect: true},
	}
	healthy := &recorder{name: "healthy"}

	m := plugin.NewManager()
	m.Register(panicking, healthy)

	require.NotPanics(t, func() {
		m.Call(context.Background(), plugin.HookBeforeDetect, nil)
	})
	assert.Len(t, healthy.calls, 1)
}

func TestCallLogsHookFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	m := plugin.NewManager(plugin.WithLogger(logger))
	m.Register(&recorder{
		name: "noisy",
		fail: map[plugin.Hook]error{plugin.HookLog: errors.New("log sink down")},
	})

	m.Call(context.Background(), plugin.HookLog, &plugin.Context{Message: "hi"})

	out := buf.String()
	assert.Contains(t, out, "plugin hook failed")
	assert.Contains(t, out, "noisy")
	assert.Contains(t, out, "log sink down")
}

func TestCallSetsHookOnContext(t *testing.T) {
	var seen plugin.Hook
	m := plugin.NewManager()
	m.Register(&plugin.Func{
		On: plugin.HookAfterDetect,
		Fn: func(_ context.Context, hc *plugin.Context) error {
			seen = hc.Hook
			return nil
		},
	})

	m.Call(context.Background(), plugin.HookAfterDetect, &plugin.Context{EventName: "e"})
	assert.Equal(t, plugin.HookAfterDetect, seen)
}

func TestNilManagerIsSafe(t *testing.T) {
	var m *plugin.Manager
	require.NotPanics(t, func() {
		m.Call(context.Background(), plugin.HookLog, nil)
		m.Register(&recorder{name: "r"})
		m.Reset()
	})
	assert.False(t, m.Initialized())
	assert.Zero(t, m.Len())
}

func TestReset(t *testing.T) {
	m := plugin.NewManager()
	m.Register(&recorder{name: "a"}, &recorder{name: "b"})
	require.True(t, m.Initialized())
	require.Equal(t, 2, m.Len())

	m.Reset()

	assert.False(t, m.Initialized())
	assert.Zero(t, m.Len())
}

func TestHookErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &plugin.PluginHookError{Plugin: "p", Hook: plugin.HookError, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "plugin p")
}
