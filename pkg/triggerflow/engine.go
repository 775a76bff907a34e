package triggerflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/config"
	"github.com/randalmurphal/triggerflow/pkg/triggerflow/observability"
	"github.com/randalmurphal/triggerflow/pkg/triggerflow/plugin"
	"github.com/randalmurphal/triggerflow/pkg/triggerflow/report"
	"github.com/randalmurphal/triggerflow/pkg/triggerflow/tracking"
)

// Engine evaluates registered event modules against payloads and runs
// the jobs of detected events with bounded concurrency. An Engine is
// safe for concurrent Invoke calls.
type Engine[T any] struct {
	registry *Registry[T]
	plugins  *plugin.Manager
	logger   *slog.Logger
	scoped   *observability.ScopedLogger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	sink     report.Sink

	source           string
	maxConcurrency   int
	defaultTimeout   time.Duration
	detectionTimeout time.Duration
}

// EngineOption configures an Engine at construction.
type EngineOption[T any] func(*Engine[T]) error

// WithConfig applies a full configuration. A non-empty ReportDSN opens a
// SQLite report sink at that path.
func WithConfig[T any](cfg config.Config) EngineOption[T] {
	return func(e *Engine[T]) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Source != "" {
			e.source = cfg.Source
		}
		if cfg.MaxConcurrentJobs > 0 {
			e.maxConcurrency = cfg.MaxConcurrentJobs
		}
		if cfg.DefaultJobTimeout > 0 {
			e.defaultTimeout = cfg.DefaultJobTimeout
		}
		if cfg.DetectionTimeout > 0 {
			e.detectionTimeout = cfg.DetectionTimeout
		}
		if cfg.AllowOverride {
			e.registry = NewRegistry[T](true)
		}
		if cfg.Metrics {
			e.metrics = observability.NewMetricsRecorder()
		}
		if cfg.Tracing {
			e.spans = observability.NewSpanManager()
		}
		if cfg.ReportDSN != "" {
			sink, err := report.NewSQLiteSink(cfg.ReportDSN)
			if err != nil {
				return fmt.Errorf("open report sink: %w", err)
			}
			e.sink = sink
		}
		return nil
	}
}

// WithLogger sets the engine's structured logger.
func WithLogger[T any](logger *slog.Logger) EngineOption[T] {
	return func(e *Engine[T]) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// WithPlugins registers lifecycle plugins.
func WithPlugins[T any](plugins ...plugin.Plugin) EngineOption[T] {
	return func(e *Engine[T]) error {
		e.plugins.Register(plugins...)
		return nil
	}
}

// WithSink sets the report sink that receives invocation records.
func WithSink[T any](sink report.Sink) EngineOption[T] {
	return func(e *Engine[T]) error {
		e.sink = sink
		return nil
	}
}

// WithMetricsRecorder overrides the metrics recorder.
func WithMetricsRecorder[T any](m observability.MetricsRecorder) EngineOption[T] {
	return func(e *Engine[T]) error {
		if m != nil {
			e.metrics = m
		}
		return nil
	}
}

// WithSpanManager overrides the span manager.
func WithSpanManager[T any](s observability.SpanManager) EngineOption[T] {
	return func(e *Engine[T]) error {
		if s != nil {
			e.spans = s
		}
		return nil
	}
}

// WithMaxConcurrency bounds simultaneous job executions.
func WithMaxConcurrency[T any](n int) EngineOption[T] {
	return func(e *Engine[T]) error {
		if n < 1 {
			return fmt.Errorf("max concurrency must be positive, got %d", n)
		}
		e.maxConcurrency = n
		return nil
	}
}

// WithDefaultJobTimeout sets the per-job budget used when neither the
// invocation nor the job overrides it.
func WithDefaultJobTimeout[T any](d time.Duration) EngineOption[T] {
	return func(e *Engine[T]) error {
		if d > 0 {
			e.defaultTimeout = d
		}
		return nil
	}
}

// WithDetectionTimeout bounds the concurrent detection phase.
func WithDetectionTimeout[T any](d time.Duration) EngineOption[T] {
	return func(e *Engine[T]) error {
		if d > 0 {
			e.detectionTimeout = d
		}
		return nil
	}
}

// WithDefaultSource sets the fallback tracking-token source label.
func WithDefaultSource[T any](source string) EngineOption[T] {
	return func(e *Engine[T]) error {
		if source != "" {
			e.source = source
		}
		return nil
	}
}

// WithAllowOverride lets duplicate registrations replace modules.
func WithAllowOverride[T any]() EngineOption[T] {
	return func(e *Engine[T]) error {
		e.registry = NewRegistry[T](true)
		return nil
	}
}

// New creates an Engine from the default configuration plus options.
func New[T any](opts ...EngineOption[T]) (*Engine[T], error) {
	def := config.Default()
	e := &Engine[T]{
		registry:       NewRegistry[T](false),
		plugins:        plugin.NewManager(),
		logger:         slog.Default(),
		metrics:        observability.NoopMetrics{},
		spans:          observability.NoopSpanManager{},
		source:         def.Source,
		maxConcurrency: def.MaxConcurrentJobs,
		defaultTimeout: def.DefaultJobTimeout,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.scoped = observability.NewScopedLogger(e.logger, e.plugins)
	return e, nil
}

// Register adds event modules to the engine's registry.
func (e *Engine[T]) Register(modules ...Module[T]) error {
	return e.registry.RegisterAll(modules...)
}

// Registry returns the engine's module registry for direct manipulation.
func (e *Engine[T]) Registry() *Registry[T] {
	return e.registry
}

// Plugins returns the engine's plugin manager.
func (e *Engine[T]) Plugins() *plugin.Manager {
	return e.plugins
}

// Close releases the report sink, if any.
func (e *Engine[T]) Close() error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Close()
}

// DetectAll runs only the detection phase and returns each event's
// verdict keyed by name. Detector failures count as not detected.
func (e *Engine[T]) DetectAll(ctx context.Context, payload Payload[T], invokeOpts ...InvokeOption) (map[string]bool, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	opts, err := e.buildOptions(payload, invokeOpts)
	if err != nil {
		return nil, err
	}
	results := e.detectAll(ctx, e.registry.snapshot(), payload, opts)
	verdicts := make(map[string]bool, len(results))
	for _, d := range results {
		verdicts[d.event] = d.detected
	}
	return verdicts, nil
}

// Invoke evaluates every registered module against the payload and runs
// the jobs of detected events. It returns a non-nil Invocation unless
// the payload or options fail normalization; unit failures are reported
// through the Invocation, never as an Invoke error.
func (e *Engine[T]) Invoke(ctx context.Context, payload Payload[T], invokeOpts ...InvokeOption) (*Invocation, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	opts, err := e.buildOptions(payload, invokeOpts)
	if err != nil {
		return nil, err
	}

	modules := e.registry.snapshot()
	inv := &Invocation{
		ID:            opts.InvocationID,
		CorrelationID: opts.CorrelationID,
		Source:        opts.Source,
		StartedAt:     time.Now(),
	}

	ctx, span := e.spans.StartInvocationSpan(ctx, opts.InvocationID, opts.CorrelationID)
	observability.LogInvocationStart(e.logger, opts.InvocationID, opts.CorrelationID, len(modules))

	detections := e.detectAll(ctx, modules, payload, opts)

	var scheduled []scheduledJob[T]
	inv.Events = make([]EventExecution, len(detections))
	jobRanges := make([][2]int, len(detections))
	for i, d := range detections {
		ev := EventExecution{
			Name:     d.event,
			Detected: d.detected,
			Err:      d.err,
			Duration: d.duration,
			Status:   StatusCompleted,
		}
		if d.err != nil {
			ev.Status = StatusFailed
		}
		jobRanges[i] = [2]int{len(scheduled), len(scheduled)}
		if d.detected {
			jobs, herr := e.resolveJobs(ctx, modules[i], payload, opts)
			if herr != nil {
				ev.Status = StatusFailed
				ev.Err = herr
			} else {
				ev.JobCount = len(jobs)
				for _, job := range jobs {
					scheduled = append(scheduled, scheduledJob[T]{event: d.event, job: job})
				}
				jobRanges[i][1] = len(scheduled)
			}
		}
		inv.Events[i] = ev
	}

	inv.Jobs = e.runJobs(ctx, scheduled, payload, opts)

	// A fired event with failing jobs is itself partial or failed.
	for i := range inv.Events {
		lo, hi := jobRanges[i][0], jobRanges[i][1]
		if hi <= lo || inv.Events[i].Status == StatusFailed {
			continue
		}
		inv.Events[i].Status = aggregateStatus(inv.Jobs[lo:hi])
	}

	inv.Duration = time.Since(inv.StartedAt)
	inv.Status = e.invocationStatus(ctx, inv)

	detected := len(inv.Detected())
	e.metrics.RecordInvocation(ctx, string(inv.Status), detected, inv.Duration)
	observability.LogInvocationComplete(e.logger, inv.ID, string(inv.Status),
		float64(inv.Duration.Milliseconds()), detected, len(inv.Jobs))
	e.spans.EndSpanWithError(span, nil)

	if e.sink != nil {
		if err := e.sink.Record(inv.Record()); err != nil {
			e.logger.Warn("report sink rejected invocation record",
				"invocation_id", inv.ID, "error", err.Error())
		}
	}
	return inv, nil
}

// buildOptions normalizes the invocation options. The correlation id
// comes from the caller, else the payload's tracking token, else a
// freshly minted UUID. Caller-supplied ids must be UUIDs.
func (e *Engine[T]) buildOptions(payload Payload[T], invokeOpts []InvokeOption) (*Options, error) {
	opts := &Options{
		InvocationID:        uuid.NewString(),
		Source:              e.source,
		MaxJobExecutionTime: e.defaultTimeout,
	}
	if payload.Meta.Source != "" {
		opts.Source = payload.Meta.Source
	}
	for _, opt := range invokeOpts {
		opt(opts)
	}

	switch {
	case opts.CorrelationID != "":
		if uuid.Validate(opts.CorrelationID) != nil || len(opts.CorrelationID) != 36 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCorrelationID, opts.CorrelationID)
		}
	default:
		if c := tracking.Parse(payload.Meta.TrackingToken); c != nil {
			opts.CorrelationID = c.CorrelationID
		} else {
			opts.CorrelationID = uuid.NewString()
		}
	}

	if opts.Logger == nil {
		opts.Logger = e.scoped
	}
	opts.Logger = opts.Logger.WithInvocation(opts.InvocationID, opts.CorrelationID)
	return opts, nil
}

// invocationStatus aggregates unit outcomes into the terminal status.
func (e *Engine[T]) invocationStatus(ctx context.Context, inv *Invocation) Status {
	if ctx.Err() != nil {
		return StatusCancelled
	}
	var ok, failed int
	for _, ev := range inv.Events {
		if ev.Err != nil {
			failed++
		}
	}
	for _, job := range inv.Jobs {
		switch job.Status {
		case StatusCompleted:
			ok++
		default:
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusCompleted
	case ok > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// aggregateStatus folds job statuses into an event status.
func aggregateStatus(jobs []JobExecution) Status {
	var ok, bad int
	for _, job := range jobs {
		if job.Status == StatusCompleted {
			ok++
		} else {
			bad++
		}
	}
	switch {
	case bad == 0:
		return StatusCompleted
	case ok > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}
