package triggerflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/observability"
	"github.com/randalmurphal/triggerflow/pkg/triggerflow/plugin"
)

// detection is one detector's settled verdict.
type detection struct {
	event    string
	detected bool
	err      error // *DetectionError when the detector failed or panicked
	duration time.Duration
}

// detectAll runs every module's detector concurrently and assembles the
// verdicts in registration order. A failing detector yields a
// not-detected verdict with its error attached; it never aborts the
// other detectors or the invocation.
func (e *Engine[T]) detectAll(ctx context.Context, modules []Module[T], payload Payload[T], opts *Options) []detection {
	if e.detectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.detectionTimeout)
		defer cancel()
	}

	results := make([]detection, len(modules))
	var wg sync.WaitGroup
	for i, m := range modules {
		wg.Add(1)
		go func(slot int, m Module[T]) {
			defer wg.Done()
			results[slot] = e.runDetector(ctx, m, payload, opts)
		}(i, m)
	}
	wg.Wait()
	return results
}

func (e *Engine[T]) runDetector(ctx context.Context, m Module[T], payload Payload[T], opts *Options) detection {
	ctx, span := e.spans.StartDetectSpan(ctx, m.Name)
	start := time.Now()

	e.plugins.Call(ctx, plugin.HookBeforeDetect, &plugin.Context{
		EventName:     m.Name,
		InvocationID:  opts.InvocationID,
		CorrelationID: opts.CorrelationID,
		Payload:       payload.Data,
		TrackingToken: payload.Meta.TrackingToken,
	})

	detected, err := callDetector(ctx, m, payload, opts.narrowed(m.Name, ""))
	d := detection{
		event:    m.Name,
		detected: detected && err == nil,
		duration: time.Since(start),
	}
	if err != nil {
		d.err = &DetectionError{Event: m.Name, Err: err}
		observability.LogDetectionError(e.logger, m.Name, err)
		e.plugins.Call(ctx, plugin.HookError, &plugin.Context{
			EventName:     m.Name,
			InvocationID:  opts.InvocationID,
			CorrelationID: opts.CorrelationID,
			Err:           d.err,
		})
	} else {
		observability.LogDetection(e.logger, m.Name, d.detected, float64(d.duration.Milliseconds()))
	}

	e.metrics.RecordDetection(ctx, m.Name, d.detected, d.duration, d.err)
	e.plugins.Call(ctx, plugin.HookAfterDetect, &plugin.Context{
		EventName:     m.Name,
		InvocationID:  opts.InvocationID,
		CorrelationID: opts.CorrelationID,
		Payload:       payload.Data,
		Detected:      d.detected,
		TrackingToken: payload.Meta.TrackingToken,
		Err:           d.err,
	})
	e.spans.EndSpanWithError(span, d.err)
	return d
}

// callDetector invokes the detector behind a panic boundary so a
// misbehaving module cannot take down the detection loop.
func callDetector[T any](ctx context.Context, m Module[T], payload Payload[T], opts *Options) (detected bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			detected = false
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return m.Detect(ctx, payload, opts)
}

// resolveJobs asks a detected event's handler for its jobs, behind the
// same panic boundary as detectors.
func (e *Engine[T]) resolveJobs(ctx context.Context, m Module[T], payload Payload[T], opts *Options) ([]Job[T], error) {
	if m.Handle == nil {
		return nil, nil
	}
	jobs, err := callHandler(ctx, m, payload, opts.narrowed(m.Name, ""))
	if err != nil {
		herr := &HandlerError{Event: m.Name, Err: err}
		observability.LogHandlerError(e.logger, m.Name, err)
		e.plugins.Call(ctx, plugin.HookError, &plugin.Context{
			EventName:     m.Name,
			InvocationID:  opts.InvocationID,
			CorrelationID: opts.CorrelationID,
			Err:           herr,
		})
		return nil, herr
	}
	return jobs, nil
}

func callHandler[T any](ctx context.Context, m Module[T], payload Payload[T], opts *Options) (jobs []Job[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			jobs = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return m.Handle(ctx, payload, opts)
}
