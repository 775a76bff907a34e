package triggerflow

import (
	"context"
	"time"
)

// Detector decides whether an event condition holds for a payload.
// Detectors must be pure with respect to the payload: they may read it
// but never mutate it.
type Detector[T any] func(ctx context.Context, payload Payload[T], opts *Options) (bool, error)

// JobFunc performs one unit of asynchronous work for a detected event.
// The returned value is recorded verbatim on the job execution.
type JobFunc[T any] func(ctx context.Context, payload Payload[T], opts *Options) (any, error)

// Job pairs a named JobFunc with optional per-job settings.
type Job[T any] struct {
	// Name identifies the job within its event. Required.
	Name string

	// Run is the work to perform. Required.
	Run JobFunc[T]

	// Timeout overrides the invocation-wide job budget when positive.
	Timeout time.Duration
}

// Handler maps a detected event to the jobs that should run for it.
// A handler error aborts the event's jobs but not the invocation.
type Handler[T any] func(ctx context.Context, payload Payload[T], opts *Options) ([]Job[T], error)

// Module bundles an event's detector with its handler. Registered
// modules are evaluated in registration order on every invocation.
type Module[T any] struct {
	// Name is the event name. Required, unique per registry.
	Name string

	// Detect reports whether the event fires for a payload. Required.
	Detect Detector[T]

	// Handle resolves the jobs to run when the event fires. Optional;
	// a detected event with no handler records zero jobs.
	Handle Handler[T]
}

func (m Module[T]) validate() error {
	if m.Name == "" || m.Detect == nil {
		return ErrInvalidModule
	}
	return nil
}

// StaticJobs builds a Handler that always returns the same jobs,
// for events whose work does not depend on the payload.
func StaticJobs[T any](jobs ...Job[T]) Handler[T] {
	return func(context.Context, Payload[T], *Options) ([]Job[T], error) {
		return jobs, nil
	}
}
