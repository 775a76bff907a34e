// Package triggerflow provides event detection and asynchronous job
// execution for arbitrary payloads.
package triggerflow

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies unit failures in invocation reports. The kinds keep
// timeouts distinguishable from ordinary failures for metrics and alerting.
type ErrorKind string

const (
	// KindDetection marks a detector failure. Non-fatal; the event is
	// recorded as not detected.
	KindDetection ErrorKind = "DetectionError"

	// KindHandler marks a handler failure. Fatal to that event's jobs only.
	KindHandler ErrorKind = "HandlerError"

	// KindJob marks a job body failure.
	KindJob ErrorKind = "JobError"

	// KindTimeout marks a job that exceeded its wall-clock budget.
	KindTimeout ErrorKind = "TimeoutError"
)

// Sentinel errors for registration and invocation.
var (
	// ErrDuplicateEvent indicates a second registration under an existing
	// event name without override enabled.
	ErrDuplicateEvent = errors.New("duplicate event name")

	// ErrInvalidModule indicates a module with an empty name or a nil
	// detector or handler.
	ErrInvalidModule = errors.New("invalid event module")

	// ErrNilContext indicates Invoke was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidCorrelationID indicates a caller-supplied correlation id
	// that is not a UUID. Surfaced as a normalization failure.
	ErrInvalidCorrelationID = errors.New("correlation id is not a UUID")
)

// DetectionError wraps a detector failure with event context.
type DetectionError struct {
	// Event is the registered event whose detector failed.
	Event string
	// Err is the returned error, or the recovered panic wrapped as an error.
	Err error
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	return fmt.Sprintf("detect %s: %v", e.Event, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DetectionError) Unwrap() error { return e.Err }

// Kind returns KindDetection.
func (e *DetectionError) Kind() ErrorKind { return KindDetection }

// HandlerError wraps a handler failure with event context.
// The event's jobs are never scheduled; sibling events are unaffected.
type HandlerError struct {
	Event string
	Err   error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handle %s: %v", e.Event, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HandlerError) Unwrap() error { return e.Err }

// Kind returns KindHandler.
func (e *HandlerError) Kind() ErrorKind { return KindHandler }

// JobError wraps a job body failure.
type JobError struct {
	// Event is the detected event whose handler enqueued the job.
	Event string
	// Job is the handler-declared job name.
	Job string
	// JobExecutionID identifies the failed execution.
	JobExecutionID string
	// Err is the returned error, or the recovered panic wrapped as an error.
	Err error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return fmt.Sprintf("job %s/%s (%s): %v", e.Event, e.Job, e.JobExecutionID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *JobError) Unwrap() error { return e.Err }

// Kind returns KindJob.
func (e *JobError) Kind() ErrorKind { return KindJob }

// TimeoutError marks a job that exceeded its wall-clock budget. The job
// body is abandoned cooperatively; its late result is discarded.
type TimeoutError struct {
	Event          string
	Job            string
	JobExecutionID string
	// Timeout is the budget the job exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s/%s (%s): timed out after %s", e.Event, e.Job, e.JobExecutionID, e.Timeout)
}

// Kind returns KindTimeout.
func (e *TimeoutError) Kind() ErrorKind { return KindTimeout }

// kindOf extracts the report kind from a unit error.
func kindOf(err error) ErrorKind {
	var det *DetectionError
	if errors.As(err, &det) {
		return KindDetection
	}
	var han *HandlerError
	if errors.As(err, &han) {
		return KindHandler
	}
	var tim *TimeoutError
	if errors.As(err, &tim) {
		return KindTimeout
	}
	return KindJob
}
