// Package report defines the boundary to the observability collaborator.
//
// The engine produces one InvocationRecord per top-level invocation and
// hands it to a Sink. What happens next (persistence, querying, dashboards)
// belongs to the collaborator; this package only ships a small in-memory
// sink for tests and a SQLite reference sink for single-process use.
package report

import (
	"errors"
	"time"
)

// Statuses shared by invocation, event and job records.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// JobRecord is the reported outcome of one job execution.
type JobRecord struct {
	// ID is the job execution id, unique per execution.
	ID string `json:"id"`
	// Event is the detected event whose handler enqueued this job.
	Event string `json:"event"`
	// Name is the handler-declared job name.
	Name string `json:"name"`
	// Status is completed, failed or cancelled.
	Status string `json:"status"`
	// DurationMs is wall-clock time from start to settlement.
	DurationMs int64 `json:"duration_ms"`
	// Result holds the stringified job result for completed jobs.
	Result string `json:"result,omitempty"`
	// ErrorKind distinguishes JobError from TimeoutError for failed jobs.
	ErrorKind string `json:"error_kind,omitempty"`
	// ErrorMessage is the failure message for failed jobs.
	ErrorMessage string `json:"error_message,omitempty"`
	// TrackingToken is the lineage token stamped on this execution.
	TrackingToken string `json:"tracking_token"`
}

// EventRecord is the reported outcome of one event within an invocation.
type EventRecord struct {
	Name       string `json:"name"`
	Detected   bool   `json:"detected"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	// ErrorMessage is set when the detector or handler failed.
	ErrorMessage string `json:"error_message,omitempty"`
	// JobCount is the number of jobs the handler enqueued.
	JobCount int `json:"job_count"`
}

// InvocationRecord aggregates one top-level invocation.
type InvocationRecord struct {
	ID                  string        `json:"id"`
	CorrelationID       string        `json:"correlation_id"`
	Source              string        `json:"source"`
	Status              string        `json:"status"`
	StartedAt           time.Time     `json:"started_at"`
	DurationMs          int64         `json:"duration_ms"`
	EventsDetectedCount int           `json:"events_detected_count"`
	Events              []EventRecord `json:"events"`
	Jobs                []JobRecord   `json:"jobs"`
}

// Sink consumes invocation records. Implementations must be safe for
// concurrent use; the engine calls Record after every invocation.
type Sink interface {
	// Record stores one invocation record.
	Record(record *InvocationRecord) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for sink operations.
var (
	// ErrNotFound indicates no record exists for the requested id.
	ErrNotFound = errors.New("invocation record not found")

	// ErrSinkClosed indicates the sink has been closed.
	ErrSinkClosed = errors.New("report sink closed")
)
