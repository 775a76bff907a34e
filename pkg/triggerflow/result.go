package triggerflow

import (
	"fmt"
	"time"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/report"
)

// Status is the terminal state of an invocation, event or job.
type Status string

const (
	// StatusCompleted means every fired unit succeeded.
	StatusCompleted Status = report.StatusCompleted
	// StatusPartial means some jobs succeeded and some failed.
	StatusPartial Status = report.StatusPartial
	// StatusFailed means every job that ran failed, or a detector or
	// handler errored.
	StatusFailed Status = report.StatusFailed
	// StatusCancelled means the job never started or was interrupted by
	// parent-context cancellation before its own timeout.
	StatusCancelled Status = report.StatusCancelled
)

// JobExecution is the settled outcome of one job.
type JobExecution struct {
	// ID is the job execution id, minted per execution.
	ID string
	// Event is the event whose handler enqueued the job.
	Event string
	// Name is the handler-declared job name.
	Name string
	// Status is StatusCompleted, StatusFailed or StatusCancelled.
	Status Status
	// Result holds the job's return value when it completed.
	Result any
	// Err is the JobError or TimeoutError for failed executions.
	Err error
	// TrackingToken is the lineage token stamped for this execution.
	TrackingToken string
	// Duration is wall-clock time from start to settlement.
	Duration time.Duration
}

// EventExecution is the outcome of one event within an invocation.
type EventExecution struct {
	Name     string
	Detected bool
	Status   Status
	// Err is the DetectionError or HandlerError, if any.
	Err error
	// JobCount is the number of jobs the handler enqueued.
	JobCount int
	Duration time.Duration
}

// Invocation is the aggregate result of one Invoke call.
type Invocation struct {
	// ID identifies this invocation.
	ID string
	// CorrelationID groups this invocation with its lineage.
	CorrelationID string
	// Source labels the invoking actor.
	Source string
	// Status aggregates the event and job outcomes.
	Status Status
	// StartedAt is when the invocation began.
	StartedAt time.Time
	// Duration is total wall-clock time.
	Duration time.Duration
	// Events lists every registered event in registration order.
	Events []EventExecution
	// Jobs lists job executions for detected events, grouped by event
	// in registration order.
	Jobs []JobExecution
}

// Detected returns the names of events that fired, in registration order.
func (inv *Invocation) Detected() []string {
	var names []string
	for _, ev := range inv.Events {
		if ev.Detected {
			names = append(names, ev.Name)
		}
	}
	return names
}

// Failed returns the job executions that did not complete.
func (inv *Invocation) Failed() []JobExecution {
	var failed []JobExecution
	for _, job := range inv.Jobs {
		if job.Status != StatusCompleted {
			failed = append(failed, job)
		}
	}
	return failed
}

// Record converts the invocation into its report form.
func (inv *Invocation) Record() *report.InvocationRecord {
	rec := &report.InvocationRecord{
		ID:            inv.ID,
		CorrelationID: inv.CorrelationID,
		Source:        inv.Source,
		Status:        string(inv.Status),
		StartedAt:     inv.StartedAt,
		DurationMs:    inv.Duration.Milliseconds(),
		Events:        make([]report.EventRecord, 0, len(inv.Events)),
		Jobs:          make([]report.JobRecord, 0, len(inv.Jobs)),
	}
	for _, ev := range inv.Events {
		if ev.Detected {
			rec.EventsDetectedCount++
		}
		er := report.EventRecord{
			Name:       ev.Name,
			Detected:   ev.Detected,
			Status:     string(ev.Status),
			DurationMs: ev.Duration.Milliseconds(),
			JobCount:   ev.JobCount,
		}
		if ev.Err != nil {
			er.ErrorMessage = ev.Err.Error()
		}
		rec.Events = append(rec.Events, er)
	}
	for _, job := range inv.Jobs {
		jr := report.JobRecord{
			ID:            job.ID,
			Event:         job.Event,
			Name:          job.Name,
			Status:        string(job.Status),
			DurationMs:    job.Duration.Milliseconds(),
			TrackingToken: job.TrackingToken,
		}
		if job.Result != nil {
			jr.Result = fmt.Sprintf("%v", job.Result)
		}
		if job.Err != nil {
			jr.ErrorKind = string(kindOf(job.Err))
			jr.ErrorMessage = job.Err.Error()
		}
		rec.Jobs = append(rec.Jobs, jr)
	}
	return rec
}
