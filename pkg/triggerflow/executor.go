package triggerflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/observability"
	"github.com/randalmurphal/triggerflow/pkg/triggerflow/plugin"
	"github.com/randalmurphal/triggerflow/pkg/triggerflow/tracking"
)

// scheduledJob is one handler-enqueued job waiting for an executor slot.
type scheduledJob[T any] struct {
	event string
	job   Job[T]
}

// runJobs executes the scheduled jobs with bounded concurrency and
// returns their executions in scheduling order. Each job runs under its
// own deadline; an exhausted budget fails that job with a TimeoutError
// while the rest keep running. Cancelling the parent context marks jobs
// that have not started as cancelled.
func (e *Engine[T]) runJobs(ctx context.Context, scheduled []scheduledJob[T], payload Payload[T], opts *Options) []JobExecution {
	if len(scheduled) == 0 {
		return nil
	}

	sem := make(chan struct{}, e.maxConcurrency)
	results := make([]JobExecution, len(scheduled))
	var wg sync.WaitGroup
	for i, sj := range scheduled {
		wg.Add(1)
		go func(slot int, sj scheduledJob[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[slot] = e.cancelledExecution(sj)
				return
			}
			if ctx.Err() != nil {
				results[slot] = e.cancelledExecution(sj)
				return
			}
			results[slot] = e.runJob(ctx, sj, payload, opts)
		}(i, sj)
	}
	wg.Wait()
	return results
}

// cancelledExecution settles a job that never started.
func (e *Engine[T]) cancelledExecution(sj scheduledJob[T]) JobExecution {
	exec := JobExecution{
		ID:     uuid.NewString(),
		Event:  sj.event,
		Name:   sj.job.Name,
		Status: StatusCancelled,
	}
	e.metrics.RecordJobExecution(context.Background(), sj.event, sj.job.Name, string(StatusCancelled), "", 0)
	observability.LogJobSettled(e.logger, sj.event, sj.job.Name, string(StatusCancelled), 0, nil)
	return exec
}

// runJob executes one job under its deadline and settles its execution.
func (e *Engine[T]) runJob(ctx context.Context, sj scheduledJob[T], payload Payload[T], opts *Options) JobExecution {
	jobExecutionID := uuid.NewString()
	exec := JobExecution{
		ID:    jobExecutionID,
		Event: sj.event,
		Name:  sj.job.Name,
	}

	token, err := tracking.ForJob(payload.Meta.TrackingToken, opts.Source, opts.CorrelationID, jobExecutionID)
	if err != nil {
		e.logger.Warn("tracking token unavailable for job",
			"event", sj.event, "job", sj.job.Name, "error", err.Error())
	}
	exec.TrackingToken = token

	timeout := opts.MaxJobExecutionTime
	if sj.job.Timeout > 0 {
		timeout = sj.job.Timeout
	}

	jobCtx, span := e.spans.StartJobSpan(ctx, sj.event, sj.job.Name, jobExecutionID)
	var cancel context.CancelFunc
	if timeout > 0 {
		jobCtx, cancel = context.WithTimeout(jobCtx, timeout)
	} else {
		jobCtx, cancel = context.WithCancel(jobCtx)
	}
	defer cancel()

	jobPayload := payload
	jobPayload.Meta.TrackingToken = token
	jobOpts := opts.narrowed(sj.event, sj.job.Name)

	e.plugins.Call(jobCtx, plugin.HookBeforeJob, &plugin.Context{
		EventName:     sj.event,
		JobName:       sj.job.Name,
		InvocationID:  opts.InvocationID,
		CorrelationID: opts.CorrelationID,
		Payload:       payload.Data,
		TrackingToken: token,
	})
	observability.LogJobStart(e.logger, sj.event, sj.job.Name, jobExecutionID)

	start := time.Now()
	type settled struct {
		result any
		err    error
	}
	done := make(chan settled, 1)
	go func() {
		result, err := callJob(jobCtx, sj.job, jobPayload, jobOpts)
		done <- settled{result: result, err: err}
	}()

	select {
	case s := <-done:
		exec.Duration = time.Since(start)
		if s.err != nil {
			exec.Status = StatusFailed
			exec.Err = &JobError{Event: sj.event, Job: sj.job.Name, JobExecutionID: jobExecutionID, Err: s.err}
		} else {
			exec.Status = StatusCompleted
			exec.Result = s.result
		}
	case <-jobCtx.Done():
		exec.Duration = time.Since(start)
		if ctx.Err() != nil {
			// Parent cancelled, not a per-job deadline.
			exec.Status = StatusCancelled
		} else {
			exec.Status = StatusFailed
			exec.Err = &TimeoutError{Event: sj.event, Job: sj.job.Name, JobExecutionID: jobExecutionID, Timeout: timeout}
		}
	}

	errorKind := ""
	if exec.Err != nil {
		errorKind = string(kindOf(exec.Err))
		e.plugins.Call(jobCtx, plugin.HookError, &plugin.Context{
			EventName:     sj.event,
			JobName:       sj.job.Name,
			InvocationID:  opts.InvocationID,
			CorrelationID: opts.CorrelationID,
			TrackingToken: token,
			Err:           exec.Err,
		})
	}
	e.metrics.RecordJobExecution(ctx, sj.event, sj.job.Name, string(exec.Status), errorKind, exec.Duration)
	e.plugins.Call(jobCtx, plugin.HookAfterJob, &plugin.Context{
		EventName:     sj.event,
		JobName:       sj.job.Name,
		InvocationID:  opts.InvocationID,
		CorrelationID: opts.CorrelationID,
		Payload:       payload.Data,
		TrackingToken: token,
		Err:           exec.Err,
	})
	observability.LogJobSettled(e.logger, sj.event, sj.job.Name, string(exec.Status),
		float64(exec.Duration.Milliseconds()), exec.Err)
	e.spans.EndSpanWithError(span, exec.Err)
	return exec
}

// callJob invokes the job function behind a panic boundary.
func callJob[T any](ctx context.Context, job Job[T], payload Payload[T], opts *Options) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	if job.Run == nil {
		return nil, fmt.Errorf("job %q has no run function", job.Name)
	}
	return job.Run(ctx, payload, opts)
}
