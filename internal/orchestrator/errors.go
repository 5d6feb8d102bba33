package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned once the orchestrator has been stopped.
	ErrStopped = errors.New("orchestrator stopped")
	// ErrWorkerExists is returned when a worker registers twice.
	ErrWorkerExists = errors.New("worker already registered")
	// ErrWorkerNotFound is returned for operations on an unknown worker.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrPhaseStalled is returned when a phase settles without completing any task.
	ErrPhaseStalled = errors.New("phase cannot progress")
	// ErrNoWorkers is returned when queued tasks remain but no execution
	// worker is available to run them.
	ErrNoWorkers = errors.New("no execution worker available")
)

// SchedulingError reports a task or plan that cannot be scheduled: a
// dependency cycle, a reference to an unknown task, or a malformed task.
// It is returned synchronously and the offending work never enters the queue.
type SchedulingError struct {
	TaskID string
	Reason string
	Err    error
}

func (e *SchedulingError) Error() string {
	msg := "scheduling error"
	if e.TaskID != "" {
		msg += " for task " + e.TaskID
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// PhaseGateError reports a phase whose average validation quality fell
// below the plan's minimum.
type PhaseGateError struct {
	Phase      string
	Quality    float64
	MinQuality float64
}

func (e *PhaseGateError) Error() string {
	return fmt.Sprintf("phase %q failed quality gate: average quality %.1f below %.1f", e.Phase, e.Quality, e.MinQuality)
}
