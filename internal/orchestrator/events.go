package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventTaskQueued indicates a task entered the scheduling queue.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a task was assigned to a worker.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates an execution attempt failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSimplified indicates a simplified clone replaced a failed task.
	EventTaskSimplified EventType = "task_simplified"
	// EventTaskBlocked indicates a task is blocked and cannot proceed.
	EventTaskBlocked EventType = "task_blocked"
	// EventValidation indicates a validation report arrived.
	EventValidation EventType = "validation"
	// EventHealing indicates healing suggestions arrived.
	EventHealing EventType = "healing"
	// EventWorkerRegistered indicates a worker announced itself.
	EventWorkerRegistered EventType = "worker_registered"
	// EventPhaseStarted indicates a plan phase started.
	EventPhaseStarted EventType = "phase_started"
	// EventPhaseCompleted indicates every task of a phase settled.
	EventPhaseCompleted EventType = "phase_completed"
	// EventPlanCompleted indicates a plan finished.
	EventPlanCompleted EventType = "plan_completed"
	// EventPlanCancelled indicates a plan was cancelled.
	EventPlanCancelled EventType = "plan_cancelled"
	// EventPaused and EventResumed track Pause and Resume.
	EventPaused  EventType = "paused"
	EventResumed EventType = "resumed"
)

// Event represents an event emitted by the orchestrator.
// These events are used to update the TUI and track progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is the title of the related task, if applicable.
	TaskTitle string
	// WorkerID is the ID of the related worker, if applicable.
	WorkerID string
	// PlanID and Phase locate plan events.
	PlanID string
	Phase  string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time, for completion events.
	Duration time.Duration
}
