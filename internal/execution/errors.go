package execution

import (
	"fmt"
	"time"
)

// CapacityError is returned when a worker is asked to accept more
// concurrent tasks than its configured limit. The caller should re-queue.
type CapacityError struct {
	WorkerID string
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("worker %s at capacity (%d tasks)", e.WorkerID, e.Capacity)
}

// TaskExecutionError is returned when a handler fails or times out.
type TaskExecutionError struct {
	TaskID   string
	WorkerID string
	Elapsed  time.Duration
	TimedOut bool
	Err      error
}

func (e *TaskExecutionError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("task %s timed out on %s after %s: %v", e.TaskID, e.WorkerID, e.Elapsed.Round(time.Millisecond), e.Err)
	}
	return fmt.Sprintf("task %s failed on %s: %v", e.TaskID, e.WorkerID, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}
