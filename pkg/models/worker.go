package models

import "time"

// WorkerRole is the function a worker performs in the system.
type WorkerRole string

const (
	RoleOrchestrator WorkerRole = "orchestrator"
	RolePrediction   WorkerRole = "prediction"
	RoleValidation   WorkerRole = "validation"
	RoleHealing      WorkerRole = "healing"
	RoleExecution    WorkerRole = "execution"
)

// Valid returns true if the role is a known value.
func (r WorkerRole) Valid() bool {
	switch r {
	case RoleOrchestrator, RolePrediction, RoleValidation, RoleHealing, RoleExecution:
		return true
	default:
		return false
	}
}

// WorkerState represents the current state of a worker.
type WorkerState string

const (
	// WorkerIdle indicates the worker has no active tasks.
	WorkerIdle WorkerState = "idle"
	// WorkerBusy indicates the worker is running at least one task.
	WorkerBusy WorkerState = "busy"
	// WorkerError indicates the worker hit an unrecoverable error.
	WorkerError WorkerState = "error"
	// WorkerOffline indicates the worker has stopped.
	WorkerOffline WorkerState = "offline"
)

// Valid returns true if the state is a known value.
func (s WorkerState) Valid() bool {
	switch s {
	case WorkerIdle, WorkerBusy, WorkerError, WorkerOffline:
		return true
	default:
		return false
	}
}

// Available reports whether a worker in this state may accept work.
func (s WorkerState) Available() bool {
	return s == WorkerIdle || s == WorkerBusy
}

// Performance holds rolling statistics for a worker.
type Performance struct {
	// AverageTaskTime is the mean execution time of finished tasks.
	AverageTaskTime time.Duration `json:"average_task_time"`
	// SuccessRate is completed / finished, in [0,1].
	SuccessRate float64 `json:"success_rate"`
	// ErrorRate is failed / finished, in [0,1].
	ErrorRate float64 `json:"error_rate"`
}

// WorkerStatus is the live descriptor of one worker instance.
// It is owned by the worker it describes; everyone else holds copies.
type WorkerStatus struct {
	ID    string      `json:"id"`
	Role  WorkerRole  `json:"role"`
	State WorkerState `json:"state"`
	// CurrentTasks lists the IDs of tasks the worker is running.
	CurrentTasks []string `json:"current_tasks,omitempty"`
	// Capacity is the maximum number of concurrent tasks.
	Capacity    int         `json:"capacity"`
	Completed   int         `json:"completed"`
	Failed      int         `json:"failed"`
	Performance Performance `json:"performance"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Record folds one finished task into the counters and rolling performance.
func (w *WorkerStatus) Record(success bool, elapsed time.Duration) {
	finished := w.Completed + w.Failed
	total := time.Duration(finished)*w.Performance.AverageTaskTime + elapsed
	if success {
		w.Completed++
	} else {
		w.Failed++
	}
	finished++
	w.Performance.AverageTaskTime = total / time.Duration(finished)
	w.Performance.SuccessRate = float64(w.Completed) / float64(finished)
	w.Performance.ErrorRate = float64(w.Failed) / float64(finished)
}

// Copy returns a copy that shares no slices with w.
func (w WorkerStatus) Copy() WorkerStatus {
	w.CurrentTasks = append([]string(nil), w.CurrentTasks...)
	return w
}
