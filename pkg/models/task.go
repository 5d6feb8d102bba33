package models

import "time"

// TaskType identifies the kind of change a task performs.
type TaskType string

const (
	// TaskTypeCreate produces a new artifact.
	TaskTypeCreate TaskType = "create"
	// TaskTypeUpdate modifies an existing artifact.
	TaskTypeUpdate TaskType = "update"
	// TaskTypeDelete removes an artifact.
	TaskTypeDelete TaskType = "delete"
	// TaskTypeOptimize rewrites an artifact without changing behavior.
	TaskTypeOptimize TaskType = "optimize"
	// TaskTypeFix repairs a defect in an artifact.
	TaskTypeFix TaskType = "fix"
	// TaskTypeValidate checks artifacts without mutating them.
	TaskTypeValidate TaskType = "validate"
)

// Valid returns true if the type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeCreate, TaskTypeUpdate, TaskTypeDelete, TaskTypeOptimize, TaskTypeFix, TaskTypeValidate:
		return true
	default:
		return false
	}
}

// Priority orders tasks in the scheduling queue.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank returns the scheduling rank of the priority. Lower ranks are served first.
// Unknown priorities rank after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is assigned to a worker.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the last execution attempt failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusBlocked indicates the task needs external intervention.
	TaskStatusBlocked TaskStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusBlocked
}

// Active reports whether the task still occupies the scheduler.
func (s TaskStatus) Active() bool {
	return s == TaskStatusPending || s == TaskStatusInProgress
}

// CanTransition returns true if moving from s to next keeps the lifecycle monotonic.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress || next == TaskStatusBlocked
	case TaskStatusInProgress:
		return next == TaskStatusCompleted || next == TaskStatusFailed || next == TaskStatusBlocked
	case TaskStatusFailed:
		return next == TaskStatusBlocked
	default:
		return false
	}
}

// RiskLevel is the three-tier risk classification shared by tasks,
// predictions and healing actions.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid returns true if the risk level is a known value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// Rank returns 0, 1 or 2 for low, medium and high. Unknown levels rank as high.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}

// AtMost reports whether r does not exceed limit.
func (r RiskLevel) AtMost(limit RiskLevel) bool {
	return r.Rank() <= limit.Rank()
}

// MaxRisk returns the highest of the given levels, or low when none are given.
func MaxRisk(levels ...RiskLevel) RiskLevel {
	out := RiskLow
	for _, l := range levels {
		if l.Rank() > out.Rank() {
			out = l
		}
	}
	return out
}

// TaskMetadata describes what a task touches and how hard it is.
type TaskMetadata struct {
	// Category groups tasks for prediction heuristics (e.g. "security").
	Category string `json:"category" yaml:"category"`
	// Difficulty is an estimate from 1 (trivial) to 10 (very hard).
	Difficulty int `json:"difficulty" yaml:"difficulty"`
	// Risk is the declared risk level of the change.
	Risk RiskLevel `json:"risk" yaml:"risk"`
	// Artifacts lists the artifacts (file paths) the task affects.
	Artifacts []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// ClampDifficulty bounds a difficulty to the 1..10 range.
func ClampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 10 {
		return 10
	}
	return d
}

// TaskResult is the payload a worker attaches to a finished task.
type TaskResult struct {
	// WorkerID is the execution worker that ran the task.
	WorkerID string `json:"worker_id"`
	// Artifacts maps artifact path to its content after execution.
	Artifacts map[string]string `json:"artifacts,omitempty"`
	// Output is a short human-readable summary.
	Output string `json:"output,omitempty"`
	// Elapsed is the execution time.
	Elapsed time.Duration `json:"elapsed"`
	// Applied is the number of healing actions a fix task applied.
	Applied int `json:"applied,omitempty"`
}

// Task represents a unit of schedulable work.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" yaml:"id"`
	// Type is the kind of change.
	Type TaskType `json:"type" yaml:"type"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Priority places the task in the queue.
	Priority Priority `json:"priority" yaml:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status"`
	// Dependencies lists task IDs that must complete before this task.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// Metadata holds category, difficulty, risk and affected artifacts.
	Metadata TaskMetadata `json:"metadata" yaml:"metadata"`
	// PlanID is the plan the task belongs to, if any.
	PlanID string `json:"plan_id,omitempty" yaml:"plan_id,omitempty"`
	// Phase is the plan phase the task belongs to, if any.
	Phase string `json:"phase,omitempty" yaml:"phase,omitempty"`
	// Healing holds approved healing actions. A fix task carrying them
	// applies these instead of its default repair.
	Healing []HealingAction `json:"healing,omitempty" yaml:"-"`
	// SimplifiedFrom is the ID of the failed task this one replaces.
	SimplifiedFrom string `json:"simplified_from,omitempty" yaml:"simplified_from,omitempty"`
	// AssignedTo is the ID of the worker executing the task.
	AssignedTo string `json:"assigned_to,omitempty" yaml:"-"`
	// Error contains the last failure message.
	Error string `json:"error,omitempty" yaml:"-"`
	// BlockedReason explains why the task was blocked.
	BlockedReason string `json:"blocked_reason,omitempty" yaml:"-"`
	// Result is set by the worker when the task completes.
	Result *TaskResult `json:"result,omitempty" yaml:"-"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// UpdatedAt is when the task last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
	// CompletedAt is when the task was completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"-"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.Metadata.Artifacts = append([]string(nil), t.Metadata.Artifacts...)
	if t.Healing != nil {
		c.Healing = make([]HealingAction, len(t.Healing))
		for i, a := range t.Healing {
			a.Changes = append([]LineChange(nil), a.Changes...)
			c.Healing[i] = a
		}
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.Result != nil {
		r := *t.Result
		if t.Result.Artifacts != nil {
			r.Artifacts = make(map[string]string, len(t.Result.Artifacts))
			for k, v := range t.Result.Artifacts {
				r.Artifacts[k] = v
			}
		}
		c.Result = &r
	}
	return &c
}
