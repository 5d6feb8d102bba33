package models

import "time"

// RiskAssessment explains a predicted risk level.
type RiskAssessment struct {
	Level       RiskLevel `json:"level"`
	Factors     []string  `json:"factors,omitempty"`
	Mitigations []string  `json:"mitigations,omitempty"`
}

// ImpactEstimate is the expected effect of a task; each axis is in [-100,100].
type ImpactEstimate struct {
	Performance     int `json:"performance"`
	Maintainability int `json:"maintainability"`
	Reliability     int `json:"reliability"`
}

// PredictionResult is the look-ahead analysis of one task.
type PredictionResult struct {
	TaskID            string         `json:"task_id"`
	PotentialIssues   []string       `json:"potential_issues,omitempty"`
	SuggestedApproach string         `json:"suggested_approach"`
	Risk              RiskAssessment `json:"risk"`
	Impact            ImpactEstimate `json:"impact"`
	// Confidence is in [20,100].
	Confidence int       `json:"confidence"`
	ComputedAt time.Time `json:"computed_at"`
}

// HealingActionType classifies a proposed fix.
type HealingActionType string

const (
	HealingAutoFix    HealingActionType = "auto_fix"
	HealingSuggestion HealingActionType = "suggestion"
	HealingRefactor   HealingActionType = "refactor"
	HealingOptimize   HealingActionType = "optimize"
)

// LineChange is one line-level edit inside a healing action.
type LineChange struct {
	// Line is the 1-based line number the change applies to.
	Line      int    `json:"line"`
	Old       string `json:"old"`
	New       string `json:"new"`
	// Delete removes the line instead of replacing it.
	Delete    bool   `json:"delete,omitempty"`
	Rationale string `json:"rationale"`
}

// HealingAction is a candidate fix. It is a proposal only and never
// mutates source by itself.
type HealingAction struct {
	ID      string            `json:"id"`
	Type    HealingActionType `json:"type"`
	Rule    string            `json:"rule"`
	Changes []LineChange      `json:"changes"`
	// Confidence is in [0,100].
	Confidence     int       `json:"confidence"`
	Impact         RiskLevel `json:"impact"`
	Risk           RiskLevel `json:"risk"`
	AutoApplicable bool      `json:"auto_applicable"`
	Applied        bool      `json:"applied"`
}

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueError      IssueKind = "error"
	IssueWarning    IssueKind = "warning"
	IssueSuggestion IssueKind = "suggestion"
)

// ValidationIssue is one finding of the validation engine.
type ValidationIssue struct {
	Kind IssueKind `json:"kind"`
	// Severity is in [1,10].
	Severity    int    `json:"severity"`
	Check       string `json:"check"`
	Line        int    `json:"line,omitempty"`
	Message     string `json:"message"`
	AutoFixable bool   `json:"auto_fixable"`
}

// QualityScores are aggregate validation scores, each in [0,100].
type QualityScores struct {
	Quality         float64 `json:"quality"`
	Maintainability float64 `json:"maintainability"`
	TestCoverage    float64 `json:"test_coverage"`
	Performance     float64 `json:"performance"`
}

// ValidationReport is the validation engine's verdict on a task's artifacts.
type ValidationReport struct {
	TaskID       string            `json:"task_id"`
	Issues       []ValidationIssue `json:"issues,omitempty"`
	Scores       QualityScores     `json:"scores"`
	PassedChecks int               `json:"passed_checks"`
	TotalChecks  int               `json:"total_checks"`
	// Passed is true when quality reached the configured threshold.
	Passed      bool      `json:"passed"`
	ValidatedAt time.Time `json:"validated_at"`
}

// CodebaseHealth summarizes what validation and prediction have observed.
type CodebaseHealth struct {
	AverageQuality     float64 `json:"average_quality"`
	ValidatedTasks     int     `json:"validated_tasks"`
	ValidationFailures int     `json:"validation_failures"`
	OpenIssues         int     `json:"open_issues"`
	HighRiskTasks      int     `json:"high_risk_tasks"`
	AppliedFixes       int     `json:"applied_fixes"`
}

// SystemMetrics is the observability snapshot of the orchestrator.
type SystemMetrics struct {
	TotalTasks      int            `json:"total_tasks"`
	PendingTasks    int            `json:"pending_tasks"`
	InProgressTasks int            `json:"in_progress_tasks"`
	CompletedTasks  int            `json:"completed_tasks"`
	FailedTasks     int            `json:"failed_tasks"`
	BlockedTasks    int            `json:"blocked_tasks"`
	Workers         []WorkerStatus `json:"workers"`
	TasksPerMinute  float64        `json:"tasks_per_minute"`
	SuccessRate     float64        `json:"success_rate"`
	ErrorRate       float64        `json:"error_rate"`
	HealingRate     float64        `json:"healing_rate"`
	Health          CodebaseHealth `json:"codebase_health"`
	Uptime          time.Duration  `json:"uptime"`
}

// HealthReport is the result of a system health check.
type HealthReport struct {
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues,omitempty"`
}
