package models

import "time"

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	PlanDraft      PlanStatus = "draft"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
	PlanCancelled  PlanStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanInProgress, PlanCompleted, PlanCancelled:
		return true
	default:
		return false
	}
}

// Phase is a dependency-ordered batch of tasks that must fully settle
// before the next phase begins.
type Phase struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Tasks       []*Task `json:"tasks" yaml:"tasks"`
	// DependsOn lists the names of phases that must settle first.
	DependsOn         []string      `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration" yaml:"estimated_duration"`
}

// SuccessCriteria describes when a plan counts as successful.
type SuccessCriteria struct {
	// Goals are human-readable outcomes.
	Goals []string `json:"goals,omitempty" yaml:"goals,omitempty"`
	// MinQualityScore is the average validation quality a phase must reach
	// when phase gating is enabled.
	MinQualityScore float64 `json:"min_quality_score" yaml:"min_quality_score"`
	// MinCompletionRatio is the share of tasks that must complete.
	MinCompletionRatio float64 `json:"min_completion_ratio" yaml:"min_completion_ratio"`
}

// Plan is an ordered list of phases produced from a project analysis.
// Only Status changes once execution starts.
type Plan struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	ProjectPath     string          `json:"project_path" yaml:"project_path"`
	Phases          []*Phase        `json:"phases" yaml:"phases"`
	RiskLevel       RiskLevel       `json:"risk_level" yaml:"risk_level"`
	SuccessCriteria SuccessCriteria `json:"success_criteria" yaml:"success_criteria"`
	Rollback        string          `json:"rollback" yaml:"rollback"`
	Status          PlanStatus      `json:"status" yaml:"status"`
	CreatedAt       time.Time       `json:"created_at" yaml:"created_at"`
}

// AllTasks returns every task of the plan in phase order.
func (p *Plan) AllTasks() []*Task {
	var out []*Task
	for _, ph := range p.Phases {
		out = append(out, ph.Tasks...)
	}
	return out
}

// TaskCount returns the number of tasks across all phases.
func (p *Plan) TaskCount() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Tasks)
	}
	return n
}

// DependencyInfo is one entry of a project's dependency inventory.
type DependencyInfo struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// Source is the manifest the dependency was read from (e.g. "go.mod").
	Source string `json:"source" yaml:"source"`
	Dev    bool   `json:"dev,omitempty" yaml:"dev,omitempty"`
}

// FileInfo describes one notable file found during analysis.
type FileInfo struct {
	Path  string `json:"path" yaml:"path"`
	Lines int    `json:"lines" yaml:"lines"`
}

// Recommendations groups suggested work by urgency.
type Recommendations struct {
	Immediate []string `json:"immediate,omitempty" yaml:"immediate,omitempty"`
	ShortTerm []string `json:"short_term,omitempty" yaml:"short_term,omitempty"`
	LongTerm  []string `json:"long_term,omitempty" yaml:"long_term,omitempty"`
}

// ProjectAnalysis is the structural snapshot plans are built from.
type ProjectAnalysis struct {
	Path string `json:"path" yaml:"path"`
	// ProjectType is the detected primary language, e.g. "go" or "node".
	ProjectType string         `json:"project_type" yaml:"project_type"`
	TotalFiles  int            `json:"total_files" yaml:"total_files"`
	FilesByType map[string]int `json:"files_by_type" yaml:"files_by_type"`
	TestFiles   int            `json:"test_files" yaml:"test_files"`
	// Dependencies is the inventory read from known manifests.
	Dependencies []DependencyInfo `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// MissingArtifacts lists expected artifacts that were not found.
	MissingArtifacts []string `json:"missing_artifacts,omitempty" yaml:"missing_artifacts,omitempty"`
	// CompletionRatio is the share of expected artifacts present, in [0,1].
	CompletionRatio float64  `json:"completion_ratio" yaml:"completion_ratio"`
	RiskFactors     []string `json:"risk_factors,omitempty" yaml:"risk_factors,omitempty"`
	// ProtectedFiles lists files in protected areas, relative to Path.
	ProtectedFiles  []string        `json:"protected_files,omitempty" yaml:"protected_files,omitempty"`
	LargeFiles      []FileInfo      `json:"large_files,omitempty" yaml:"large_files,omitempty"`
	Recommendations Recommendations `json:"recommendations" yaml:"recommendations"`
	AnalyzedAt      time.Time       `json:"analyzed_at" yaml:"analyzed_at"`
}
