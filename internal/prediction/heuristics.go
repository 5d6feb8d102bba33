package prediction

import (
	"fmt"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// categoryProfile holds the static knowledge about one task category.
type categoryProfile struct {
	issues      []string
	factors     []string
	mitigations []string
	// weight is the category's contribution to the risk score.
	weight int
	// impact is added to the task type's base impact.
	impact models.ImpactEstimate
	advice string
}

var profiles = map[string]categoryProfile{
	"hardware": {
		issues:      []string{"cross-platform compatibility", "driver or device availability differs between hosts"},
		factors:     []string{"platform-specific behavior"},
		mitigations: []string{"hide platform access behind an interface", "test on every target platform"},
		weight:      2,
		impact:      models.ImpactEstimate{Reliability: -10},
		advice:      "isolate platform-specific code behind an abstraction layer",
	},
	"security": {
		issues:      []string{"sensitive data exposure", "authentication or authorization bypass"},
		factors:     []string{"touches security boundaries"},
		mitigations: []string{"review against a security checklist", "add negative tests for access control"},
		weight:      2,
		impact:      models.ImpactEstimate{Reliability: 20},
		advice:      "review the change against a security checklist before merging",
	},
	"database": {
		issues:      []string{"data loss during migration", "lock contention on large tables"},
		factors:     []string{"mutates persistent data"},
		mitigations: []string{"take a backup before migrating", "make migrations reversible"},
		weight:      2,
		impact:      models.ImpactEstimate{Reliability: 10},
		advice:      "ship the schema change as a reversible migration",
	},
	"performance": {
		issues:      []string{"regression on hot paths", "increased memory use"},
		factors:     []string{"changes runtime characteristics"},
		mitigations: []string{"benchmark before and after"},
		weight:      1,
		impact:      models.ImpactEstimate{Performance: 30},
		advice:      "measure before and after with a benchmark",
	},
	"api": {
		issues:      []string{"breaking change for existing consumers"},
		factors:     []string{"public interface change"},
		mitigations: []string{"version the interface", "keep the old entry point during a deprecation window"},
		weight:      1,
		impact:      models.ImpactEstimate{Maintainability: 10},
		advice:      "keep the change backward compatible or version it",
	},
	"dependencies": {
		issues:      []string{"version conflicts between transitive dependencies"},
		factors:     []string{"third-party code change"},
		mitigations: []string{"pin versions", "run the full test suite after upgrading"},
		weight:      1,
		impact:      models.ImpactEstimate{Reliability: 5},
		advice:      "upgrade one dependency at a time",
	},
	"refactoring": {
		issues:      []string{"unintended behavior change"},
		factors:     []string{"broad structural change"},
		mitigations: []string{"cover the code with tests before restructuring"},
		weight:      1,
		impact:      models.ImpactEstimate{Maintainability: 25},
		advice:      "refactor in small behavior-preserving steps",
	},
	"testing": {
		issues:      []string{"flaky tests"},
		mitigations: []string{"avoid sleeps and shared global state in tests"},
		impact:      models.ImpactEstimate{Reliability: 15},
		advice:      "write deterministic table-driven tests",
	},
	"documentation": {
		issues: []string{"documentation drifting from the code"},
		impact: models.ImpactEstimate{Maintainability: 15},
		advice: "keep examples executable where possible",
	},
}

// unknownProfile is used for categories without static knowledge.
var unknownProfile = categoryProfile{
	issues:      []string{"unfamiliar category: behavior is hard to anticipate"},
	factors:     []string{"no prior knowledge of this category"},
	mitigations: []string{"start with a small proof of concept"},
	weight:      1,
}

func profileFor(category string) (categoryProfile, bool) {
	p, ok := profiles[category]
	if !ok {
		return unknownProfile, false
	}
	return p, true
}

// baseImpact is the impact of each task type at maximum difficulty.
var baseImpact = map[models.TaskType]models.ImpactEstimate{
	models.TaskTypeCreate:   {Performance: 0, Maintainability: 20, Reliability: 10},
	models.TaskTypeUpdate:   {Performance: 0, Maintainability: 10, Reliability: 5},
	models.TaskTypeDelete:   {Performance: 5, Maintainability: 15, Reliability: -10},
	models.TaskTypeOptimize: {Performance: 40, Maintainability: 10, Reliability: 0},
	models.TaskTypeFix:      {Performance: 0, Maintainability: 10, Reliability: 40},
	models.TaskTypeValidate: {Performance: 0, Maintainability: 5, Reliability: 20},
}

var approaches = map[models.TaskType]string{
	models.TaskTypeCreate:   "Scaffold %s incrementally and add tests alongside",
	models.TaskTypeUpdate:   "Change %s in place, keeping existing behavior covered by tests",
	models.TaskTypeDelete:   "Confirm nothing references %s before removing it",
	models.TaskTypeOptimize: "Profile %s first and optimize only the measured hot spots",
	models.TaskTypeFix:      "Reproduce the defect in %s with a failing test, then fix it",
	models.TaskTypeValidate: "Run the quality checks against %s and record the findings",
}

func suggestApproach(task *models.Task, p categoryProfile) string {
	target := "the affected artifacts"
	if len(task.Metadata.Artifacts) == 1 {
		target = task.Metadata.Artifacts[0]
	}
	tmpl, ok := approaches[task.Type]
	if !ok {
		tmpl = "Work on %s in small verifiable steps"
	}
	out := fmt.Sprintf(tmpl, target)
	if p.advice != "" {
		out += "; " + p.advice
	}
	return out
}

func clampImpact(v int) int {
	if v < -100 {
		return -100
	}
	if v > 100 {
		return 100
	}
	return v
}

// estimateImpact scales the type and category impact by difficulty/10.
func estimateImpact(task *models.Task, p categoryProfile) models.ImpactEstimate {
	base := baseImpact[task.Type]
	d := models.ClampDifficulty(task.Metadata.Difficulty)
	scale := func(a, b int) int { return clampImpact((a + b) * d / 10) }
	return models.ImpactEstimate{
		Performance:     scale(base.Performance, p.impact.Performance),
		Maintainability: scale(base.Maintainability, p.impact.Maintainability),
		Reliability:     scale(base.Reliability, p.impact.Reliability),
	}
}

// assessRisk combines the category weight with difficulty and dependency
// count. The result never falls below the task's declared risk.
func assessRisk(task *models.Task, p categoryProfile) models.RiskAssessment {
	d := models.ClampDifficulty(task.Metadata.Difficulty)
	deps := len(task.Dependencies)

	score := p.weight
	factors := append([]string(nil), p.factors...)
	mitigations := append([]string(nil), p.mitigations...)

	switch {
	case d > 7:
		score += 2
		factors = append(factors, fmt.Sprintf("high difficulty (%d/10)", d))
		mitigations = append(mitigations, "split the work into smaller tasks")
	case d > 4:
		score++
		factors = append(factors, fmt.Sprintf("moderate difficulty (%d/10)", d))
	}
	if deps > 3 {
		score++
		factors = append(factors, fmt.Sprintf("many dependencies (%d)", deps))
		mitigations = append(mitigations, "verify upstream tasks before starting")
	}

	level := models.RiskLow
	switch {
	case score >= 4:
		level = models.RiskHigh
	case score >= 2:
		level = models.RiskMedium
	}
	if task.Metadata.Risk.Valid() {
		level = models.MaxRisk(level, task.Metadata.Risk)
	}

	return models.RiskAssessment{Level: level, Factors: factors, Mitigations: mitigations}
}

func potentialIssues(task *models.Task, p categoryProfile) []string {
	issues := append([]string(nil), p.issues...)
	if models.ClampDifficulty(task.Metadata.Difficulty) > 7 {
		issues = append(issues, "complexity may exceed what a single change can safely deliver")
	}
	if n := len(task.Dependencies); n > 3 {
		issues = append(issues, fmt.Sprintf("coordination across %d upstream tasks", n))
	}
	if task.Type == models.TaskTypeDelete {
		issues = append(issues, "dangling references to removed artifacts")
	}
	return issues
}

// Confidence bounds.
const (
	baseConfidence = 70
	minConfidence  = 20
	maxConfidence  = 100
)

// confidence starts at 70 and is adjusted by learned data, difficulty,
// risk and dependency count, then clamped to [20,100].
func confidence(task *models.Task, learned bool, risk models.RiskLevel) int {
	c := baseConfidence
	if learned {
		c += 15
	}
	switch d := models.ClampDifficulty(task.Metadata.Difficulty); {
	case d > 7:
		c -= 15
	case d <= 3:
		c += 10
	}
	switch risk {
	case models.RiskHigh:
		c -= 10
	case models.RiskLow:
		c += 5
	}
	if len(task.Dependencies) > 3 {
		c -= 10
	}
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
