package orchestrator

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func sampleAnalysis(path string) *models.ProjectAnalysis {
	return &models.ProjectAnalysis{
		Path:             path,
		MissingArtifacts: []string{"README.md", "tests", ".gitignore"},
		LargeFiles:       []models.FileInfo{{Path: "pkg/huge.go", Lines: 2600}, {Path: "pkg/big.go", Lines: 700}},
		Dependencies: []models.DependencyInfo{
			{Name: "a", Source: "go.mod"},
			{Name: "b", Source: "go.mod"},
		},
		AnalyzedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCreateRefactoringPlan(t *testing.T) {
	o := New()
	plan, err := o.CreateRefactoringPlan(sampleAnalysis(t.TempDir()))
	if err != nil {
		t.Fatalf("CreateRefactoringPlan() = %v", err)
	}

	var names []string
	for _, ph := range plan.Phases {
		names = append(names, ph.Name)
	}
	if want := []string{PhaseFoundation, PhaseStabilize, PhaseOptimize, PhaseVerify}; !slices.Equal(names, want) {
		t.Fatalf("phases = %v, want %v", names, want)
	}
	for i, ph := range plan.Phases {
		if i > 0 && !slices.Equal(ph.DependsOn, []string{plan.Phases[i-1].Name}) {
			t.Errorf("phase %s DependsOn = %v", ph.Name, ph.DependsOn)
		}
		if ph.EstimatedDuration <= 0 {
			t.Errorf("phase %s has no estimate", ph.Name)
		}
	}

	if plan.RiskLevel != models.RiskHigh {
		t.Errorf("RiskLevel = %s, want high for a 2600-line split", plan.RiskLevel)
	}
	if plan.Status != models.PlanDraft {
		t.Errorf("Status = %s, want draft", plan.Status)
	}
	if plan.TaskCount() != 3+2+1+1 {
		t.Errorf("TaskCount() = %d, want 7", plan.TaskCount())
	}
	if !strings.Contains(plan.Rollback, "README.md") {
		t.Errorf("Rollback = %q, want created files listed", plan.Rollback)
	}
	if plan.SuccessCriteria.MinQualityScore != 70 || plan.SuccessCriteria.MinCompletionRatio != 0.8 {
		t.Errorf("SuccessCriteria = %+v", plan.SuccessCriteria)
	}

	split := plan.Phases[1].Tasks[0]
	if split.Metadata.Difficulty != 10 || len(split.Dependencies) != 1 || !strings.HasSuffix(split.Dependencies[0], "-tests") {
		t.Errorf("split task = %+v", split)
	}
	verify := plan.Phases[3].Tasks[0]
	if verify.Type != models.TaskTypeValidate || len(verify.Dependencies) != 6 {
		t.Errorf("verify task = type %s, %d deps", verify.Type, len(verify.Dependencies))
	}
}

func TestPlanDeterministic(t *testing.T) {
	dir := t.TempDir()
	p := NewPlanner()
	a, err := p.Plan(sampleAnalysis(dir))
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Plan(sampleAnalysis(dir))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Errorf("plan IDs differ: %s vs %s", a.ID, b.ID)
	}
	ta, tb := a.AllTasks(), b.AllTasks()
	for i := range ta {
		if ta[i].ID != tb[i].ID {
			t.Errorf("task %d IDs differ: %s vs %s", i, ta[i].ID, tb[i].ID)
		}
	}

	other := sampleAnalysis(dir)
	other.AnalyzedAt = other.AnalyzedAt.Add(time.Second)
	c, err := p.Plan(other)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == a.ID {
		t.Error("a new analysis produced the same plan ID")
	}
}

func TestPlanMinimal(t *testing.T) {
	p := NewPlanner()
	plan, err := p.Plan(&models.ProjectAnalysis{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Phases) != 1 || plan.Phases[0].Name != PhaseVerify || len(plan.Phases[0].DependsOn) != 0 {
		t.Fatalf("phases = %+v, want verify only", plan.Phases)
	}
	if plan.RiskLevel != models.RiskLow {
		t.Errorf("RiskLevel = %s, want low", plan.RiskLevel)
	}

	var se *SchedulingError
	if _, err := p.Plan(nil); !errors.As(err, &se) {
		t.Errorf("Plan(nil) = %v, want *SchedulingError", err)
	}
}

func TestPlanProtectedRaisesRisk(t *testing.T) {
	a := &models.ProjectAnalysis{
		Path:           t.TempDir(),
		LargeFiles:     []models.FileInfo{{Path: "internal/auth/login.go", Lines: 800}},
		ProtectedFiles: []string{"internal/auth/login.go"},
	}
	plan, err := NewPlanner().Plan(a)
	if err != nil {
		t.Fatal(err)
	}
	if got := plan.Phases[0].Tasks[0].Metadata.Risk; got != models.RiskHigh {
		t.Errorf("protected split risk = %s, want high", got)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"pkg/huge.go":      "pkg-huge-go",
		"requirements.txt": "requirements-txt",
		"/A//B/":           "a-b",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
