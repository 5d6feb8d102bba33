package orchestrator

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// Phase names, in execution order.
const (
	PhaseFoundation = "foundation"
	PhaseStabilize  = "stabilize"
	PhaseOptimize   = "optimize"
	PhaseVerify     = "verify"
)

const (
	defaultMinQuality    = 70
	defaultMinCompletion = 0.8
	// effortPerDifficulty is the estimated effort of one difficulty point.
	effortPerDifficulty = 5 * time.Minute
	// hugeFileLines marks a large file whose split is high risk.
	hugeFileLines = 2000
)

// Planner turns a project analysis into a phased plan. The same analysis
// always yields the same plan, IDs included.
type Planner struct {
	MinQualityScore    float64
	MinCompletionRatio float64
	now                func() time.Time
}

// NewPlanner creates a planner with the default success criteria.
func NewPlanner() *Planner {
	return &Planner{
		MinQualityScore:    defaultMinQuality,
		MinCompletionRatio: defaultMinCompletion,
		now:                time.Now,
	}
}

// CreateRefactoringPlan decomposes an analysis into the foundation,
// stabilize, optimize and verify phases and validates the result. A plan
// whose tasks do not form an acyclic graph is rejected with a
// SchedulingError.
func (o *Orchestrator) CreateRefactoringPlan(analysis *models.ProjectAnalysis) (*models.Plan, error) {
	plan, err := o.planner.Plan(analysis)
	if err != nil {
		return nil, err
	}
	if err := o.ValidatePlan(plan); err != nil {
		return nil, err
	}
	o.logger.Log("CreateRefactoringPlan(%s): %d phases, %d tasks, risk %s", plan.ID, len(plan.Phases), plan.TaskCount(), plan.RiskLevel)
	return plan, nil
}

// Plan builds the plan for analysis. Phases without tasks are left out.
func (p *Planner) Plan(analysis *models.ProjectAnalysis) (*models.Plan, error) {
	if analysis == nil {
		return nil, &SchedulingError{Reason: "nil project analysis"}
	}

	seed := analysis.Path + "@" + analysis.AnalyzedAt.UTC().Format(time.RFC3339Nano)
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
	b := &planBuilder{prefix: id[:8], protected: make(map[string]bool, len(analysis.ProtectedFiles))}
	for _, f := range analysis.ProtectedFiles {
		b.protected[f] = true
	}

	foundation := b.foundation(analysis)
	stabilize := b.stabilize(analysis, foundation)
	optimize := b.optimize(analysis, foundation)
	verify := b.verify(analysis, slices.Concat(foundation, stabilize, optimize))

	plan := &models.Plan{
		ID:          id,
		Name:        "Refactor " + filepath.Base(analysis.Path),
		ProjectPath: analysis.Path,
		Status:      models.PlanDraft,
		CreatedAt:   p.now(),
	}
	var prev string
	var risks []models.RiskLevel
	for _, ph := range []*models.Phase{
		{Name: PhaseFoundation, Description: "Add missing project artifacts", Tasks: foundation},
		{Name: PhaseStabilize, Description: "Split oversized files", Tasks: stabilize},
		{Name: PhaseOptimize, Description: "Tidy manifests and dependencies", Tasks: optimize},
		{Name: PhaseVerify, Description: "Run the project's checks", Tasks: verify},
	} {
		if len(ph.Tasks) == 0 {
			continue
		}
		if prev != "" {
			ph.DependsOn = []string{prev}
		}
		for _, t := range ph.Tasks {
			ph.EstimatedDuration += time.Duration(t.Metadata.Difficulty) * effortPerDifficulty
			risks = append(risks, t.Metadata.Risk)
		}
		plan.Phases = append(plan.Phases, ph)
		prev = ph.Name
	}

	plan.RiskLevel = models.MaxRisk(risks...)
	plan.Rollback = rollback(plan, foundation)
	plan.SuccessCriteria = models.SuccessCriteria{
		Goals:              goals(analysis),
		MinQualityScore:    p.MinQualityScore,
		MinCompletionRatio: p.MinCompletionRatio,
	}
	return plan, nil
}

type planBuilder struct {
	prefix    string
	protected map[string]bool
}

func (b *planBuilder) task(slug string, typ models.TaskType, title, category string, difficulty int, risk models.RiskLevel, artifacts ...string) *models.Task {
	for _, a := range artifacts {
		if b.protected[a] {
			risk = models.RiskHigh
		}
	}
	return &models.Task{
		ID:       b.prefix + "-" + slug,
		Type:     typ,
		Title:    title,
		Priority: models.PriorityMedium,
		Status:   models.TaskStatusPending,
		Metadata: models.TaskMetadata{
			Category:   category,
			Difficulty: models.ClampDifficulty(difficulty),
			Risk:       risk,
			Artifacts:  artifacts,
		},
	}
}

func (b *planBuilder) foundation(a *models.ProjectAnalysis) []*models.Task {
	var out []*models.Task
	for _, missing := range a.MissingArtifacts {
		var t *models.Task
		switch missing {
		case "README.md":
			t = b.task("readme", models.TaskTypeCreate, "Add README", "documentation", 2, models.RiskLow, "README.md")
			t.Priority = models.PriorityHigh
		case "LICENSE":
			t = b.task("license", models.TaskTypeCreate, "Add LICENSE", "documentation", 1, models.RiskLow, "LICENSE")
			t.Priority = models.PriorityLow
		case ".gitignore":
			t = b.task("gitignore", models.TaskTypeCreate, "Add .gitignore", "configuration", 1, models.RiskLow, ".gitignore")
		case "tests":
			info := GetProjectTypeInfo(a.Path)
			t = b.task("tests", models.TaskTypeCreate, "Add a first test", "testing", 4, models.RiskMedium, info.TestArtifact)
			t.Priority = models.PriorityHigh
		case "ci":
			t = b.task("ci", models.TaskTypeCreate, "Add CI workflow", "infrastructure", 3, models.RiskMedium, ".github/workflows/ci.yml")
		default:
			continue
		}
		t.Description = "Missing " + missing
		out = append(out, t)
	}
	return out
}

// stabilize splits large files, after the first test exists when one is added.
func (b *planBuilder) stabilize(a *models.ProjectAnalysis, foundation []*models.Task) []*models.Task {
	deps := idsWhere(foundation, func(t *models.Task) bool { return t.Metadata.Category == "testing" })
	var out []*models.Task
	for _, f := range a.LargeFiles {
		risk := models.RiskMedium
		if f.Lines > hugeFileLines {
			risk = models.RiskHigh
		}
		t := b.task("split-"+slug(f.Path), models.TaskTypeUpdate, "Split "+f.Path, "refactoring", 5+f.Lines/largeFileLines, risk, f.Path)
		t.Description = fmt.Sprintf("%s has %d lines", f.Path, f.Lines)
		t.Dependencies = deps
		out = append(out, t)
	}
	return out
}

func (b *planBuilder) optimize(a *models.ProjectAnalysis, foundation []*models.Task) []*models.Task {
	deps := idsWhere(foundation, func(t *models.Task) bool { return t.Metadata.Category == "configuration" })
	count := make(map[string]int)
	var sources []string
	for _, d := range a.Dependencies {
		if count[d.Source] == 0 {
			sources = append(sources, d.Source)
		}
		count[d.Source]++
	}
	var out []*models.Task
	for _, src := range sources {
		n := count[src]
		risk := models.RiskMedium
		if n > manyDependencies {
			risk = models.RiskHigh
		}
		t := b.task("deps-"+slug(src), models.TaskTypeOptimize, "Tidy "+src, "dependencies", 3+n/20, risk, src)
		t.Description = fmt.Sprintf("%d dependencies declared in %s", n, src)
		t.Priority = models.PriorityLow
		t.Dependencies = deps
		out = append(out, t)
	}
	return out
}

// verify runs the project's checks once everything else is done.
func (b *planBuilder) verify(a *models.ProjectAnalysis, before []*models.Task) []*models.Task {
	t := b.task("verify", models.TaskTypeValidate, "Run project checks", "testing", 3, models.RiskLow)
	if cmd := GetProjectTypeInfo(a.Path).TestCommandLine(); cmd != "" {
		t.Description = "Runs " + cmd
	}
	t.Priority = models.PriorityHigh
	t.Dependencies = idsWhere(before, func(*models.Task) bool { return true })
	return []*models.Task{t}
}

func idsWhere(tasks []*models.Task, keep func(*models.Task) bool) []string {
	var out []string
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t.ID)
		}
	}
	return out
}

// slug turns a path into an ID fragment.
func slug(p string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(p) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

func goals(a *models.ProjectAnalysis) []string {
	var out []string
	if len(a.MissingArtifacts) > 0 {
		out = append(out, "add "+strings.Join(a.MissingArtifacts, ", "))
	}
	if len(a.LargeFiles) > 0 {
		out = append(out, fmt.Sprintf("no file over %d lines", largeFileLines))
	}
	return append(out, "project checks pass")
}

func rollback(plan *models.Plan, foundation []*models.Task) string {
	var sb strings.Builder
	sb.WriteString("Revert the per-phase commits in reverse order (")
	names := make([]string, 0, len(plan.Phases))
	for i := len(plan.Phases) - 1; i >= 0; i-- {
		names = append(names, plan.Phases[i].Name)
	}
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(").")
	var created []string
	for _, t := range foundation {
		created = append(created, t.Metadata.Artifacts...)
	}
	if len(created) > 0 {
		sb.WriteString(" Without commits, delete the created files: ")
		sb.WriteString(strings.Join(created, ", "))
		sb.WriteString(".")
	}
	return sb.String()
}
