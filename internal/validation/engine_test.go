package validation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func task(typ models.TaskType, artifacts ...string) *models.Task {
	return &models.Task{ID: "t1", Type: typ, Metadata: models.TaskMetadata{Artifacts: artifacts}}
}

func checksOf(r models.ValidationReport) map[string]int {
	out := map[string]int{}
	for _, is := range r.Issues {
		out[is.Check]++
	}
	return out
}

const cleanGo = `package foo

func Add(a, b int) int {
	return a + b
}
`

func TestValidate_Clean(t *testing.T) {
	e := NewEngine(DefaultConfig())
	r := e.Validate(task(models.TaskTypeUpdate, "pkg/foo.go", "pkg/foo_test.go"), cleanGo)

	if len(r.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", r.Issues)
	}
	if r.TotalChecks != 9 || r.PassedChecks != 9 {
		t.Errorf("checks = %d/%d, want 9/9", r.PassedChecks, r.TotalChecks)
	}
	if !r.Passed || r.Scores.Quality != 100 || r.Scores.TestCoverage != 100 {
		t.Errorf("unexpected scores: %+v passed=%v", r.Scores, r.Passed)
	}
	if r.TaskID != "t1" {
		t.Errorf("TaskID = %q", r.TaskID)
	}
}

func TestValidate_Findings(t *testing.T) {
	e := NewEngine(DefaultConfig())
	content := "x = 1   \nprint(\"debug\")\n# TODO: tidy\n"
	r := e.Validate(task(models.TaskTypeUpdate, "app/main.py"), content)

	got := checksOf(r)
	for _, name := range []string{CheckTrailingWhitespace, CheckDebugOutput, CheckTodoMarkers, CheckTestPresence} {
		if got[name] != 1 {
			t.Errorf("%s findings = %d, want 1", name, got[name])
		}
	}
	if r.PassedChecks != 5 {
		t.Errorf("PassedChecks = %d, want 5", r.PassedChecks)
	}
	// 0.5 + 6 + 1 + 1.5
	if r.Scores.Quality != 91 {
		t.Errorf("Quality = %v, want 91", r.Scores.Quality)
	}
	if r.Scores.Performance != 95 || r.Scores.TestCoverage != 0 || r.Scores.Maintainability != 96 {
		t.Errorf("unexpected scores: %+v", r.Scores)
	}
	if !r.Passed {
		t.Error("expected report to pass")
	}

	for _, is := range r.Issues {
		if is.Severity < 1 || is.Severity > 10 {
			t.Errorf("severity out of range: %+v", is)
		}
		switch is.Check {
		case CheckTrailingWhitespace, CheckDebugOutput:
			if !is.AutoFixable {
				t.Errorf("%s should be auto-fixable", is.Check)
			}
		case CheckTodoMarkers:
			if is.Line != 3 || is.Kind != models.IssueSuggestion {
				t.Errorf("unexpected todo issue %+v", is)
			}
		}
	}
}

func TestValidate_Empty(t *testing.T) {
	e := NewEngine(DefaultConfig())
	r := e.Validate(task(models.TaskTypeCreate, "docs/README.md"), "  \n")

	if checksOf(r)[CheckNonEmpty] != 1 {
		t.Fatalf("expected non-empty finding, got %+v", r.Issues)
	}
	if r.Passed || r.Scores.Quality != 0 {
		t.Errorf("empty artifact passed with %+v", r.Scores)
	}
}

func TestValidate_Checks(t *testing.T) {
	deep := "func f() {\n\tif a {\n\t\tif b {\n\t\t\tif c {\n\t\t\t\tif d {\n\t\t\t\t\tx()\n\t\t\t\t}\n\t\t\t}\n\t\t}\n\t}\n}\n"
	deepPy := "def f():\n    if a:\n        if b:\n            if c:\n                if d:\n                    x()\n"
	nested := "for i := range a {\n\tfor j := range b {\n\t\t_ = i + j\n\t}\n}\n"
	sequential := "for x in a:\n    pass\nfor y in b:\n    pass\n"

	tests := []struct {
		name    string
		content string
		check   string
		want    int
		line    int
	}{
		{"long line", strings.Repeat("a", 121) + "\n", CheckLineLength, 1, 1},
		{"line at limit", strings.Repeat("a", 120) + "\n", CheckLineLength, 0, 0},
		{"deep braces", deep, CheckNestingDepth, 1, 5},
		{"deep indentation", deepPy, CheckNestingDepth, 1, 6},
		{"nested loops", nested, CheckNestedLoops, 1, 2},
		{"sequential loops", sequential, CheckNestedLoops, 0, 0},
		{"oversized", strings.Repeat("x\n", 501), CheckFileSize, 1, 0},
		{"at size limit", strings.Repeat("x\n", 500), CheckFileSize, 0, 0},
		{"console log", "console.log(1)\n", CheckDebugOutput, 1, 1},
		{"fixme", "// FIXME later\n", CheckTodoMarkers, 1, 1},
	}

	e := NewEngine(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Validate(task(models.TaskTypeValidate, "src/x.go"), tt.content)
			var found []models.ValidationIssue
			for _, is := range r.Issues {
				if is.Check == tt.check {
					found = append(found, is)
				}
			}
			if len(found) != tt.want {
				t.Fatalf("%s findings = %d, want %d (%+v)", tt.check, len(found), tt.want, r.Issues)
			}
			if tt.want > 0 && found[0].Line != tt.line {
				t.Errorf("line = %d, want %d", found[0].Line, tt.line)
			}
		})
	}
}

func TestValidate_IssueCap(t *testing.T) {
	e := NewEngine(DefaultConfig())
	r := e.Validate(nil, strings.Repeat("x  \n", 50))
	if n := checksOf(r)[CheckTrailingWhitespace]; n != maxIssuesPerCheck {
		t.Errorf("findings = %d, want %d", n, maxIssuesPerCheck)
	}
}

func TestValidate_TestPresence(t *testing.T) {
	tests := []struct {
		name    string
		task    *models.Task
		content string
		want    bool
	}{
		{"source without tests", task(models.TaskTypeCreate, "src/app.js"), "let a = 1\n", true},
		{"test artifact", task(models.TaskTypeCreate, "src/app.js", "src/app.test.js"), "let a = 1\n", false},
		{"test in content", task(models.TaskTypeCreate, "src/app.py"), "def test_add():\n    pass\n", false},
		{"docs only", task(models.TaskTypeUpdate, "README.md"), "# hello\n", false},
		{"delete task", task(models.TaskTypeDelete, "src/app.go"), "x\n", false},
		{"no task", nil, "x\n", false},
	}
	e := NewEngine(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Validate(tt.task, tt.content)
			if got := checksOf(r)[CheckTestPresence] == 1; got != tt.want {
				t.Errorf("missing-tests finding = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	e := NewEngine(DefaultConfig())
	r := e.Validate(task(models.TaskTypeUpdate, "src/app.js"), strings.Repeat("console.log(1)\n", 10))
	if r.Passed {
		t.Fatalf("expected failure, quality %v", r.Scores.Quality)
	}

	err := e.Verify(r)
	var vf *ValidationFailure
	if !errors.As(err, &vf) {
		t.Fatalf("expected ValidationFailure, got %v", err)
	}
	if vf.TaskID != "t1" || vf.Threshold != DefaultQualityThreshold || vf.Quality >= vf.Threshold {
		t.Errorf("unexpected failure %+v", vf)
	}

	ok := e.Validate(task(models.TaskTypeUpdate, "pkg/foo.go", "pkg/foo_test.go"), cleanGo)
	if err := e.Verify(ok); err != nil {
		t.Errorf("Verify on passing report: %v", err)
	}

	s := e.Stats()
	if s.Validated != 2 || s.Failures != 1 {
		t.Errorf("stats = %+v", s)
	}
	if s.AverageQuality <= 0 || s.AverageQuality >= 100 {
		t.Errorf("AverageQuality = %v", s.AverageQuality)
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	cfg := NewEngine(Config{MaxLineLength: 80}).Config()
	if cfg.MaxLineLength != 80 || cfg.QualityThreshold != DefaultQualityThreshold || cfg.MaxLines != DefaultMaxLines {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestWorker_AnswersValidationRequests(t *testing.T) {
	out := bus.NewCollector()
	w := NewWorker("validation-1", NewEngine(DefaultConfig()), 4, out)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	req := models.ValidationRequest{Task: *task(models.TaskTypeUpdate, "pkg/foo.go", "pkg/foo_test.go"), Content: cleanGo}
	w.Post(models.NewMessage("orchestrator", "t1", req))

	if !out.WaitFor(2*time.Second, func(m []models.Message) bool { return len(m) > 0 }) {
		t.Fatal("no validation result received")
	}
	msg := out.OfType(models.MsgValidationResult)[0]
	if msg.TaskID != "t1" || msg.Sender != "validation-1" {
		t.Errorf("unexpected envelope %+v", msg)
	}
	if r := msg.Payload.(models.ValidationPayload).Report; !r.Passed {
		t.Errorf("expected passing report, got %+v", r)
	}
}
