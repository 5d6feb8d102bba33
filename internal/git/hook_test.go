package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	iexec "github.com/Camier/2SEARX2COOL-sub001/internal/exec"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// newTestRepo initializes an empty repository with a fixed identity.
func newTestRepo(t *testing.T) (string, *ExecRunner) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	r := NewRunner(dir, iexec.NewRunner(iexec.WithEnv(
		"GIT_AUTHOR_NAME=autopilot", "GIT_AUTHOR_EMAIL=autopilot@example.com",
		"GIT_COMMITTER_NAME=autopilot", "GIT_COMMITTER_EMAIL=autopilot@example.com",
		"GIT_CONFIG_NOSYSTEM=1", "HOME="+dir,
	)))
	if _, err := r.Run(context.Background(), "init", "-q"); err != nil {
		t.Fatalf("git init failed: %v", err)
	}
	return dir, r
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testPlan() (*models.Plan, *models.Phase) {
	phase := &models.Phase{
		Name:        "foundation",
		Description: "Add missing project files",
		Tasks:       []*models.Task{{ID: "p-readme", Title: "Add README.md"}},
	}
	return &models.Plan{ID: "plan-1", Name: "Refactor demo", Phases: []*models.Phase{phase}}, phase
}

func TestCommitter_CommitsPhase(t *testing.T) {
	dir, r := newTestRepo(t)
	ctx := context.Background()
	writeFile(t, dir, "README.md", "# demo\n")
	writeFile(t, dir, ".autopilot/state.db", "binary")

	plan, phase := testPlan()
	if err := NewCommitter(r).AfterPhase(ctx, plan, phase); err != nil {
		t.Fatalf("AfterPhase failed: %v", err)
	}

	files, err := r.Run(ctx, "show", "--name-only", "--format=", "HEAD")
	if err != nil {
		t.Fatalf("git show failed: %v", err)
	}
	if files != "README.md" {
		t.Errorf("committed files = %q, want only README.md", files)
	}

	subject, err := r.Run(ctx, "log", "-1", "--format=%s")
	if err != nil {
		t.Fatal(err)
	}
	if subject != "autopilot: Refactor demo, phase foundation" {
		t.Errorf("subject = %q", subject)
	}
}

func TestCommitter_NothingToCommit(t *testing.T) {
	dir, r := newTestRepo(t)
	ctx := context.Background()
	plan, phase := testPlan()

	// Clean tree.
	if err := NewCommitter(r).AfterPhase(ctx, plan, phase); err != nil {
		t.Fatalf("AfterPhase on clean tree failed: %v", err)
	}

	// Only state changes.
	writeFile(t, dir, ".autopilot/state.db", "binary")
	if err := NewCommitter(r).AfterPhase(ctx, plan, phase); err != nil {
		t.Fatalf("AfterPhase with only state changes failed: %v", err)
	}
	if _, err := r.HeadCommit(ctx); err == nil {
		t.Error("expected no commit to exist")
	}
}

func TestCommitter_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a\n")
	plan, phase := testPlan()
	r := NewRunner(dir, iexec.NewRunner(iexec.WithEnv("GIT_CEILING_DIRECTORIES="+filepath.Dir(dir))))
	if err := NewCommitter(r).AfterPhase(context.Background(), plan, phase); err != nil {
		t.Errorf("AfterPhase outside a repository = %v, want nil", err)
	}
}

func TestCommitMessage(t *testing.T) {
	plan, phase := testPlan()
	msg := CommitMessage(plan, phase)
	for _, want := range []string{
		"autopilot: Refactor demo, phase foundation",
		"Add missing project files",
		"- p-readme: Add README.md",
		"Plan: plan-1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
