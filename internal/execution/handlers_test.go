package execution

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func artifactTask(typ models.TaskType, paths ...string) *models.Task {
	return &models.Task{
		ID:       "t",
		Type:     typ,
		Title:    "Do thing",
		Metadata: models.TaskMetadata{Artifacts: paths},
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name    string
		typ     models.TaskType
		seed    map[string]string
		path    string
		wantErr bool
		check   func(t *testing.T, store *MemoryStore)
	}{
		{
			name: "create go file",
			typ:  models.TaskTypeCreate,
			path: "pkg/util/util.go",
			check: func(t *testing.T, s *MemoryStore) {
				got, _ := s.Read("pkg/util/util.go")
				if !strings.HasPrefix(got, "package util\n") {
					t.Errorf("unexpected scaffold: %q", got)
				}
			},
		},
		{
			name:    "create existing fails",
			typ:     models.TaskTypeCreate,
			seed:    map[string]string{"a.py": "x = 1\n"},
			path:    "a.py",
			wantErr: true,
		},
		{
			name: "update appends comment",
			typ:  models.TaskTypeUpdate,
			seed: map[string]string{"a.py": "x = 1"},
			path: "a.py",
			check: func(t *testing.T, s *MemoryStore) {
				got, _ := s.Read("a.py")
				if got != "x = 1\n# updated: Do thing\n" {
					t.Errorf("unexpected content: %q", got)
				}
			},
		},
		{
			name:    "update missing fails",
			typ:     models.TaskTypeUpdate,
			path:    "missing.go",
			wantErr: true,
		},
		{
			name: "delete removes",
			typ:  models.TaskTypeDelete,
			seed: map[string]string{"old.txt": "bye"},
			path: "old.txt",
			check: func(t *testing.T, s *MemoryStore) {
				if s.Exists("old.txt") {
					t.Error("artifact still exists")
				}
			},
		},
		{
			name: "optimize collapses blank lines",
			typ:  models.TaskTypeOptimize,
			seed: map[string]string{"a.go": "a\n\n\n\nb\n\n\n"},
			path: "a.go",
			check: func(t *testing.T, s *MemoryStore) {
				got, _ := s.Read("a.go")
				if got != "a\n\nb\n" {
					t.Errorf("unexpected content: %q", got)
				}
			},
		},
		{
			name: "fix trims trailing whitespace",
			typ:  models.TaskTypeFix,
			seed: map[string]string{"a.go": "a  \nb\t\n"},
			path: "a.go",
			check: func(t *testing.T, s *MemoryStore) {
				got, _ := s.Read("a.go")
				if got != "a\nb\n" {
					t.Errorf("unexpected content: %q", got)
				}
			},
		},
		{
			name:    "validate empty fails",
			typ:     models.TaskTypeValidate,
			seed:    map[string]string{"a.go": "  \n"},
			path:    "a.go",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(tt.seed)
			h := DefaultHandlers()[tt.typ]
			_, err := h(context.Background(), store, artifactTask(tt.typ, tt.path))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, store)
			}
		})
	}
}

func TestHandlers_StopOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := handleCreate(ctx, NewMemoryStore(nil), artifactTask(models.TaskTypeCreate, "a.go"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type fakeRunner struct {
	command string
	out     []byte
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	return f.out, f.err
}

func (f *fakeRunner) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	f.command = command
	return f.out, f.err
}

func TestValidateHandler_RunsCommand(t *testing.T) {
	store := NewMemoryStore(map[string]string{"a.go": "package a\n"})

	ok := &fakeRunner{}
	out, err := ValidateHandler(ok, "/repo", "go vet ./...")(context.Background(), store, artifactTask(models.TaskTypeValidate, "a.go"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.command != "go vet ./..." || !strings.Contains(out.Summary, "passed") {
		t.Errorf("command not run: %q, summary %q", ok.command, out.Summary)
	}

	bad := &fakeRunner{out: []byte("vet: broken"), err: errors.New("exit status 1")}
	_, err = ValidateHandler(bad, "/repo", "go vet ./...")(context.Background(), store, artifactTask(models.TaskTypeValidate, "a.go"))
	if err == nil || !strings.Contains(err.Error(), "vet: broken") {
		t.Errorf("expected command output in error, got %v", err)
	}
}

func TestFixHandler_AppliesHealing(t *testing.T) {
	store := NewMemoryStore(map[string]string{"main.py": "x = 1  \nprint(x)\n"})
	task := artifactTask(models.TaskTypeFix, "main.py")
	task.Healing = []models.HealingAction{
		{ID: "a1", Applied: true, Changes: []models.LineChange{{Line: 1, Old: "x = 1  ", New: "x = 1"}}},
		{ID: "a2", Applied: true, Changes: []models.LineChange{{Line: 2, Old: "print(y)", New: "print(x)"}}},
		{ID: "a3", Changes: []models.LineChange{{Line: 2, Old: "print(x)", New: ""}}},
	}

	out, err := handleFix(context.Background(), store, task)
	if err != nil {
		t.Fatalf("handleFix: %v", err)
	}
	if out.Applied != 1 {
		t.Errorf("Applied = %d, want 1 (stale and unapproved actions skipped)", out.Applied)
	}
	if got, _ := store.Read("main.py"); got != "x = 1\nprint(x)\n" {
		t.Errorf("main.py = %q", got)
	}
	if !strings.Contains(out.Summary, "applied 1 of 3") {
		t.Errorf("Summary = %q", out.Summary)
	}

	// Nothing left to apply: the artifact is not rewritten.
	out, err = handleFix(context.Background(), store, task)
	if err != nil || out.Applied != 0 {
		t.Errorf("second handleFix = %d, %v", out.Applied, err)
	}
}
