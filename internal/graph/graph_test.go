package graph

import (
	"errors"
	"testing"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func task(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Dependencies: deps, Status: models.TaskStatusPending}
}

func TestBuild_Simple(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Task{task("a"), task("b", "a"), task("c", "a", "b")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}
	if deps := g.GetDependencies("c"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for c, got %v", deps)
	}
}

func TestBuild_UnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.Task{task("a", "ghost")})
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestBuild_ExternalDependency(t *testing.T) {
	g := New()
	g.AllowExternal("earlier")
	if err := g.Build([]*models.Task{task("a", "earlier")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if deps := g.GetDependencies("a"); len(deps) != 0 {
		t.Errorf("external dependencies should not become edges, got %v", deps)
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	g := New()
	err := g.Build([]*models.Task{task("a"), task("a")})
	if !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestBuild_Cycle(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
	}{
		{"self loop", []*models.Task{task("a", "a")}},
		{"two node", []*models.Task{task("a", "b"), task("b", "a")}},
		{"three node", []*models.Task{task("a", "c"), task("b", "a"), task("c", "b")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Build(tt.tasks)
			if !errors.Is(err, ErrCycleDetected) {
				t.Errorf("expected ErrCycleDetected, got %v", err)
			}
		})
	}
}

func TestTopologicalSort_OrderAndDeterminism(t *testing.T) {
	tasks := []*models.Task{task("d", "b", "c"), task("b", "a"), task("c", "a"), task("a"), task("e")}

	var first []string
	for i := 0; i < 5; i++ {
		g := New()
		if err := g.Build(tasks); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		order, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort failed: %v", err)
		}

		pos := make(map[string]int)
		for i, id := range order {
			pos[id] = i
		}
		for _, tk := range tasks {
			for _, dep := range tk.Dependencies {
				if pos[dep] > pos[tk.ID] {
					t.Errorf("dependency %s sorted after %s", dep, tk.ID)
				}
			}
		}

		if first == nil {
			first = order
			continue
		}
		for i := range order {
			if order[i] != first[i] {
				t.Fatalf("non-deterministic order: %v vs %v", first, order)
			}
		}
	}
}

func TestGetDependents(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Task{task("a"), task("b", "a"), task("c", "a"), task("d", "b")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	deps := g.GetDependents("a")
	if len(deps) != 2 || deps[0] != "b" || deps[1] != "c" {
		t.Errorf("GetDependents(a) = %v, want [b c]", deps)
	}
	if deps := g.GetDependents("d"); len(deps) != 0 {
		t.Errorf("GetDependents(d) = %v, want none", deps)
	}
}

func TestSortedTasks(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Task{task("b", "a"), task("a")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	sorted, err := g.SortedTasks()
	if err != nil {
		t.Fatalf("SortedTasks failed: %v", err)
	}
	if sorted[0].ID != "a" || sorted[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", sorted[0].ID, sorted[1].ID)
	}
}
