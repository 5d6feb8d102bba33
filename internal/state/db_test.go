package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")
	path := filepath.Join(nested, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpenProject(t *testing.T) {
	root := t.TempDir()
	db, err := OpenProject(root)
	if err != nil {
		t.Fatalf("OpenProject failed: %v", err)
	}
	defer db.Close()

	if want := filepath.Join(root, ".autopilot", "state.db"); db.Path() != want {
		t.Errorf("Path() = %q, want %q", db.Path(), want)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	for _, table := range []string{"schema_version", "tasks", "messages", "plans"} {
		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 3 {
		t.Errorf("schema version = %d, want 3", version)
	}
}

func TestSaveTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	task := &models.Task{
		ID:           "t1",
		Type:         models.TaskTypeUpdate,
		Title:        "Split big.go",
		Priority:     models.PriorityHigh,
		Status:       models.TaskStatusPending,
		Dependencies: []string{"t0"},
		Metadata:     models.TaskMetadata{Category: "refactoring", Difficulty: 7, Risk: models.RiskMedium, Artifacts: []string{"big.go"}},
		PlanID:       "plan-1",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := db.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	// A later save replaces the stored copy.
	task.Status = models.TaskStatusCompleted
	task.Result = &models.TaskResult{WorkerID: "exec-1", Artifacts: map[string]string{"big.go": "package big\n"}, Elapsed: time.Second}
	task.UpdatedAt = created.Add(time.Minute)
	if err := db.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask (update) failed: %v", err)
	}

	got, err := db.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusCompleted || got.Result == nil || got.Result.Artifacts["big.go"] != "package big\n" {
		t.Errorf("GetTask = %+v", got)
	}
	if got.Metadata.Difficulty != 7 || got.Dependencies[0] != "t0" || !got.CreatedAt.Equal(created) {
		t.Errorf("GetTask lost fields: %+v", got)
	}

	if _, err := db.GetTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTask(missing) = %v, want ErrNotFound", err)
	}
}

func TestListTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, tk := range []*models.Task{
		{ID: "a", Status: models.TaskStatusCompleted, PlanID: "p1"},
		{ID: "b", Status: models.TaskStatusPending, PlanID: "p1"},
		{ID: "c", Status: models.TaskStatusInProgress, PlanID: "p2"},
		{ID: "d", Status: models.TaskStatusBlocked},
	} {
		tk.Type = models.TaskTypeFix
		tk.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := db.SaveTask(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{name: "all", want: []string{"a", "b", "c", "d"}},
		{name: "by plan", filter: TaskFilter{PlanID: "p1"}, want: []string{"a", "b"}},
		{name: "active", filter: TaskFilter{Status: []models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress}}, want: []string{"b", "c"}},
		{name: "plan and status", filter: TaskFilter{PlanID: "p1", Status: []models.TaskStatus{models.TaskStatusPending}}, want: []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListTasks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTasks failed: %v", err)
			}
			var ids []string
			for _, tk := range got {
				ids = append(ids, tk.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ListTasks = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ListTasks = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestMessages(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	failure := models.NewMessage("exec-1", "t1", models.TaskFailure{Error: "boom", Elapsed: time.Second, Content: "x := 1"})
	completion := models.NewMessage("exec-1", "t2", models.TaskCompletion{Result: models.TaskResult{WorkerID: "exec-1", Output: "ok"}})
	for _, m := range []models.Message{failure, completion, failure} {
		if err := db.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	all, err := db.ListMessages(ctx, "")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListMessages returned %d messages, want 2 (duplicate ignored)", len(all))
	}

	got, err := db.ListMessages(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("ListMessages(t1) returned %d messages", len(got))
	}
	p, ok := got[0].Payload.(models.TaskFailure)
	if !ok || p.Error != "boom" || p.Content != "x := 1" {
		t.Errorf("payload = %#v", got[0].Payload)
	}
	if got[0].Type != models.MsgTaskFailure || got[0].Sender != "exec-1" || got[0].ID != failure.ID {
		t.Errorf("message = %+v", got[0])
	}
	if got[0].Timestamp.Sub(failure.Timestamp).Abs() > time.Millisecond {
		t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, failure.Timestamp)
	}

	n, err := db.PurgeMessages(-time.Hour)
	if err != nil {
		t.Fatalf("PurgeMessages failed: %v", err)
	}
	if n != 2 {
		t.Errorf("PurgeMessages removed %d, want 2", n)
	}
}

func TestPlansAndInterrupted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	plan := &models.Plan{
		ID:     "p1",
		Name:   "Refactor demo",
		Status: models.PlanInProgress,
		Phases: []*models.Phase{{Name: "foundation", Tasks: []*models.Task{{ID: "a", Type: models.TaskTypeCreate}}}},
		SuccessCriteria: models.SuccessCriteria{
			MinQualityScore: 70,
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	done := &models.Plan{ID: "p0", Name: "old", Status: models.PlanCompleted, CreatedAt: plan.CreatedAt.Add(-time.Hour)}
	for _, p := range []*models.Plan{plan, done} {
		if err := db.SavePlan(ctx, p); err != nil {
			t.Fatalf("SavePlan failed: %v", err)
		}
	}
	for _, tk := range []*models.Task{
		{ID: "a", Type: models.TaskTypeCreate, Status: models.TaskStatusCompleted, PlanID: "p1"},
		{ID: "b", Type: models.TaskTypeCreate, Status: models.TaskStatusInProgress, PlanID: "p1"},
	} {
		if err := db.SaveTask(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.GetPlan(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if got.Name != plan.Name || len(got.Phases) != 1 || got.Phases[0].Tasks[0].ID != "a" || got.SuccessCriteria.MinQualityScore != 70 {
		t.Errorf("GetPlan = %+v", got)
	}

	plans, err := db.ListPlans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 2 || plans[0].ID != "p1" {
		t.Errorf("ListPlans order = %v, want newest first", plans)
	}

	interrupted, err := db.CheckForInterrupted(ctx)
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if len(interrupted) != 1 || interrupted[0].Plan.ID != "p1" || len(interrupted[0].Tasks) != 1 || interrupted[0].Tasks[0].ID != "b" {
		t.Fatalf("CheckForInterrupted = %+v", interrupted)
	}

	if err := db.MarkCancelled(ctx, "p1"); err != nil {
		t.Fatalf("MarkCancelled failed: %v", err)
	}
	if err := db.MarkCancelled(ctx, "p1"); err == nil {
		t.Error("MarkCancelled on a cancelled plan succeeded")
	}
	if interrupted, _ := db.CheckForInterrupted(ctx); len(interrupted) != 0 {
		t.Errorf("plan still interrupted after MarkCancelled: %+v", interrupted)
	}
	if _, err := db.GetPlan(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlan(nope) = %v, want ErrNotFound", err)
	}
}
