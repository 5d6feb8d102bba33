package orchestrator

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/internal/execution"
	"github.com/Camier/2SEARX2COOL-sub001/internal/graph"
	"github.com/Camier/2SEARX2COOL-sub001/internal/validation"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func twoPhasePlan() *models.Plan {
	return &models.Plan{
		ID:   "plan-1",
		Name: "two phases",
		Phases: []*models.Phase{
			{Name: "first", Tasks: []*models.Task{
				task("p1-a", models.PriorityHigh, 2),
				task("p1-b", models.PriorityHigh, 2, "p1-a"),
			}},
			{Name: "second", DependsOn: []string{"first"}, Tasks: []*models.Task{
				task("p2-a", models.PriorityMedium, 2, "p1-b"),
			}},
		},
		SuccessCriteria: models.SuccessCriteria{MinQualityScore: 70},
		Status:          models.PlanDraft,
	}
}

func TestExecutePlan(t *testing.T) {
	hooked := make(chan string, 4)
	o := newTestOrchestrator(t, WithPhaseHook(func(_ context.Context, _ *models.Plan, ph *models.Phase) error {
		hooked <- ph.Name
		return nil
	}))
	r := newRecorder()
	addExecWorker(t, o, "exec-1", 2, r)

	plan := twoPhasePlan()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.ExecutePlan(ctx, plan); err != nil {
		t.Fatalf("ExecutePlan() = %v", err)
	}
	if plan.Status != models.PlanCompleted {
		t.Errorf("plan status = %s, want completed", plan.Status)
	}
	for _, id := range []string{"p1-a", "p1-b", "p2-a"} {
		tk := o.Task(id)
		if tk.Status != models.TaskStatusCompleted {
			t.Errorf("%s status = %s, want completed", id, tk.Status)
		}
		if tk.PlanID != "plan-1" {
			t.Errorf("%s PlanID = %q", id, tk.PlanID)
		}
	}
	if got, want := r.order(), []string{"p1-a", "p1-b", "p2-a"}; !slices.Equal(got, want) {
		t.Errorf("execution order = %v, want %v", got, want)
	}

	for _, want := range []string{"first", "second"} {
		select {
		case <-hooked:
		case <-time.After(time.Second):
			t.Fatalf("phase hook not called for %s", want)
		}
	}

	// Re-running skips completed work.
	if err := o.ExecutePlan(ctx, twoPhasePlan()); err != nil {
		t.Fatalf("second ExecutePlan() = %v", err)
	}
	if n := len(r.order()); n != 3 {
		t.Errorf("tasks executed again: %d executions", n)
	}
}

func TestExecutePlanStalls(t *testing.T) {
	o := newTestOrchestrator(t)
	r := newRecorder()
	r.failTask("p1-a")
	addExecWorker(t, o, "exec-1", 2, r)

	plan := twoPhasePlan()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := o.ExecutePlan(ctx, plan)
	if !errors.Is(err, ErrPhaseStalled) {
		t.Fatalf("ExecutePlan() = %v, want ErrPhaseStalled", err)
	}
	if plan.Status != models.PlanCancelled {
		t.Errorf("plan status = %s, want cancelled", plan.Status)
	}
	if o.Task("p2-a") != nil {
		t.Error("second phase was queued after the first stalled")
	}
}

func TestExecutePlanCancelled(t *testing.T) {
	o := newTestOrchestrator(t)
	r := newRecorder()
	release := r.holdTask("p1-a")
	defer close(release)
	addExecWorker(t, o, "exec-1", 2, r)

	plan := twoPhasePlan()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := o.ExecutePlan(ctx, plan); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ExecutePlan() = %v, want deadline exceeded", err)
	}
	if plan.Status != models.PlanCancelled {
		t.Errorf("plan status = %s, want cancelled", plan.Status)
	}
}

func TestExecutePlanQualityGate(t *testing.T) {
	o := newTestOrchestrator(t, WithPhaseGate(true))
	val := validation.NewWorker("validation", validation.NewEngine(validation.DefaultConfig()), 16, o)
	runActor(t, val.Run)
	if err := o.Register(val); err != nil {
		t.Fatal(err)
	}

	empty := func(context.Context, execution.ArtifactStore, *models.Task) (execution.Output, error) {
		return execution.Output{Artifacts: map[string]string{"empty.go": ""}}, nil
	}
	w := execution.NewWorker("exec-1", execution.NewMemoryStore(nil), o, execution.WithHandler(models.TaskTypeUpdate, empty))
	runActor(t, w.Run)
	if err := o.Register(w); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := o.ExecutePlan(ctx, twoPhasePlan())

	var gate *PhaseGateError
	if !errors.As(err, &gate) {
		t.Fatalf("ExecutePlan() = %v, want *PhaseGateError", err)
	}
	if gate.Phase != "first" || gate.Quality >= 70 {
		t.Errorf("gate error = %+v", gate)
	}
	if _, ok := o.Report("p1-a"); !ok {
		t.Error("no validation report recorded")
	}
}

func TestValidatePlan(t *testing.T) {
	o := newTestOrchestrator(t)

	tests := []struct {
		name   string
		mutate func(p *models.Plan)
		is     error
	}{
		{name: "valid", mutate: func(*models.Plan) {}},
		{name: "cycle", mutate: func(p *models.Plan) {
			p.Phases[0].Tasks[0].Dependencies = []string{"p1-b"}
		}, is: graph.ErrCycleDetected},
		{name: "unknown dependency", mutate: func(p *models.Plan) {
			p.Phases[1].Tasks[0].Dependencies = []string{"nowhere"}
		}, is: graph.ErrUnknownDependency},
		{name: "later phase dependency", mutate: func(p *models.Plan) {
			p.Phases[0].Tasks[0].Dependencies = []string{"p2-a"}
		}},
		{name: "phase order", mutate: func(p *models.Plan) {
			p.Phases[0].DependsOn = []string{"second"}
		}},
		{name: "duplicate phase", mutate: func(p *models.Plan) {
			p.Phases[1].Name = "first"
			p.Phases[1].DependsOn = nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := twoPhasePlan()
			tt.mutate(p)
			err := o.ValidatePlan(p)
			if tt.name == "valid" {
				if err != nil {
					t.Fatalf("ValidatePlan() = %v", err)
				}
				return
			}
			var se *SchedulingError
			if !errors.As(err, &se) {
				t.Fatalf("ValidatePlan() = %v, want *SchedulingError", err)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("ValidatePlan() = %v, want wrapping %v", err, tt.is)
			}
		})
	}
}

func TestExecutePlanRejectsInvalid(t *testing.T) {
	o := newTestOrchestrator(t)
	plan := twoPhasePlan()
	plan.Phases[0].Tasks[0].Dependencies = []string{"p1-b"}

	err := o.ExecutePlan(context.Background(), plan)
	var se *SchedulingError
	if !errors.As(err, &se) {
		t.Fatalf("ExecutePlan() = %v, want *SchedulingError", err)
	}
	if plan.Status != models.PlanCancelled {
		t.Errorf("plan status = %s, want cancelled", plan.Status)
	}
	if len(o.Tasks()) != 0 {
		t.Error("tasks of an invalid plan were queued")
	}
}

func singlePhasePlan(tasks ...*models.Task) *models.Plan {
	return &models.Plan{
		ID:     "plan-1",
		Name:   "one phase",
		Phases: []*models.Phase{{Name: "only", Tasks: tasks}},
		Status: models.PlanDraft,
	}
}

// stopWorker runs a worker's Run on a cancelled context and waits until
// the orchestrator has seen it go offline.
func stopWorker(t *testing.T, o *Orchestrator, id string, run func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = run(ctx)
	waitUntil(t, id+" offline", func() bool {
		for _, w := range o.GetMetrics().Workers {
			if w.ID == id {
				return w.State == models.WorkerOffline
			}
		}
		return false
	})
}

func TestExecutePlanAfterHandlerPanic(t *testing.T) {
	o := newTestOrchestrator(t)
	flaky := func(_ context.Context, _ execution.ArtifactStore, task *models.Task) (execution.Output, error) {
		if task.ID == "x" {
			panic("handler bug")
		}
		return execution.Output{Summary: "ok"}, nil
	}
	w := execution.NewWorker("exec-1", execution.NewMemoryStore(nil), o,
		execution.WithCapacity(1), execution.WithHandler(models.TaskTypeUpdate, flaky))
	runActor(t, w.Run)
	if err := o.Register(w); err != nil {
		t.Fatal(err)
	}

	plan := singlePhasePlan(task("x", models.PriorityHigh, 1), task("y", models.PriorityLow, 1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.ExecutePlan(ctx, plan); err != nil {
		t.Fatalf("ExecutePlan() = %v", err)
	}
	if got := o.Task("x").Status; got != models.TaskStatusBlocked {
		t.Errorf("x status = %s, want blocked", got)
	}
	if got := o.Task("y").Status; got != models.TaskStatusCompleted {
		t.Errorf("y status = %s, want completed", got)
	}
	if w.Panics() != 1 {
		t.Errorf("Panics() = %d, want 1", w.Panics())
	}
}

func TestExecutePlanWithoutExecutionWorkers(t *testing.T) {
	o := newTestOrchestrator(t)
	w := execution.NewWorker("exec-1", execution.NewMemoryStore(nil), o)
	if err := o.Register(w); err != nil {
		t.Fatal(err)
	}
	stopWorker(t, o, "exec-1", w.Run)

	plan := twoPhasePlan()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := o.ExecutePlan(ctx, plan)
	if !errors.Is(err, ErrNoWorkers) || !errors.Is(err, ErrPhaseStalled) {
		t.Fatalf("ExecutePlan() = %v, want ErrNoWorkers and ErrPhaseStalled", err)
	}
	if plan.Status != models.PlanCancelled {
		t.Errorf("plan status = %s, want cancelled", plan.Status)
	}
}

func TestExecutePlanGateWithoutReports(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, o *Orchestrator) *stubWorker
		opts  []Option
	}{
		{
			// Requests are sent but never answered.
			name: "silent validator",
			setup: func(t *testing.T, o *Orchestrator) *stubWorker {
				val := newStub("validation", models.RoleValidation)
				if err := o.Register(val); err != nil {
					t.Fatal(err)
				}
				return val
			},
			opts: []Option{WithValidationWait(50 * time.Millisecond)},
		},
		{
			// No request can be sent at all.
			name: "validator offline",
			setup: func(t *testing.T, o *Orchestrator) *stubWorker {
				val := validation.NewWorker("validation", validation.NewEngine(validation.DefaultConfig()), 16, o)
				if err := o.Register(val); err != nil {
					t.Fatal(err)
				}
				stopWorker(t, o, "validation", val.Run)
				return nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, append(tt.opts, WithPhaseGate(true))...)
			stub := tt.setup(t, o)
			addExecWorker(t, o, "exec-1", 2, newRecorder())

			plan := twoPhasePlan()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := o.ExecutePlan(ctx, plan); err != nil {
				t.Fatalf("ExecutePlan() = %v", err)
			}
			if plan.Status != models.PlanCompleted {
				t.Errorf("plan status = %s, want completed", plan.Status)
			}
			if stub != nil {
				if n := len(stub.OfType(models.MsgValidationRequest)); n != 3 {
					t.Errorf("validation requests = %d, want 3", n)
				}
			}
		})
	}
}
