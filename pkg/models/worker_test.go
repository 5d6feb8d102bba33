package models

import (
	"testing"
	"time"
)

func TestWorkerStatus_Record(t *testing.T) {
	var w WorkerStatus

	w.Record(true, 2*time.Second)
	w.Record(true, 4*time.Second)
	w.Record(false, 6*time.Second)

	if w.Completed != 2 || w.Failed != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", w.Completed, w.Failed)
	}
	if w.Performance.AverageTaskTime != 4*time.Second {
		t.Errorf("AverageTaskTime = %v, want 4s", w.Performance.AverageTaskTime)
	}
	if got := w.Performance.SuccessRate; got < 0.66 || got > 0.67 {
		t.Errorf("SuccessRate = %v, want ~0.667", got)
	}
	if got := w.Performance.ErrorRate; got < 0.33 || got > 0.34 {
		t.Errorf("ErrorRate = %v, want ~0.333", got)
	}
}

func TestWorkerStatus_Copy(t *testing.T) {
	w := WorkerStatus{ID: "exec-1", CurrentTasks: []string{"t1"}}
	c := w.Copy()
	c.CurrentTasks[0] = "other"
	if w.CurrentTasks[0] != "t1" {
		t.Error("Copy shares CurrentTasks with original")
	}
}

func TestWorkerState_Available(t *testing.T) {
	tests := []struct {
		state WorkerState
		want  bool
	}{
		{WorkerIdle, true},
		{WorkerBusy, true},
		{WorkerError, false},
		{WorkerOffline, false},
	}
	for _, tt := range tests {
		if got := tt.state.Available(); got != tt.want {
			t.Errorf("%s.Available() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestWorkerRole_Valid(t *testing.T) {
	for _, r := range []WorkerRole{RoleOrchestrator, RolePrediction, RoleValidation, RoleHealing, RoleExecution} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if WorkerRole("janitor").Valid() {
		t.Error("unknown role should be invalid")
	}
}
