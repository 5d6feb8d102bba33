package signals

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeController struct {
	mu      sync.Mutex
	pauses  int
	resumes int
}

func (f *fakeController) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeController) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
}

func (f *fakeController) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses, f.resumes
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startWatcher(t *testing.T, root string, ctrl Controller, stop func()) *Watcher {
	t.Helper()
	w, err := NewWatcher(root, ctrl, stop, WithPollInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestWatcher_PauseResume(t *testing.T) {
	root := t.TempDir()
	ctrl := &fakeController{}
	w := startWatcher(t, root, ctrl, nil)

	if err := Send(root, Pause); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitUntil(t, "pause", func() bool { p, _ := ctrl.counts(); return p == 1 })
	if !w.Paused() {
		t.Error("expected Paused() after pause file")
	}

	// Rewriting the file must not pause twice.
	if err := Send(root, Pause); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)

	if err := Withdraw(root, Pause); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	waitUntil(t, "resume", func() bool { _, r := ctrl.counts(); return r == 1 })

	if p, r := ctrl.counts(); p != 1 || r != 1 {
		t.Errorf("pauses=%d resumes=%d, want 1 and 1", p, r)
	}
}

func TestWatcher_StopOnce(t *testing.T) {
	root := t.TempDir()
	var mu sync.Mutex
	stops := 0
	startWatcher(t, root, &fakeController{}, func() {
		mu.Lock()
		stops++
		mu.Unlock()
	})

	if err := Send(root, Stop); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "stop", func() bool { mu.Lock(); defer mu.Unlock(); return stops == 1 })

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if stops != 1 {
		t.Errorf("stop called %d times, want 1", stops)
	}
}

func TestWatcher_ExistingPauseFile(t *testing.T) {
	root := t.TempDir()
	if err := Send(root, Pause); err != nil {
		t.Fatal(err)
	}
	ctrl := &fakeController{}
	startWatcher(t, root, ctrl, nil)
	waitUntil(t, "pause", func() bool { p, _ := ctrl.counts(); return p == 1 })
}

func TestClear(t *testing.T) {
	root := t.TempDir()
	for _, sig := range []Signal{Pause, Stop} {
		if err := Send(root, sig); err != nil {
			t.Fatal(err)
		}
	}
	if err := Clear(root); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for _, sig := range []Signal{Pause, Stop} {
		if _, err := os.Stat(filepath.Join(Dir(root), string(sig))); !os.IsNotExist(err) {
			t.Errorf("%s file still present", sig)
		}
	}
	// Clearing again is fine.
	if err := Clear(root); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}
