package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPauseControllerGate(t *testing.T) {
	p := NewPauseController()
	if err := p.WaitIfPaused(context.Background()); err != nil {
		t.Fatalf("WaitIfPaused while running = %v", err)
	}

	if !p.Pause() || p.Pause() {
		t.Fatal("Pause should report a change only once")
	}

	released := make(chan error, 1)
	go func() { released <- p.WaitIfPaused(context.Background()) }()
	select {
	case err := <-released:
		t.Fatalf("waiter released while paused: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if !p.Resume() || p.Resume() {
		t.Fatal("Resume should report a change only once")
	}
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("waiter error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Resume")
	}

	d, n := p.PausedFor()
	if n != 1 || d < 20*time.Millisecond {
		t.Errorf("PausedFor = %s, %d", d, n)
	}
}

func TestPauseControllerStopAndCancel(t *testing.T) {
	p := NewPauseController()
	p.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.WaitIfPaused(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled wait = %v", err)
	}

	p.Stop()
	p.Stop()
	if !p.IsStopped() {
		t.Fatal("IsStopped = false after Stop")
	}
	if err := p.WaitIfPaused(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("wait after Stop = %v", err)
	}
	p.Resume()
	if err := p.WaitIfPaused(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("wait after Stop and Resume = %v", err)
	}
}
