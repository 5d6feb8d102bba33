package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"
)

// PauseController gates task assignment and plan progress. While paused,
// running tasks finish normally but nothing new is handed out and
// ExecutePlan waits before starting the next phase.
type PauseController struct {
	mu      sync.Mutex
	resumed chan struct{} // closed while not paused
	stopped chan struct{}
	stop    sync.Once

	since time.Time
	total time.Duration
	count int
}

// NewPauseController returns a controller in the running state.
func NewPauseController() *PauseController {
	resumed := make(chan struct{})
	close(resumed)
	return &PauseController{resumed: resumed, stopped: make(chan struct{})}
}

// Pause closes the gate. It reports whether the state changed.
func (p *PauseController) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.since.IsZero() {
		return false
	}
	p.resumed = make(chan struct{})
	p.since = time.Now()
	p.count++
	log.Printf("[orchestrator] paused: no new tasks will be assigned")
	return true
}

// Resume opens the gate. It reports whether the state changed.
func (p *PauseController) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.since.IsZero() {
		return false
	}
	p.total += time.Since(p.since)
	p.since = time.Time{}
	close(p.resumed)
	log.Printf("[orchestrator] resumed after %s", p.total.Round(time.Millisecond))
	return true
}

// Stop releases every waiter with ErrStopped.
func (p *PauseController) Stop() {
	p.stop.Do(func() { close(p.stopped) })
}

// IsPaused reports whether the gate is closed.
func (p *PauseController) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.since.IsZero()
}

// IsStopped reports whether Stop has been called.
func (p *PauseController) IsStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

// PausedFor returns the accumulated paused time, including the current
// pause, and how many times the controller has been paused.
func (p *PauseController) PausedFor() (time.Duration, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.total
	if !p.since.IsZero() {
		d += time.Since(p.since)
	}
	return d, p.count
}

// WaitIfPaused blocks until the gate opens, the controller is stopped or
// ctx is done.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	resumed := p.resumed
	p.mu.Unlock()

	select {
	case <-p.stopped:
		return ErrStopped
	default:
	}
	select {
	case <-resumed:
		if p.IsStopped() {
			return ErrStopped
		}
		return nil
	case <-p.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
