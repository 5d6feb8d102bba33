// Package signals lets another process pause, resume or stop a running
// plan by creating files under .autopilot/signals.
//
// A "pause" file pauses assignment for as long as it exists; removing it
// resumes. A "stop" file ends the run.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal names a signal file.
type Signal string

const (
	Pause Signal = "pause"
	Stop  Signal = "stop"
)

// DefaultPollInterval is how often the files are checked directly, in
// case the watcher misses an event or could not be started.
const DefaultPollInterval = time.Second

// Controller is what pause signals act on. The orchestrator implements it.
type Controller interface {
	Pause()
	Resume()
}

// Dir returns the signals directory of the project at root.
func Dir(root string) string {
	return filepath.Join(root, ".autopilot", "signals")
}

// Send creates the signal file.
func Send(root string, sig Signal) error {
	if err := os.MkdirAll(Dir(root), 0755); err != nil {
		return fmt.Errorf("create signals directory: %w", err)
	}
	path := filepath.Join(Dir(root), string(sig))
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Withdraw removes the signal file. Withdrawing Pause resumes the run.
func Withdraw(root string, sig Signal) error {
	err := os.Remove(filepath.Join(Dir(root), string(sig)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every signal file, so a new run does not start paused
// or stopped by leftovers.
func Clear(root string) error {
	return errors.Join(Withdraw(root, Pause), Withdraw(root, Stop))
}

// Watcher applies signal files to a Controller.
type Watcher struct {
	dir  string
	ctrl Controller
	stop func()
	poll time.Duration

	mu      sync.Mutex
	paused  bool
	stopped bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets the direct check interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// NewWatcher creates a watcher for the project at root. stop is called
// once when a stop file appears.
func NewWatcher(root string, ctrl Controller, stop func(), opts ...Option) (*Watcher, error) {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}
	w := &Watcher{dir: dir, ctrl: ctrl, stop: stop, poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. Signal files already present when
// Run starts take effect immediately.
func (w *Watcher) Run(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var errs <-chan error

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[signals] file watcher unavailable, polling only: %v", err)
	} else {
		defer fw.Close()
		if err := fw.Add(w.dir); err != nil {
			log.Printf("[signals] cannot watch %s, polling only: %v", w.dir, err)
		} else {
			events, errs = fw.Events, fw.Errors
		}
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	w.sync()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.sync()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[signals] watcher error: %v", err)
		case <-ticker.C:
			w.sync()
		}
	}
}

// Paused reports whether a pause file is in effect.
func (w *Watcher) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// sync compares the files on disk with the applied state. Callbacks run
// outside the lock.
func (w *Watcher) sync() {
	pause := w.present(Pause)
	stop := w.present(Stop)

	w.mu.Lock()
	var actions []func()
	if pause != w.paused {
		w.paused = pause
		if pause {
			actions = append(actions, w.ctrl.Pause)
		} else {
			actions = append(actions, w.ctrl.Resume)
		}
	}
	if stop && !w.stopped {
		w.stopped = true
		if w.stop != nil {
			actions = append(actions, w.stop)
		}
	}
	w.mu.Unlock()

	for _, a := range actions {
		a()
	}
}

func (w *Watcher) present(sig Signal) bool {
	_, err := os.Stat(filepath.Join(w.dir, string(sig)))
	return err == nil
}
