// Package execution implements the execution pool: workers that perform
// the side effects of tasks on an artifact store.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// DefaultCapacity is the number of concurrent tasks a worker accepts by default.
const DefaultCapacity = 3

// ErrWorkerStopped is returned when work is offered to a stopped worker.
var ErrWorkerStopped = errors.New("worker stopped")

// Option configures a Worker.
type Option func(*Worker)

// WithCapacity sets the maximum number of concurrent tasks.
func WithCapacity(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.capacity = n
		}
	}
}

// WithTimeout sets the per-task timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

// WithHandler overrides the handler for one task type.
func WithHandler(t models.TaskType, h Handler) Option {
	return func(w *Worker) { w.handlers[t] = h }
}

// WithHandlers overrides several handlers at once.
func WithHandlers(hs Handlers) Option {
	return func(w *Worker) {
		for t, h := range hs {
			w.handlers[t] = h
		}
	}
}

// Worker executes tasks, at most capacity at a time. It reports every
// outcome and every state change to its sink.
type Worker struct {
	id       string
	capacity int
	timeout  time.Duration
	slots    *semaphore.Weighted
	store    ArtifactStore
	handlers Handlers
	out      bus.Sink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	status  models.WorkerStatus
	panics  int
}

// NewWorker creates an execution worker reporting to out.
func NewWorker(id string, store ArtifactStore, out bus.Sink, opts ...Option) *Worker {
	if out == nil {
		out = bus.Discard
	}
	w := &Worker{
		id:       id,
		capacity: DefaultCapacity,
		store:    store,
		handlers: DefaultHandlers(),
		out:      out,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.slots = semaphore.NewWeighted(int64(w.capacity))
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.status = models.WorkerStatus{
		ID:        id,
		Role:      models.RoleExecution,
		State:     models.WorkerIdle,
		Capacity:  w.capacity,
		UpdatedAt: time.Now(),
	}
	return w
}

// ID returns the worker ID.
func (w *Worker) ID() string { return w.id }

// Capacity returns the maximum number of concurrent tasks.
func (w *Worker) Capacity() int { return w.capacity }

// Status returns a copy of the worker's current status.
func (w *Worker) Status() models.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status.Copy()
}

// Post accepts task assignments from the bus. Rejections are only logged;
// senders that need to re-queue should call Deliver.
func (w *Worker) Post(msg models.Message) {
	if err := w.Deliver(msg); err != nil {
		log.Printf("[execution] %s rejected %s for task %s: %v", w.id, msg.Type, msg.TaskID, err)
	}
}

// Deliver reserves a slot for the assigned task and runs it in the
// background. It returns a *CapacityError when the worker is full.
func (w *Worker) Deliver(msg models.Message) error {
	a, ok := msg.Payload.(models.TaskAssignment)
	if !ok {
		return fmt.Errorf("execution worker %s cannot handle %s", w.id, msg.Type)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWorkerStopped
	}
	if !w.slots.TryAcquire(1) {
		w.mu.Unlock()
		return &CapacityError{WorkerID: w.id, Capacity: w.capacity}
	}
	w.wg.Add(1)
	w.mu.Unlock()

	task := a.Task.Clone()
	go func() {
		defer w.wg.Done()
		_, _ = w.run(w.ctx, task)
	}()
	return nil
}

// ExecuteTask runs task synchronously. It returns a *CapacityError when
// the worker is full and a *TaskExecutionError when the handler fails.
// The outcome is also reported to the sink.
func (w *Worker) ExecuteTask(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, ErrWorkerStopped
	}
	if !w.slots.TryAcquire(1) {
		w.mu.Unlock()
		return nil, &CapacityError{WorkerID: w.id, Capacity: w.capacity}
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()
	return w.run(ctx, task.Clone())
}

// Run blocks until ctx is cancelled, then cancels in-flight tasks, waits
// for every handler to return and marks the worker offline.
func (w *Worker) Run(ctx context.Context) error {
	<-ctx.Done()
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()

	w.mu.Lock()
	w.status.State = models.WorkerOffline
	w.status.UpdatedAt = time.Now()
	w.mu.Unlock()
	w.reportStatus()
	return nil
}

// run executes a task holding one slot. The slot is released before the
// outcome is posted so the receiver can immediately assign more work. A
// handler abandoned after a timeout keeps its slot until it returns, so
// the worker never has more than capacity handlers touching the store.
func (w *Worker) run(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	start := time.Now()
	w.begin(task.ID)

	r, exited := w.invoke(ctx, task)
	elapsed := time.Since(start)

	settle := func() {
		w.slots.Release(1)
		w.finish(task.ID, r.err == nil, elapsed, r.panicked)
	}
	select {
	case <-exited:
		settle()
	default:
		log.Printf("[execution] %s: handler for task %s still running after %s, holding its slot", w.id, task.ID, elapsed.Round(time.Millisecond))
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			<-exited
			settle()
		}()
	}

	if r.err != nil {
		execErr := &TaskExecutionError{
			TaskID:   task.ID,
			WorkerID: w.id,
			Elapsed:  elapsed,
			TimedOut: r.timedOut,
			Err:      r.err,
		}
		w.out.Post(models.NewMessage(w.id, task.ID, models.TaskFailure{
			Error:    execErr.Error(),
			Elapsed:  elapsed,
			Content:  w.snapshot(task),
			TimedOut: r.timedOut,
		}))
		return nil, execErr
	}

	result := &models.TaskResult{
		WorkerID:  w.id,
		Artifacts: r.out.Artifacts,
		Output:    r.out.Summary,
		Elapsed:   elapsed,
		Applied:   r.out.Applied,
	}
	w.out.Post(models.NewMessage(w.id, task.ID, models.TaskCompletion{Result: *result}))
	return result, nil
}

type handlerResult struct {
	out      Output
	err      error
	timedOut bool
	panicked bool
}

// invoke calls the handler under the per-task timeout. A handler that
// ignores its context is abandoned once the deadline passes; the returned
// channel is closed when the handler goroutine has actually returned.
func (w *Worker) invoke(ctx context.Context, task *models.Task) (handlerResult, <-chan struct{}) {
	exited := make(chan struct{})
	h, ok := w.handlers[task.Type]
	if !ok {
		close(exited)
		return handlerResult{err: fmt.Errorf("no handler for task type %q", task.Type)}, exited
	}

	tctx, cancel := ctx, context.CancelFunc(func() {})
	if w.timeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, w.timeout)
	}

	done := make(chan handlerResult, 1)
	go func() {
		defer close(exited)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				done <- handlerResult{err: fmt.Errorf("handler panic: %v", r), panicked: true}
			}
		}()
		o, err := h(tctx, w.store, task)
		done <- handlerResult{out: o, err: err}
	}()

	select {
	case r := <-done:
		<-exited
		r.timedOut = r.err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded)
		return r, exited
	case <-tctx.Done():
		err := tctx.Err()
		return handlerResult{err: err, timedOut: errors.Is(err, context.DeadlineExceeded)}, exited
	}
}

// snapshot returns the current content of the task's first artifact, for healing.
func (w *Worker) snapshot(task *models.Task) string {
	for _, path := range task.Metadata.Artifacts {
		if content, err := w.store.Read(path); err == nil {
			return content
		}
	}
	return ""
}

func (w *Worker) begin(taskID string) {
	w.mu.Lock()
	w.status.CurrentTasks = append(w.status.CurrentTasks, taskID)
	if w.status.State != models.WorkerError {
		w.status.State = models.WorkerBusy
	}
	w.status.UpdatedAt = time.Now()
	w.mu.Unlock()
	w.reportStatus()
}

// finish records the outcome of a task. A handler panic puts the worker in
// the error state until its in-flight tasks have drained; it then returns
// to idle and the panic stays counted as a failure.
func (w *Worker) finish(taskID string, success bool, elapsed time.Duration, panicked bool) {
	w.mu.Lock()
	for i, id := range w.status.CurrentTasks {
		if id == taskID {
			w.status.CurrentTasks = append(w.status.CurrentTasks[:i], w.status.CurrentTasks[i+1:]...)
			break
		}
	}
	w.status.Record(success, elapsed)
	if panicked {
		w.status.State = models.WorkerError
		w.status.UpdatedAt = time.Now()
		w.panics++
		log.Printf("[execution] %s entered error state after handler panic on task %s", w.id, taskID)
		w.mu.Unlock()
		w.reportStatus()
		w.mu.Lock()
	}
	switch {
	case len(w.status.CurrentTasks) == 0:
		if w.status.State == models.WorkerError {
			log.Printf("[execution] %s recovered: no tasks in flight (%d handler panics so far)", w.id, w.panics)
		}
		w.status.State = models.WorkerIdle
	case w.status.State != models.WorkerError:
		w.status.State = models.WorkerBusy
	}
	w.status.UpdatedAt = time.Now()
	w.mu.Unlock()
	w.reportStatus()
}

// Panics returns the number of handler panics since the worker started.
func (w *Worker) Panics() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.panics
}

func (w *Worker) reportStatus() {
	w.out.Post(models.NewMessage(w.id, "", models.StatusUpdate{Status: w.Status()}))
}
