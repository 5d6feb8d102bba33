// Package orchestrator schedules dependency-ordered tasks onto execution
// workers and coordinates the prediction, validation and healing workers.
//
// All scheduler state is owned by the Orchestrator and guarded by one
// mutex. Side effects that could block (posting to workers, emitting
// events, persisting) are queued while the lock is held and run after it
// is released.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/internal/graph"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// ID is the sender ID the orchestrator uses on the bus.
const ID = "orchestrator"

// Worker is anything that can be registered with the orchestrator. The
// execution pool workers and the engine actors implement it.
type Worker interface {
	ID() string
	Status() models.WorkerStatus
	Post(msg models.Message)
}

// deliverer is implemented by workers that reserve capacity synchronously.
type deliverer interface {
	Deliver(msg models.Message) error
}

type workerEntry struct {
	worker   Worker
	status   models.WorkerStatus
	assigned map[string]bool
}

type counters struct {
	completed          int
	failures           int
	healed             int
	healingApplied     int
	validationFailures int
}

// Orchestrator is the scheduler. It is safe for concurrent use.
type Orchestrator struct {
	opts     options
	logger   *DebugLogger
	events   *EventEmitter
	mailbox  *bus.Mailbox
	pause    *PauseController
	analyzer *Analyzer
	planner  *Planner

	mu          sync.Mutex
	tasks       map[string]*models.Task
	order       []string
	queue       taskQueue
	seqs        map[string]uint64
	nextSeq     uint64
	replacedBy  map[string]string
	workers     map[string]*workerEntry
	workerOrder []string
	predictions map[string]models.PredictionResult
	reports     map[string]models.ValidationReport
	// Reply tracking: when each outstanding request was sent, by task ID.
	awaitingReport  map[string]time.Time
	awaitingHealing map[string]time.Time
	healing     map[string][]models.HealingAction
	stats       counters
	changed     chan struct{}
	pending     []func()
	startedAt   time.Time
}

// New creates an orchestrator.
func New(opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	setPackageLogger(o.logger)

	return &Orchestrator{
		opts:        o,
		logger:      o.logger,
		events:      NewEventEmitter(o.eventBuffer),
		mailbox:     bus.NewMailbox(ID, o.mailboxSize),
		pause:       NewPauseController(),
		analyzer:    NewAnalyzer(o.protector, o.ignore...),
		planner:     NewPlanner(),
		tasks:       make(map[string]*models.Task),
		seqs:        make(map[string]uint64),
		replacedBy:  make(map[string]string),
		workers:     make(map[string]*workerEntry),
		predictions: make(map[string]models.PredictionResult),
		reports:     make(map[string]models.ValidationReport),
		awaitingReport:  make(map[string]time.Time),
		awaitingHealing: make(map[string]time.Time),
		healing:     make(map[string][]models.HealingAction),
		changed:     make(chan struct{}),
		startedAt:   o.now(),
	}
}

// Events returns the event stream, for the dashboard.
func (o *Orchestrator) Events() <-chan Event {
	return o.events.Events()
}

// Post enqueues a worker message. It never blocks, so the orchestrator
// can be handed to workers as their bus.Sink.
func (o *Orchestrator) Post(msg models.Message) {
	o.mailbox.Post(msg)
}

// Send enqueues a worker message, waiting for mailbox space.
func (o *Orchestrator) Send(ctx context.Context, msg models.Message) error {
	return o.mailbox.Send(ctx, msg)
}

// Run processes mailbox messages until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Log("Run() started")
	err := o.mailbox.Run(ctx, func(_ context.Context, msg models.Message) {
		o.HandleWorkerMessage(msg)
	})
	o.pause.Stop()
	o.mu.Lock()
	o.notifyLocked()
	o.mu.Unlock()
	o.logger.Log("Run() finished: %v", err)
	return err
}

// Close releases the event stream and the debug log.
func (o *Orchestrator) Close() error {
	o.events.Close()
	return o.logger.Close()
}

// Pause stops new assignments until Resume.
func (o *Orchestrator) Pause() {
	if o.pause.Pause() {
		o.events.Emit(Event{Type: EventPaused})
	}
}

// Resume re-enables assignment and immediately assigns ready tasks.
func (o *Orchestrator) Resume() {
	if !o.pause.Resume() {
		return
	}
	o.events.Emit(Event{Type: EventResumed})
	o.mu.Lock()
	o.assignLocked()
	o.unlock()
}

// Paused reports whether assignment is paused.
func (o *Orchestrator) Paused() bool {
	return o.pause.IsPaused()
}

// PausedFor returns the total time spent paused and the number of pauses.
func (o *Orchestrator) PausedFor() (time.Duration, int) {
	return o.pause.PausedFor()
}

// Register announces a worker. Each worker ID may register once; after
// that all interaction goes through messages.
func (o *Orchestrator) Register(w Worker) error {
	st := w.Status()
	if st.ID == "" {
		st.ID = w.ID()
	}
	if !st.Role.Valid() {
		return fmt.Errorf("register worker %s: invalid role %q", st.ID, st.Role)
	}

	o.mu.Lock()
	if _, ok := o.workers[st.ID]; ok {
		o.mu.Unlock()
		return fmt.Errorf("register worker %s: %w", st.ID, ErrWorkerExists)
	}
	o.workers[st.ID] = &workerEntry{worker: w, status: st, assigned: make(map[string]bool)}
	o.workerOrder = append(o.workerOrder, st.ID)
	o.logger.Log("registered %s worker %s (capacity %d)", st.Role, st.ID, st.Capacity)
	o.emitLocked(Event{Type: EventWorkerRegistered, WorkerID: st.ID, Message: string(st.Role)})
	o.notifyLocked()
	o.assignLocked()
	o.unlock()
	return nil
}

// AddTask validates a task, queues it and tries to assign it immediately.
// The orchestrator keeps its own copy of the task.
func (o *Orchestrator) AddTask(task *models.Task) error {
	if task == nil {
		return &SchedulingError{Reason: "nil task"}
	}
	t := task.Clone()

	o.mu.Lock()
	err := o.addLocked(t)
	if err == nil {
		o.assignLocked()
	}
	o.unlock()
	return err
}

// Task returns a copy of a task, or nil when unknown.
func (o *Orchestrator) Task(id string) *models.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tasks[id].Clone()
}

// Tasks returns copies of all tasks in submission order.
func (o *Orchestrator) Tasks() []*models.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*models.Task, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.tasks[id].Clone())
	}
	return out
}

// Queued returns the IDs of queued tasks in the order they would be
// considered for assignment.
func (o *Orchestrator) Queued() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, id := range o.queue.ids() {
		if t := o.tasks[id]; t != nil && t.Status == models.TaskStatusPending {
			out = append(out, id)
		}
	}
	return out
}

// Prediction returns the latest prediction for a task.
func (o *Orchestrator) Prediction(taskID string) (models.PredictionResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.predictions[taskID]
	return r, ok
}

// Report returns the latest validation report for a task.
func (o *Orchestrator) Report(taskID string) (models.ValidationReport, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.reports[taskID]
	return r, ok
}

// HealingActions returns the healing actions proposed for a task.
func (o *Orchestrator) HealingActions(taskID string) []models.HealingAction {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.HealingAction(nil), o.healing[taskID]...)
}

// addLocked validates and queues t, which the orchestrator now owns.
func (o *Orchestrator) addLocked(t *models.Task) error {
	if t.ID == "" {
		return &SchedulingError{Reason: "task has no id"}
	}
	if !t.Type.Valid() {
		return &SchedulingError{TaskID: t.ID, Reason: fmt.Sprintf("unknown task type %q", t.Type)}
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Priority.Valid() {
		return &SchedulingError{TaskID: t.ID, Reason: fmt.Sprintf("unknown priority %q", t.Priority)}
	}
	if _, ok := o.tasks[t.ID]; ok {
		return &SchedulingError{TaskID: t.ID, Err: graph.ErrDuplicateTask}
	}
	for _, dep := range t.Dependencies {
		if dep == t.ID {
			return &SchedulingError{TaskID: t.ID, Reason: "task depends on itself", Err: graph.ErrCycleDetected}
		}
		if _, ok := o.tasks[dep]; !ok {
			return &SchedulingError{TaskID: t.ID, Reason: "dependency " + dep, Err: graph.ErrUnknownDependency}
		}
	}

	now := o.opts.now()
	t.Status = models.TaskStatusPending
	t.Metadata.Difficulty = models.ClampDifficulty(t.Metadata.Difficulty)
	if !t.Metadata.Risk.Valid() {
		t.Metadata.Risk = models.RiskLow
	}
	t.AssignedTo, t.Error, t.BlockedReason = "", "", ""
	t.Result, t.CompletedAt = nil, nil
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	o.tasks[t.ID] = t
	o.order = append(o.order, t.ID)
	o.nextSeq++
	o.seqs[t.ID] = o.nextSeq

	for _, dep := range t.Dependencies {
		if d := o.tasks[o.resolveLocked(dep)]; d.Status == models.TaskStatusBlocked {
			o.blockLocked(t, "dependency "+dep+" is blocked")
			o.notifyLocked()
			return nil
		}
	}

	o.queue.push(queueItem{id: t.ID, rank: t.Priority.Rank(), seq: o.seqs[t.ID]})
	debugLog("[queue] queued %s (priority %s, seq %d, deps %v)", t.ID, t.Priority, o.seqs[t.ID], t.Dependencies)
	o.saveTaskLocked(t)
	o.emitLocked(Event{Type: EventTaskQueued, TaskID: t.ID, TaskTitle: t.Title, PlanID: t.PlanID, Phase: t.Phase})
	if m := o.opts.metrics; m != nil {
		snap := t.Clone()
		o.later(func() { m.TaskQueued(context.Background(), snap) })
	}
	o.sendLocked(models.RolePrediction, t.ID, models.PredictionRequest{Task: *t.Clone()})
	o.notifyLocked()
	return nil
}

// resolveLocked follows simplified replacements to the task that now
// stands for id.
func (o *Orchestrator) resolveLocked(id string) string {
	for i := 0; i <= len(o.replacedBy); i++ {
		next, ok := o.replacedBy[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

func (o *Orchestrator) depsSatisfiedLocked(t *models.Task) bool {
	for _, dep := range t.Dependencies {
		d := o.tasks[o.resolveLocked(dep)]
		if d == nil || d.Status != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// later queues f to run after the lock is released.
func (o *Orchestrator) later(f func()) {
	o.pending = append(o.pending, f)
}

// unlock releases the lock and runs the side effects queued under it.
func (o *Orchestrator) unlock() {
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

// notifyLocked wakes every goroutine waiting for a state change.
func (o *Orchestrator) notifyLocked() {
	close(o.changed)
	o.changed = make(chan struct{})
}

func (o *Orchestrator) emitLocked(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.opts.now()
	}
	o.later(func() { o.events.Emit(ev) })
}

func (o *Orchestrator) saveTaskLocked(t *models.Task) {
	s := o.opts.store
	if s == nil {
		return
	}
	snap := t.Clone()
	o.later(func() {
		if err := s.SaveTask(context.Background(), snap); err != nil {
			log.Printf("[orchestrator] warning: failed to persist task %s: %v", snap.ID, err)
		}
	})
}

func (o *Orchestrator) saveMessageLocked(msg models.Message) {
	s := o.opts.store
	if s == nil {
		return
	}
	o.later(func() {
		if err := s.SaveMessage(context.Background(), msg); err != nil {
			log.Printf("[orchestrator] warning: failed to persist message %s: %v", msg.ID, err)
		}
	})
}

// sendLocked posts a request to the first available worker of role.
// It reports false when no such worker is registered.
func (o *Orchestrator) sendLocked(role models.WorkerRole, taskID string, payload models.Payload) bool {
	for _, id := range o.workerOrder {
		e := o.workers[id]
		if e.status.Role != role || !e.status.State.Available() {
			continue
		}
		msg := models.NewMessage(ID, taskID, payload)
		w := e.worker
		o.saveMessageLocked(msg)
		o.later(func() { w.Post(msg) })
		return true
	}
	return false
}

// roleAvailableLocked reports whether any worker of role may accept work.
func (o *Orchestrator) roleAvailableLocked(role models.WorkerRole) bool {
	for _, e := range o.workersByRoleLocked(role) {
		if e.status.State.Available() {
			return true
		}
	}
	return false
}

// workersByRole returns the registered workers of role, in registration order.
func (o *Orchestrator) workersByRoleLocked(role models.WorkerRole) []*workerEntry {
	var out []*workerEntry
	for _, id := range o.workerOrder {
		if e := o.workers[id]; e.status.Role == role {
			out = append(out, e)
		}
	}
	return out
}

// sortedArtifactKeys returns the keys of m in lexical order.
func sortedArtifactKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
