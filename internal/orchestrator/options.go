package orchestrator

import (
	"context"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/internal/protect"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// StateStore persists tasks, messages and plans for history and resume.
type StateStore interface {
	SaveTask(ctx context.Context, task *models.Task) error
	SaveMessage(ctx context.Context, msg models.Message) error
	SavePlan(ctx context.Context, plan *models.Plan) error
}

// OutcomeRecorder keeps long-term success statistics per task category.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, category string, success bool) error
}

// MetricsRecorder receives scheduling measurements.
type MetricsRecorder interface {
	TaskQueued(ctx context.Context, task *models.Task)
	TaskFinished(ctx context.Context, task *models.Task, elapsed time.Duration)
	ValidationScored(ctx context.Context, report models.ValidationReport)
	HealingProposed(ctx context.Context, n int)
	HealingApplied(ctx context.Context, n int)
}

// PhaseHook runs after a phase completes successfully. It is fire and
// forget: errors are logged and never fail the plan.
type PhaseHook func(ctx context.Context, plan *models.Plan, phase *models.Phase) error

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*options)

type options struct {
	mailboxSize       int
	eventBuffer       int
	maxTasksPerWorker int
	gatePhases        bool
	validationWait    time.Duration
	logger            *DebugLogger
	store             StateStore
	outcomes          OutcomeRecorder
	metrics           MetricsRecorder
	phaseHook         PhaseHook
	protector         *protect.Detector
	ignore            []string
	now               func() time.Time
}

func defaultOptions() options {
	return options{
		mailboxSize:    256,
		eventBuffer:    256,
		validationWait: 30 * time.Second,
		now:            time.Now,
	}
}

// WithMailboxSize sets the buffer size of the orchestrator's mailbox.
func WithMailboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.mailboxSize = n
		}
	}
}

// WithEventBuffer sets the buffer size of the events channel.
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// WithMaxTasksPerWorker caps assignments per execution worker below the
// capacity the worker reports. Zero uses the reported capacity.
func WithMaxTasksPerWorker(n int) Option {
	return func(o *options) { o.maxTasksPerWorker = n }
}

// WithPhaseGate makes ExecutePlan fail a phase whose average validation
// quality is below the plan's MinQualityScore.
func WithPhaseGate(enabled bool) Option {
	return func(o *options) { o.gatePhases = enabled }
}

// WithValidationWait bounds how long a phase waits for the reply to a
// validation or healing request that was sent. A task whose report has
// not arrived by then counts as unscored.
func WithValidationWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.validationWait = d
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithStateStore persists every task change, message and plan.
func WithStateStore(s StateStore) Option {
	return func(o *options) { o.store = s }
}

// WithOutcomeRecorder records task outcomes per category.
func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(o *options) { o.outcomes = r }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithPhaseHook sets the hook run after each successful phase.
func WithPhaseHook(h PhaseHook) Option {
	return func(o *options) { o.phaseHook = h }
}

// WithProtector sets the detector the analyzer uses for risk factors.
func WithProtector(d *protect.Detector) Option {
	return func(o *options) { o.protector = d }
}

// WithIgnore adds doublestar patterns the analyzer skips.
func WithIgnore(patterns ...string) Option {
	return func(o *options) { o.ignore = append(o.ignore, patterns...) }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
