// Package app assembles the orchestrator, its workers and the supporting
// services for one project, and runs them together.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/internal/config"
	iexec "github.com/Camier/2SEARX2COOL-sub001/internal/exec"
	"github.com/Camier/2SEARX2COOL-sub001/internal/execution"
	"github.com/Camier/2SEARX2COOL-sub001/internal/git"
	"github.com/Camier/2SEARX2COOL-sub001/internal/healing"
	"github.com/Camier/2SEARX2COOL-sub001/internal/knowledge"
	"github.com/Camier/2SEARX2COOL-sub001/internal/orchestrator"
	"github.com/Camier/2SEARX2COOL-sub001/internal/prediction"
	"github.com/Camier/2SEARX2COOL-sub001/internal/protect"
	"github.com/Camier/2SEARX2COOL-sub001/internal/signals"
	"github.com/Camier/2SEARX2COOL-sub001/internal/state"
	"github.com/Camier/2SEARX2COOL-sub001/internal/telemetry"
	"github.com/Camier/2SEARX2COOL-sub001/internal/validation"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// MessageRetention is how long worker messages are kept in the history
// database. Older ones are purged when an App is created.
const MessageRetention = 30 * 24 * time.Hour

// Engine worker IDs.
const (
	PredictionWorkerID = "prediction-1"
	ValidationWorkerID = "validation-1"
	HealingWorkerID    = "healing-1"
)

// App is one project's running system.
type App struct {
	Root         string
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Pool         *execution.Pool
	Prediction   *prediction.Engine
	Validation   *validation.Engine
	Healing      *healing.Engine
	State        *state.DB
	Knowledge    *knowledge.Store
	Telemetry    *telemetry.Provider

	actors []*bus.Actor
	logger *orchestrator.DebugLogger
	signal bool
}

// Option configures New.
type Option func(*settings)

type settings struct {
	store   execution.ArtifactStore
	runner  iexec.CommandRunner
	signals bool
}

// WithArtifactStore replaces the project directory as the store the
// execution workers read and write.
func WithArtifactStore(s execution.ArtifactStore) Option {
	return func(o *settings) { o.store = s }
}

// WithCommandRunner sets the runner used for the project's test command
// and for git.
func WithCommandRunner(r iexec.CommandRunner) Option {
	return func(o *settings) { o.runner = r }
}

// WithSignals enables or disables the signal file watcher. It is on by
// default.
func WithSignals(enabled bool) Option {
	return func(o *settings) { o.signals = enabled }
}

// New builds the system for the project at root. Every worker is
// registered with the orchestrator; nothing runs until Run.
func New(ctx context.Context, root string, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	s := settings{signals: true}
	for _, opt := range opts {
		opt(&s)
	}
	if s.runner == nil {
		s.runner = iexec.NewRunner()
	}

	a := &App{Root: root, Config: cfg, signal: s.signals}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger := orchestrator.NopLogger()
	if cfg.Log.DebugFile != "" {
		path := cfg.Log.DebugFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if logger, err = orchestrator.NewDebugLogger(path); err != nil {
			return nil, err
		}
	}
	a.logger = logger

	if a.State, err = state.Open(cfg.StatePath(root)); err != nil {
		return nil, err
	}
	if err = a.State.Migrate(); err != nil {
		return nil, err
	}
	if _, err := a.State.PurgeMessages(MessageRetention); err != nil {
		logger.Log("purge messages: %v", err)
	}

	if a.Knowledge, err = knowledge.Open(cfg.KnowledgePath(root)); err != nil {
		return nil, err
	}

	a.Telemetry = telemetry.NewProvider()
	metrics, err := telemetry.NewMetrics(a.Telemetry.MeterProvider())
	if err != nil {
		return nil, err
	}

	detector := protect.New()
	if err = detector.LoadConfig(filepath.Join(root, config.ProjectConfigName)); err != nil {
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithMailboxSize(cfg.Orchestrator.MailboxSize),
		orchestrator.WithMaxTasksPerWorker(cfg.Orchestrator.MaxTasksPerWorker),
		orchestrator.WithPhaseGate(cfg.Validation.GatePhases),
		orchestrator.WithLogger(logger),
		orchestrator.WithStateStore(a.State),
		orchestrator.WithOutcomeRecorder(a.Knowledge),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithProtector(detector),
	}
	if cfg.Git.AutoCommit {
		committer := git.NewCommitter(git.NewRunner(root, s.runner))
		orchOpts = append(orchOpts, orchestrator.WithPhaseHook(committer.AfterPhase))
	}
	a.Orchestrator = orchestrator.New(orchOpts...)

	if err = a.buildEngines(ctx, cfg, root, detector); err != nil {
		return nil, err
	}

	store := s.store
	if store == nil {
		if store, err = execution.NewDirStore(root); err != nil {
			return nil, err
		}
	}
	testCmd := orchestrator.GetProjectTypeInfo(root).TestCommandLine()
	a.Pool = execution.NewPool(cfg.Orchestrator.ExecutionWorkers, store, a.Orchestrator,
		execution.WithCapacity(cfg.Orchestrator.WorkerCapacity),
		execution.WithTimeout(cfg.Orchestrator.TaskTimeout),
		execution.WithHandler(models.TaskTypeValidate, execution.ValidateHandler(s.runner, root, testCmd)),
	)

	for _, w := range a.Pool.Workers() {
		if err = a.Orchestrator.Register(w); err != nil {
			return nil, err
		}
	}
	for _, actor := range a.actors {
		if err = a.Orchestrator.Register(actor); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) buildEngines(ctx context.Context, cfg *config.Config, root string, detector *protect.Detector) error {
	var err error
	a.Prediction, err = prediction.NewEngine(ctx,
		prediction.WithLookAheadWindow(cfg.Prediction.LookAheadWindow),
		prediction.WithCacheSize(cfg.Prediction.CacheSize),
		prediction.WithLearningStore(a.Knowledge),
	)
	if err != nil {
		return err
	}

	vcfg := validation.DefaultConfig()
	vcfg.QualityThreshold = cfg.Validation.QualityThreshold
	a.Validation = validation.NewEngine(vcfg)

	var rules []healing.Rule
	if path := cfg.RulesPath(root); path != "" {
		if rules, err = healing.LoadRules(path); err != nil {
			return err
		}
	}
	a.Healing = healing.NewEngine(healing.Config{
		AutoApply:           cfg.Healing.AutoApply,
		ConfidenceThreshold: cfg.Healing.ConfidenceThreshold,
		MaxRisk:             models.RiskLevel(cfg.Healing.MaxRiskLevel),
	}, healing.WithRules(rules...), healing.WithProtector(detector))

	size := cfg.Orchestrator.MailboxSize
	a.actors = []*bus.Actor{
		prediction.NewWorker(PredictionWorkerID, a.Prediction, size, a.Orchestrator),
		validation.NewWorker(ValidationWorkerID, a.Validation, size, a.Orchestrator),
		healing.NewWorker(HealingWorkerID, a.Healing, size, a.Orchestrator),
	}
	return nil
}

// Run starts the orchestrator, the workers and the signal watcher, calls
// fn, and stops everything once fn returns. A stop signal cancels the
// context fn receives.
func (a *App) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return a.Orchestrator.Run(gctx) })
	g.Go(func() error { return a.Pool.Run(gctx) })
	for _, actor := range a.actors {
		g.Go(func() error { return actor.Run(gctx) })
	}
	if a.signal {
		if err := signals.Clear(a.Root); err != nil {
			return fmt.Errorf("clear signals: %w", err)
		}
		w, err := signals.NewWatcher(a.Root, a.Orchestrator, cancel)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	err := fn(gctx)
	cancel()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) && err == nil {
		err = werr
	}
	return err
}

// ExecutePlan runs a plan to completion.
func (a *App) ExecutePlan(ctx context.Context, plan *models.Plan) error {
	return a.Run(ctx, func(ctx context.Context) error {
		return a.Orchestrator.ExecutePlan(ctx, plan)
	})
}

// Close releases every resource New acquired.
func (a *App) Close() error {
	var errs []error
	if a.Orchestrator != nil {
		errs = append(errs, a.Orchestrator.Close())
	} else if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	if a.Prediction != nil {
		a.Prediction.Close()
	}
	if a.Telemetry != nil {
		errs = append(errs, a.Telemetry.Shutdown(context.Background()))
	}
	if a.Knowledge != nil {
		errs = append(errs, a.Knowledge.Close())
	}
	if a.State != nil {
		errs = append(errs, a.State.Close())
	}
	return errors.Join(errs...)
}
