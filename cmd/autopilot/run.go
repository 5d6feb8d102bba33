package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Camier/2SEARX2COOL-sub001/internal/app"
	"github.com/Camier/2SEARX2COOL-sub001/internal/orchestrator"
	"github.com/Camier/2SEARX2COOL-sub001/internal/telemetry"
	"github.com/Camier/2SEARX2COOL-sub001/internal/tui"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

var (
	runPlanFile string
	runTUI      bool
)

var runCmd = &cobra.Command{
	Use:   "run [directory]",
	Short: "Execute a refactoring plan",
	Long: `Execute a refactoring plan against the project, phase by phase.

Without --plan, the project is analyzed and a fresh plan is created.
While the run is in progress, 'autopilot signal pause|resume|stop' from
another terminal controls it.

Examples:
  autopilot run                       # Plan and run the current directory
  autopilot run --plan plan.yaml      # Run an edited plan
  autopilot run ./svc --tui           # Watch the run in the dashboard`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPlanFile, "plan", "", "Plan file created by 'autopilot plan'")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the interactive dashboard")
}

func runRun(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadProject(args)
	if err != nil {
		return err
	}

	var plan *models.Plan
	if runPlanFile != "" {
		plan, err = readPlan(runPlanFile)
	} else {
		plan, err = createPlan(root)
	}
	if err != nil {
		return err
	}
	if plan.ProjectPath == "" {
		plan.ProjectPath = root
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, root, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Orchestrator.ValidatePlan(plan); err != nil {
		return err
	}
	if err := cancelInterrupted(ctx, a); err != nil {
		return err
	}

	if runTUI {
		err = runWithDashboard(ctx, a, plan)
	} else {
		printPlanSummary(plan)
		fmt.Println()
		err = runWithLog(ctx, a, plan)
	}

	summary, serr := a.Telemetry.Collect(context.Background())
	if serr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", serr)
	}
	paused, pauses := a.Orchestrator.PausedFor()
	printRunSummary(plan, a.Orchestrator.GetMetrics(), a.Orchestrator.CheckHealth(), summary)
	if pauses > 0 {
		fmt.Printf("  Paused %d time(s), %s in total\n", pauses, paused.Round(time.Second))
	}

	if errors.Is(err, context.Canceled) {
		return errors.New("run cancelled")
	}
	return err
}

// cancelInterrupted marks plans left in progress by a previous process as
// cancelled. Their completed tasks stay in the history.
func cancelInterrupted(ctx context.Context, a *app.App) error {
	interrupted, err := a.State.CheckForInterrupted(ctx)
	if err != nil {
		return err
	}
	for _, in := range interrupted {
		printStatus("⚠", fmt.Sprintf("Plan %s was interrupted (%d tasks unfinished); marking it cancelled",
			in.Plan.ID, len(in.Tasks)), color.FgYellow)
		if err := a.State.MarkCancelled(ctx, in.Plan.ID); err != nil {
			return err
		}
	}
	return nil
}

func runWithLog(ctx context.Context, a *app.App, plan *models.Plan) error {
	events := a.Orchestrator.Events()
	done := make(chan struct{})
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				printEvent(ev)
			case <-done:
				for {
					select {
					case ev, ok := <-events:
						if !ok {
							return
						}
						printEvent(ev)
					default:
						return
					}
				}
			}
		}
	}()

	err := a.ExecutePlan(ctx, plan)
	close(done)
	<-printed
	return err
}

func runWithDashboard(ctx context.Context, a *app.App, plan *models.Plan) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p, _ := tui.NewProgram(a.Orchestrator, tui.Options{
		Title:       "autopilot: " + plan.Name,
		RefreshRate: a.Config.TUI.RefreshRate,
		OnQuit:      cancel,
	})
	go tui.Forward(runCtx, p, a.Orchestrator.Events())

	result := make(chan error, 1)
	go func() {
		err := a.ExecutePlan(runCtx, plan)
		p.Send(tui.DoneMsg{Err: err})
		result <- err
	}()

	_, perr := p.Run()
	cancel()
	err := <-result
	if perr != nil {
		return fmt.Errorf("dashboard: %w", perr)
	}
	return err
}

func printEvent(ev orchestrator.Event) {
	subject := ev.TaskID
	if ev.TaskTitle != "" {
		subject += " " + color.New(color.Faint).Sprint(ev.TaskTitle)
	}
	detail := ev.Message
	if ev.Error != nil {
		detail = strings.TrimSpace(detail + " " + ev.Error.Error())
	}
	if detail != "" {
		detail = ": " + detail
	}

	switch ev.Type {
	case orchestrator.EventPhaseStarted:
		color.New(color.Bold, color.FgMagenta).Printf("▶ Phase %s\n", ev.Phase)
	case orchestrator.EventPhaseCompleted:
		printStatus("■", fmt.Sprintf("Phase %s settled%s", ev.Phase, detail), color.FgMagenta)
	case orchestrator.EventTaskStarted:
		printStatus("→", fmt.Sprintf("%s on %s", subject, ev.WorkerID), color.FgBlue)
	case orchestrator.EventTaskCompleted:
		printStatus("✓", fmt.Sprintf("%s (%s)", subject, ev.Duration.Round(1e6)), color.FgGreen)
	case orchestrator.EventTaskFailed:
		printStatus("✗", subject+detail, color.FgRed)
	case orchestrator.EventTaskSimplified:
		printStatus("↻", subject+detail, color.FgYellow)
	case orchestrator.EventTaskBlocked:
		printStatus("⊘", subject+detail, color.FgRed)
	case orchestrator.EventValidation:
		printStatus("◆", subject+detail, color.FgCyan)
	case orchestrator.EventHealing:
		printStatus("✚", subject+detail, color.FgYellow)
	case orchestrator.EventPaused:
		printStatus("⏸", "Paused", color.FgYellow)
	case orchestrator.EventResumed:
		printStatus("▶", "Resumed", color.FgYellow)
	case orchestrator.EventPlanCancelled:
		printStatus("✗", "Plan cancelled"+detail, color.FgRed)
	case orchestrator.EventPlanCompleted:
		printStatus("✓", "Plan completed", color.FgGreen)
	}
}

func printRunSummary(plan *models.Plan, m models.SystemMetrics, health models.HealthReport, s telemetry.Summary) {
	fmt.Println()
	color.New(color.Bold).Printf("Plan %s: %s\n", plan.ID, plan.Status)
	fmt.Printf("  Tasks: %d completed, %d blocked, %d total\n", m.CompletedTasks, m.BlockedTasks, m.TotalTasks)
	fmt.Printf("  Failed attempts: %d\n", m.FailedTasks)
	fmt.Printf("  Throughput: %.1f tasks/min over %s\n", m.TasksPerMinute, m.Uptime.Round(1e9))
	fmt.Printf("  Success rate: %.0f%%, healing rate: %.0f%%\n", m.SuccessRate*100, m.HealingRate*100)
	if m.Health.ValidatedTasks > 0 {
		fmt.Printf("  Quality: %.1f average over %d validated tasks\n", m.Health.AverageQuality, m.Health.ValidatedTasks)
	}
	if h, ok := s.Histograms[telemetry.TaskDuration]; ok && h.Count > 0 {
		fmt.Printf("  Mean task duration: %.2fs\n", h.Mean())
	}
	if n := s.Counters[telemetry.HealingApplied]; n > 0 {
		fmt.Printf("  Fixes applied: %d of %d proposed\n", n, s.Counters[telemetry.HealingProposed])
	}

	if health.Healthy {
		printStatus("✓", "Healthy", color.FgGreen)
		return
	}
	for _, issue := range health.Issues {
		printStatus("⚠", issue, color.FgYellow)
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
