package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Camier/2SEARX2COOL-sub001/internal/knowledge"
	"github.com/Camier/2SEARX2COOL-sub001/internal/state"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [directory]",
	Short: "Show plan history and learning records",
	Long: `Display the project's recorded plans with their task counts, plans
left in progress by an interrupted run, and the long-term success rate of
each task category.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 5, "Number of recent plans to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadProject(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	dbPath := cfg.StatePath(root)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs recorded. Run 'autopilot run' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	interrupted, err := db.CheckForInterrupted(ctx)
	if err != nil {
		return err
	}
	for _, in := range interrupted {
		printStatus("⚠", fmt.Sprintf("Plan %s is in progress with %d unfinished tasks (interrupted unless a run is active)",
			in.Plan.ID, len(in.Tasks)), color.FgYellow)
	}

	plans, err := db.ListPlans(ctx)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Println("No plans recorded.")
	} else {
		color.New(color.Bold).Println("Recent Plans:")
		for _, p := range plans[:min(len(plans), max(statusLimit, 1))] {
			if err := displayPlan(ctx, db, p); err != nil {
				return err
			}
		}
	}

	kpath := cfg.KnowledgePath(root)
	if _, err := os.Stat(kpath); err != nil {
		return nil
	}
	store, err := knowledge.Open(kpath)
	if err != nil {
		return err
	}
	defer store.Close()
	return displayOutcomes(ctx, store)
}

func displayPlan(ctx context.Context, db *state.DB, p *models.Plan) error {
	tasks, err := db.ListTasks(ctx, state.TaskFilter{PlanID: p.ID})
	if err != nil {
		return err
	}
	counts := make(map[models.TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}

	statusColor := color.FgWhite
	switch p.Status {
	case models.PlanCompleted:
		statusColor = color.FgGreen
	case models.PlanCancelled:
		statusColor = color.FgRed
	case models.PlanInProgress:
		statusColor = color.FgYellow
	}
	fmt.Printf("  %s %s  %s  %s ago\n",
		color.New(statusColor).Sprintf("%-11s", p.Status), p.ID, p.Name, formatDuration(time.Since(p.CreatedAt)))
	fmt.Printf("      %d tasks: %d completed, %d blocked, %d pending\n",
		len(tasks), counts[models.TaskStatusCompleted], counts[models.TaskStatusBlocked],
		counts[models.TaskStatusPending]+counts[models.TaskStatusInProgress]+counts[models.TaskStatusFailed])
	return nil
}

func displayOutcomes(ctx context.Context, store *knowledge.Store) error {
	outcomes, err := store.Outcomes(ctx)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		return nil
	}
	fmt.Println()
	color.New(color.Bold).Println("Category Outcomes:")
	for _, o := range outcomes {
		fmt.Printf("  %-16s %3.0f%%  (%d completed, %d failed)\n",
			o.Category, o.SuccessRate()*100, o.Completed, o.Failed)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
