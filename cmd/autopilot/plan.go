package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

var planOutput string

var planCmd = &cobra.Command{
	Use:   "plan [directory]",
	Short: "Create a refactoring plan",
	Long: `Analyze the project and print the refactoring plan built from the
analysis as YAML. The plan can be edited and then executed with
'autopilot run --plan <file>'.

Examples:
  autopilot plan                  # Print the plan for the current directory
  autopilot plan ./svc -o plan.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "Write the plan to a file instead of stdout")
}

func runPlan(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	plan, err := createPlan(root)
	if err != nil {
		return err
	}

	if planOutput == "" {
		data, err := encodePlan(plan)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := writePlan(planOutput, plan); err != nil {
		return err
	}
	printPlanSummary(plan)
	fmt.Printf("\n%s Plan written to %s\n", color.GreenString("✓"), planOutput)
	return nil
}

// createPlan analyzes root and builds a plan from the analysis.
func createPlan(root string) (*models.Plan, error) {
	o, err := newAnalyzer(root)
	if err != nil {
		return nil, err
	}
	defer o.Close()

	analysis, err := o.AnalyzeProject(root)
	if err != nil {
		return nil, err
	}
	return o.CreateRefactoringPlan(analysis)
}

func encodePlan(plan *models.Plan) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return buf.Bytes(), nil
}

func writePlan(path string, plan *models.Plan) error {
	data, err := encodePlan(plan)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// readPlan loads a plan file. A plan file always starts as a draft.
func readPlan(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if plan.ID == "" {
		return nil, fmt.Errorf("plan %s has no id", path)
	}
	if plan.TaskCount() == 0 {
		return nil, fmt.Errorf("plan %s has no tasks", path)
	}
	plan.Status = models.PlanDraft
	return &plan, nil
}

func printPlanSummary(plan *models.Plan) {
	color.New(color.Bold).Printf("Plan %s: %s\n", plan.ID, plan.Name)
	fmt.Printf("  Risk: %s\n", plan.RiskLevel)
	fmt.Printf("  Tasks: %d in %d phase(s)\n", plan.TaskCount(), len(plan.Phases))
	for i, ph := range plan.Phases {
		fmt.Printf("  %d. %s (%d tasks, ~%s)\n", i+1, ph.Name, len(ph.Tasks), ph.EstimatedDuration)
		for _, t := range ph.Tasks {
			fmt.Printf("     - [%s] %s %s\n", t.Priority, t.ID, color.New(color.Faint).Sprint(t.Title))
		}
	}
	if plan.Rollback != "" {
		fmt.Printf("  Rollback: %s\n", plan.Rollback)
	}
}
