package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Camier/2SEARX2COOL-sub001/internal/config"
	"github.com/Camier/2SEARX2COOL-sub001/internal/orchestrator"
	"github.com/Camier/2SEARX2COOL-sub001/internal/protect"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

var analyzeYAML bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [directory]",
	Short: "Analyze a project's structure",
	Long: `Walk the project and report its type, file counts, dependency
inventory, missing artifacts, protected files and risk factors.

The directory argument is optional and defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeYAML, "yaml", false, "Print the full analysis as YAML")
}

// newAnalyzer returns an orchestrator used only for analysis and planning,
// with the project's protected areas loaded.
func newAnalyzer(root string) (*orchestrator.Orchestrator, error) {
	detector := protect.New()
	if err := detector.LoadConfig(filepath.Join(root, config.ProjectConfigName)); err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.WithProtector(detector)), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	o, err := newAnalyzer(root)
	if err != nil {
		return err
	}
	defer o.Close()

	analysis, err := o.AnalyzeProject(root)
	if err != nil {
		return err
	}

	if analyzeYAML {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(analysis)
	}
	printAnalysis(analysis)
	return nil
}

func printAnalysis(a *models.ProjectAnalysis) {
	bold := color.New(color.Bold)
	bold.Printf("Project: %s\n", a.Path)
	fmt.Printf("  Type: %s\n", a.ProjectType)
	fmt.Printf("  Files: %d (%d tests)\n", a.TotalFiles, a.TestFiles)
	fmt.Printf("  Completion: %.0f%%\n", a.CompletionRatio*100)

	if len(a.FilesByType) > 0 {
		exts := make([]string, 0, len(a.FilesByType))
		for ext := range a.FilesByType {
			exts = append(exts, ext)
		}
		sort.Slice(exts, func(i, j int) bool {
			if a.FilesByType[exts[i]] != a.FilesByType[exts[j]] {
				return a.FilesByType[exts[i]] > a.FilesByType[exts[j]]
			}
			return exts[i] < exts[j]
		})
		fmt.Println("  By type:")
		for _, ext := range exts[:min(len(exts), 8)] {
			fmt.Printf("    %-10s %d\n", ext, a.FilesByType[ext])
		}
	}

	if len(a.Dependencies) > 0 {
		fmt.Printf("  Dependencies: %d\n", len(a.Dependencies))
	}
	printList("Missing artifacts", a.MissingArtifacts, color.FgYellow)
	printList("Protected files", a.ProtectedFiles, color.FgCyan)
	printList("Risk factors", a.RiskFactors, color.FgRed)

	if len(a.LargeFiles) > 0 {
		fmt.Println("  Large files:")
		for _, f := range a.LargeFiles {
			fmt.Printf("    %s (%d lines)\n", f.Path, f.Lines)
		}
	}

	r := a.Recommendations
	if len(r.Immediate)+len(r.ShortTerm)+len(r.LongTerm) > 0 {
		fmt.Println()
		bold.Println("Recommendations:")
		printList("Immediate", r.Immediate, color.FgRed)
		printList("Short term", r.ShortTerm, color.FgYellow)
		printList("Long term", r.LongTerm, color.FgGreen)
	}
}

func printList(title string, items []string, attr color.Attribute) {
	if len(items) == 0 {
		return
	}
	c := color.New(attr)
	fmt.Printf("  %s:\n", title)
	for _, item := range items {
		fmt.Printf("    %s %s\n", c.Sprint("•"), item)
	}
}
