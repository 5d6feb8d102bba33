package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Camier/2SEARX2COOL-sub001/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Autonomous refactoring orchestrator",
	Long: `Autopilot analyzes a project, turns the analysis into a phased
refactoring plan and executes it with a pool of workers.

Every task is scored by the prediction engine before it runs. Produced
artifacts are validated, and the healing engine proposes fixes for
failures and quality issues.

Settings come from ~/.config/autopilot/config.yaml, the project's
.autopilot.yaml and AUTOPILOT_* environment variables. A .env file in the
working directory is loaded first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(".env")
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// projectRoot resolves the optional directory argument.
func projectRoot(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// loadProject resolves the project root and loads its configuration.
func loadProject(args []string) (string, *config.Config, error) {
	root, err := projectRoot(args)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.LoadProject(root)
	if err != nil {
		return "", nil, fmt.Errorf("load config: %w", err)
	}
	return root, cfg, nil
}
