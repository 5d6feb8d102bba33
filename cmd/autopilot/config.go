package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Camier/2SEARX2COOL-sub001/internal/config"
)

var (
	configProject bool
	configForce   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View or modify autopilot configuration.

Configuration is stored at ~/.config/autopilot/config.yaml
Project-specific overrides can be placed in .autopilot.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show the effective configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, cfg, err := loadProject(nil)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			value, err := config.Get(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(config.Format(value))
			return nil
		}
		for _, key := range config.Keys() {
			value, _ := config.Get(cfg, key)
			fmt.Printf("%s: %s\n", key, config.Format(value))
		}
		fmt.Println()
		fmt.Printf("# user config:    %s\n", config.GetUserConfigPath())
		fmt.Printf("# project config: %s\n", config.GetProjectConfigPath(root))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user config, or with --project in
the project's .autopilot.yaml.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(nil)
		if err != nil {
			return err
		}
		path := config.GetUserConfigPath()
		if configProject {
			path = config.GetProjectConfigPath(root)
		}

		cfg := config.Default()
		if _, err := os.Stat(path); err == nil {
			if cfg, err = config.LoadFromPath(path); err != nil {
				return err
			}
		}
		if err := config.Set(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveTo(cfg, path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Set %s = %s in %s\n", args[0], args[1], path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create a project config and state directory",
	Long: `Write .autopilot.yaml with the default settings, create the
.autopilot directory and add its entries to .gitignore.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configSetCmd.Flags().BoolVar(&configProject, "project", false, "Write to the project config instead of the user config")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing project config")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(root, ".autopilot", "logs"), 0755); err != nil {
		return fmt.Errorf("creating .autopilot directory: %w", err)
	}
	printStatus("✓", "Created .autopilot directory structure", color.FgGreen)

	path := config.GetProjectConfigPath(root)
	if _, err := os.Stat(path); err == nil && !configForce {
		printStatus("⚠", config.ProjectConfigName+" exists (use --force to overwrite)", color.FgYellow)
	} else {
		if err := config.SaveTo(config.Default(), path); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		printStatus("✓", "Created "+config.ProjectConfigName, color.FgGreen)
	}

	if err := updateGitignore(root); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with autopilot entries", color.FgGreen)
	return nil
}

// gitignoreEntries are the generated paths that never belong in commits.
var gitignoreEntries = []string{
	".autopilot/*.db*",
	".autopilot/logs/",
	".autopilot/signals/",
}

// updateGitignore adds autopilot entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# autopilot\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}
	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}
