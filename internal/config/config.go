// Package config handles configuration loading and management for autopilot.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// ProjectConfigName is the file name of the per-project config.
const ProjectConfigName = ".autopilot.yaml"

// EnvPrefix prefixes every environment override, e.g.
// AUTOPILOT_ORCHESTRATOR_EXECUTION_WORKERS.
const EnvPrefix = "AUTOPILOT"

// Config holds all configuration for autopilot.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Prediction   PredictionConfig   `mapstructure:"prediction"`
	Healing      HealingConfig      `mapstructure:"healing"`
	Validation   ValidationConfig   `mapstructure:"validation"`
	State        StateConfig        `mapstructure:"state"`
	Knowledge    KnowledgeConfig    `mapstructure:"knowledge"`
	Git          GitConfig          `mapstructure:"git"`
	TUI          TUIConfig          `mapstructure:"tui"`
	Log          LogConfig          `mapstructure:"log"`
}

// OrchestratorConfig sizes the scheduler and the execution pool.
type OrchestratorConfig struct {
	// ExecutionWorkers is the number of execution workers in the pool.
	ExecutionWorkers int `mapstructure:"execution_workers"`
	// MaxTasksPerWorker caps concurrent tasks per worker. Zero means the
	// worker's own capacity.
	MaxTasksPerWorker int `mapstructure:"max_tasks_per_worker"`
	// WorkerCapacity is the number of task slots each execution worker reports.
	WorkerCapacity int           `mapstructure:"worker_capacity"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
	MailboxSize    int           `mapstructure:"mailbox_size"`
}

// PredictionConfig holds prediction engine settings.
type PredictionConfig struct {
	LookAheadWindow time.Duration `mapstructure:"look_ahead_window"`
	CacheSize       int64         `mapstructure:"cache_size"`
}

// HealingConfig gates automatic application of fixes.
type HealingConfig struct {
	AutoApply           bool   `mapstructure:"auto_apply"`
	ConfidenceThreshold int    `mapstructure:"confidence_threshold"`
	MaxRiskLevel        string `mapstructure:"max_risk_level"`
	// RulesFile is an optional YAML file of extra rules, relative to the
	// project root when not absolute.
	RulesFile string `mapstructure:"rules_file"`
}

// ValidationConfig holds quality settings.
type ValidationConfig struct {
	QualityThreshold float64 `mapstructure:"quality_threshold"`
	// GatePhases fails a plan phase whose average quality is below the
	// plan's minimum.
	GatePhases bool `mapstructure:"gate_phases"`
}

// StateConfig locates the history database.
type StateConfig struct {
	// Path is the SQLite file. Empty means .autopilot/state.db in the project.
	Path string `mapstructure:"path"`
}

// KnowledgeConfig locates the long-term learning database.
type KnowledgeConfig struct {
	// Path is the SQLite file. Empty means .autopilot/knowledge.db in the project.
	Path string `mapstructure:"path"`
}

// GitConfig controls the post-phase commit hook.
type GitConfig struct {
	AutoCommit bool `mapstructure:"auto_commit"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// DebugFile enables the scheduler debug log when set.
	DebugFile string `mapstructure:"debug_file"`
}

// Load loads configuration for the project in the current directory.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadProject(cwd)
}

// LoadProject loads configuration for the project at root.
// Precedence (highest to lowest):
// 1. Environment variables (AUTOPILOT_*)
// 2. Project config (.autopilot.yaml in root or a parent)
// 3. User config (~/.config/autopilot/config.yaml)
// 4. Built-in defaults
func LoadProject(root string) (*Config, error) {
	v := newViper()

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(root); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		// Project config takes precedence over the user config.
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific file. Environment
// overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

// newViper returns a viper with defaults and environment overrides set up.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in paths
	cfg.State.Path = os.ExpandEnv(cfg.State.Path)
	cfg.Knowledge.Path = os.ExpandEnv(cfg.Knowledge.Path)
	cfg.Healing.RulesFile = os.ExpandEnv(cfg.Healing.RulesFile)
	cfg.Log.DebugFile = os.ExpandEnv(cfg.Log.DebugFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	switch {
	case c.Orchestrator.ExecutionWorkers < 1:
		return fmt.Errorf("orchestrator.execution_workers must be at least 1, got %d", c.Orchestrator.ExecutionWorkers)
	case c.Orchestrator.MaxTasksPerWorker < 0:
		return fmt.Errorf("orchestrator.max_tasks_per_worker must not be negative, got %d", c.Orchestrator.MaxTasksPerWorker)
	case c.Orchestrator.WorkerCapacity < 1:
		return fmt.Errorf("orchestrator.worker_capacity must be at least 1, got %d", c.Orchestrator.WorkerCapacity)
	case c.Orchestrator.TaskTimeout <= 0:
		return fmt.Errorf("orchestrator.task_timeout must be positive, got %v", c.Orchestrator.TaskTimeout)
	case c.Orchestrator.MailboxSize < 1:
		return fmt.Errorf("orchestrator.mailbox_size must be at least 1, got %d", c.Orchestrator.MailboxSize)
	case c.Prediction.LookAheadWindow <= 0:
		return fmt.Errorf("prediction.look_ahead_window must be positive, got %v", c.Prediction.LookAheadWindow)
	case c.Healing.ConfidenceThreshold < 0 || c.Healing.ConfidenceThreshold > 100:
		return fmt.Errorf("healing.confidence_threshold must be within 0..100, got %d", c.Healing.ConfidenceThreshold)
	case !models.RiskLevel(c.Healing.MaxRiskLevel).Valid():
		return fmt.Errorf("healing.max_risk_level %q is not one of low, medium, high", c.Healing.MaxRiskLevel)
	case c.Validation.QualityThreshold < 0 || c.Validation.QualityThreshold > 100:
		return fmt.Errorf("validation.quality_threshold must be within 0..100, got %v", c.Validation.QualityThreshold)
	case c.TUI.RefreshRate <= 0:
		return fmt.Errorf("tui.refresh_rate must be positive, got %v", c.TUI.RefreshRate)
	}
	return nil
}

// StatePath returns the history database for the project at root.
func (c *Config) StatePath(root string) string {
	return resolve(root, c.State.Path, filepath.Join(".autopilot", "state.db"))
}

// KnowledgePath returns the learning database for the project at root.
func (c *Config) KnowledgePath(root string) string {
	return resolve(root, c.Knowledge.Path, filepath.Join(".autopilot", "knowledge.db"))
}

// RulesPath returns the healing rules file, or "" when none is configured.
func (c *Config) RulesPath(root string) string {
	if c.Healing.RulesFile == "" {
		return ""
	}
	return resolve(root, c.Healing.RulesFile, "")
}

func resolve(root, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes the configuration to path, replacing any existing file.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for _, key := range Keys() {
		value, err := Get(cfg, key)
		if err != nil {
			return err
		}
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config for root, or "" if there is none.
func GetProjectConfigPath(root string) string {
	return findProjectConfig(root)
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()
	for _, key := range Keys() {
		value, _ := Get(d, key)
		if dur, ok := value.(time.Duration); ok {
			value = dur.String()
		}
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for autopilot.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "autopilot")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "autopilot")
	}
	return filepath.Join(home, ".config", "autopilot")
}

// findProjectConfig searches for .autopilot.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			ExecutionWorkers:  4,
			MaxTasksPerWorker: 0,
			WorkerCapacity:    2,
			TaskTimeout:       5 * time.Minute,
			MailboxSize:       256,
		},
		Prediction: PredictionConfig{
			LookAheadWindow: 5 * time.Minute,
			CacheSize:       1024,
		},
		Healing: HealingConfig{
			AutoApply:           false,
			ConfidenceThreshold: 80,
			MaxRiskLevel:        string(models.RiskMedium),
		},
		Validation: ValidationConfig{
			QualityThreshold: 70,
			GatePhases:       false,
		},
		Git: GitConfig{
			AutoCommit: false,
		},
		TUI: TUIConfig{
			RefreshRate: 250 * time.Millisecond,
		},
	}
}
