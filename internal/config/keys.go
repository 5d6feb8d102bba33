package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownKey is returned for a dotted key that is not a setting.
var ErrUnknownKey = errors.New("unknown config key")

// field binds a dotted key to one Config field.
type field struct {
	get func(c *Config) any
	set func(c *Config, raw string) error
}

var fields = map[string]field{
	"orchestrator.execution_workers":    intField(func(c *Config) *int { return &c.Orchestrator.ExecutionWorkers }),
	"orchestrator.max_tasks_per_worker": intField(func(c *Config) *int { return &c.Orchestrator.MaxTasksPerWorker }),
	"orchestrator.worker_capacity":      intField(func(c *Config) *int { return &c.Orchestrator.WorkerCapacity }),
	"orchestrator.task_timeout":         durationField(func(c *Config) *time.Duration { return &c.Orchestrator.TaskTimeout }),
	"orchestrator.mailbox_size":         intField(func(c *Config) *int { return &c.Orchestrator.MailboxSize }),
	"prediction.look_ahead_window":      durationField(func(c *Config) *time.Duration { return &c.Prediction.LookAheadWindow }),
	"prediction.cache_size": {
		get: func(c *Config) any { return c.Prediction.CacheSize },
		set: func(c *Config, raw string) error {
			n, err := strconv.ParseInt(raw, 10, 64)
			c.Prediction.CacheSize = n
			return err
		},
	},
	"healing.auto_apply":           boolField(func(c *Config) *bool { return &c.Healing.AutoApply }),
	"healing.confidence_threshold": intField(func(c *Config) *int { return &c.Healing.ConfidenceThreshold }),
	"healing.max_risk_level":       stringField(func(c *Config) *string { return &c.Healing.MaxRiskLevel }),
	"healing.rules_file":           stringField(func(c *Config) *string { return &c.Healing.RulesFile }),
	"validation.quality_threshold": {
		get: func(c *Config) any { return c.Validation.QualityThreshold },
		set: func(c *Config, raw string) error {
			f, err := strconv.ParseFloat(raw, 64)
			c.Validation.QualityThreshold = f
			return err
		},
	},
	"validation.gate_phases": boolField(func(c *Config) *bool { return &c.Validation.GatePhases }),
	"state.path":             stringField(func(c *Config) *string { return &c.State.Path }),
	"knowledge.path":         stringField(func(c *Config) *string { return &c.Knowledge.Path }),
	"git.auto_commit":        boolField(func(c *Config) *bool { return &c.Git.AutoCommit }),
	"tui.refresh_rate":       durationField(func(c *Config) *time.Duration { return &c.TUI.RefreshRate }),
	"log.debug_file":         stringField(func(c *Config) *string { return &c.Log.DebugFile }),
}

func intField(p func(*Config) *int) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, raw string) error {
			n, err := strconv.Atoi(raw)
			if err == nil {
				*p(c) = n
			}
			return err
		},
	}
}

func boolField(p func(*Config) *bool) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, raw string) error {
			b, err := strconv.ParseBool(raw)
			if err == nil {
				*p(c) = b
			}
			return err
		},
	}
}

func stringField(p func(*Config) *string) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, raw string) error {
			*p(c) = raw
			return nil
		},
	}
}

func durationField(p func(*Config) *time.Duration) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, raw string) error {
			d, err := time.ParseDuration(raw)
			if err == nil {
				*p(c) = d
			}
			return err
		},
	}
}

// Keys returns every dotted setting key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the typed value of a setting.
func Get(cfg *Config, key string) (any, error) {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.get(cfg), nil
}

// Set parses raw and stores it in the setting, then validates the result.
// On error cfg is left unchanged.
func Set(cfg *Config, key, raw string) error {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	next := *cfg
	if err := f.set(&next, strings.TrimSpace(raw)); err != nil {
		return fmt.Errorf("%s: invalid value %q: %w", key, raw, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// Format renders a value the way it would be written in a config file.
func Format(value any) string {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case string:
		if v == "" {
			return `""`
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}
