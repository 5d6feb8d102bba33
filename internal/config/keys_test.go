package config

import (
	"errors"
	"testing"
	"time"
)

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(fields) {
		t.Fatalf("Keys() returned %d keys, want %d", len(keys), len(fields))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("keys not sorted: %q before %q", keys[i-1], keys[i])
		}
	}

	cfg := Default()
	for _, k := range keys {
		if _, err := Get(cfg, k); err != nil {
			t.Errorf("Get(%q) failed: %v", k, err)
		}
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key   string
		raw   string
		check func(c *Config) bool
	}{
		{"orchestrator.execution_workers", "7", func(c *Config) bool { return c.Orchestrator.ExecutionWorkers == 7 }},
		{"orchestrator.task_timeout", "2m", func(c *Config) bool { return c.Orchestrator.TaskTimeout == 2*time.Minute }},
		{"prediction.cache_size", "64", func(c *Config) bool { return c.Prediction.CacheSize == 64 }},
		{"healing.auto_apply", "true", func(c *Config) bool { return c.Healing.AutoApply }},
		{"healing.max_risk_level", "high", func(c *Config) bool { return c.Healing.MaxRiskLevel == "high" }},
		{"validation.quality_threshold", "82.5", func(c *Config) bool { return c.Validation.QualityThreshold == 82.5 }},
		{"GIT.AUTO_COMMIT", "true", func(c *Config) bool { return c.Git.AutoCommit }},
		{"log.debug_file", " debug.log ", func(c *Config) bool { return c.Log.DebugFile == "debug.log" }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			if err := Set(cfg, tt.key, tt.raw); err != nil {
				t.Fatalf("Set(%q, %q) failed: %v", tt.key, tt.raw, err)
			}
			if !tt.check(cfg) {
				t.Errorf("Set(%q, %q) did not take effect: %+v", tt.key, tt.raw, cfg)
			}
		})
	}
}

func TestSet_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		raw  string
	}{
		{"unknown key", "orchestrator.nope", "1"},
		{"not a number", "orchestrator.execution_workers", "many"},
		{"not a duration", "tui.refresh_rate", "fast"},
		{"not a bool", "healing.auto_apply", "sometimes"},
		{"fails validation", "healing.max_risk_level", "extreme"},
		{"out of range", "orchestrator.execution_workers", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := Set(cfg, tt.key, tt.raw); err == nil {
				t.Errorf("Set(%q, %q) succeeded, want error", tt.key, tt.raw)
			}
			if *cfg != *Default() {
				t.Errorf("config changed after failed Set: %+v", cfg)
			}
		})
	}

	if err := Set(Default(), "nope", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{90 * time.Second, "1m30s"},
		{"", `""`},
		{"low", "low"},
		{true, "true"},
		{70.0, "70"},
		{4, "4"},
	}

	for _, tt := range tests {
		if got := Format(tt.value); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
