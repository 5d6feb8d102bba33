package healing

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func mustRe(t *testing.T, s string) *regexp.Regexp {
	t.Helper()
	re, err := regexp.Compile(s)
	if err != nil {
		t.Fatalf("compile %q: %v", s, err)
	}
	return re
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: println-to-log
    pattern: 'fmt\.Println\('
    replacement: 'log.Println('
    category: logging
    type: auto_fix
    confidence: 88
    risk: low
    auto_applicable: true
    extensions: [".go"]
    examples:
      - before: 'fmt.Println("x")'
        after: 'log.Println("x")'
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	r := rules[0]
	if r.Type != models.HealingAutoFix || r.Risk != models.RiskLow || r.Impact != models.RiskLow || !r.AutoApplicable {
		t.Errorf("unexpected rule: %+v", r)
	}

	e := NewEngine(Config{AutoApply: true, MaxRisk: models.RiskLow}, WithRules(rules...))
	task := &models.Task{ID: "t", Metadata: models.TaskMetadata{Artifacts: []string{"main.go"}}}
	actions := e.HealCode(task, "\tfmt.Println(\"hi\")\n")
	var hit bool
	for _, a := range actions {
		if a.Rule == "println-to-log" && a.Applied {
			hit = true
		}
	}
	if !hit {
		t.Errorf("loaded rule not applied: %v", rulesOf(actions))
	}
}

func TestParseRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "rules:\n  - pattern: x\n", "missing name"},
		{"bad pattern", "rules:\n  - name: a\n    pattern: '('\n", "invalid pattern"},
		{"bad type", "rules:\n  - name: a\n    pattern: x\n    type: magic\n", "unknown action type"},
		{"bad risk", "rules:\n  - name: a\n    pattern: x\n    risk: extreme\n", "unknown risk level"},
		{"bad confidence", "rules:\n  - name: a\n    pattern: x\n    confidence: 101\n", "outside 0..100"},
		{"failing example", "rules:\n  - name: a\n    pattern: x\n    replacement: y\n    examples:\n      - before: x\n        after: z\n", "rewrites to"},
		{"bad yaml", "rules: [", "parse rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}
