// Package healing generates candidate fixes for task artifacts from an
// ordered set of pattern rules, and gates which of them are applied.
package healing

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// DefaultConfidenceThreshold is the minimum confidence for auto-applying.
const DefaultConfidenceThreshold = 80

// Config gates automatic application of fixes.
type Config struct {
	AutoApply           bool
	ConfidenceThreshold int
	MaxRisk             models.RiskLevel
}

// DefaultConfig returns a config with auto-apply disabled.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MaxRisk:             models.RiskMedium,
	}
}

// Stats counts what the engine has done so far.
type Stats struct {
	Runs     int `json:"runs"`
	Proposed int `json:"proposed"`
	Applied  int `json:"applied"`
}

// Protector reports whether an artifact is in a protected area.
type Protector interface {
	Check(path, content string) (bool, string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules appends rules after the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = append(e.rules, rules...) }
}

// WithProtector makes fixes to protected artifacts manual-only and at
// least medium risk.
func WithProtector(p Protector) Option {
	return func(e *Engine) { e.protector = p }
}

// Engine runs healing rules. Safe for concurrent use.
type Engine struct {
	cfg       Config
	rules     []Rule
	protector Protector

	mu    sync.Mutex
	stats Stats
}

// NewEngine creates an engine with the built-in rules and refactoring patterns.
func NewEngine(cfg Config, opts ...Option) *Engine {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if !cfg.MaxRisk.Valid() {
		cfg.MaxRisk = models.RiskMedium
	}
	rules := BuiltinRules()
	for _, p := range BuiltinPatterns() {
		rules = append(rules, p.rule())
	}
	e := &Engine{cfg: cfg, rules: rules}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's gate configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Rules returns the names of the rules in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// HealCode runs every rule against content and returns the deduplicated,
// risk-filtered actions sorted by descending confidence. Actions are marked
// applied only when auto-apply is enabled, their confidence reaches the
// threshold and they are auto-applicable.
func (e *Engine) HealCode(task *models.Task, content string) []models.HealingAction {
	return e.process(e.ruleActions(task, content))
}

// HealFailure is HealCode plus suggestions derived from the failure message.
func (e *Engine) HealFailure(task *models.Task, content, errMsg string) []models.HealingAction {
	actions := e.ruleActions(task, content)
	for _, h := range failureHints {
		if errMsg == "" || !h.pattern.MatchString(errMsg) {
			continue
		}
		actions = append(actions, models.HealingAction{
			ID:         task.ID + "/" + h.name,
			Type:       models.HealingSuggestion,
			Rule:       h.name,
			Changes:    []models.LineChange{{Rationale: h.advice}},
			Confidence: 50,
			Impact:     models.RiskLow,
			Risk:       models.RiskLow,
		})
	}
	return e.process(actions)
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) ruleActions(task *models.Task, content string) []models.HealingAction {
	ext := ""
	if len(task.Metadata.Artifacts) > 0 {
		ext = filepath.Ext(task.Metadata.Artifacts[0])
	}
	lines := strings.Split(content, "\n")

	protected := false
	if e.protector != nil {
		for _, path := range task.Metadata.Artifacts {
			if ok, _ := e.protector.Check(path, content); ok {
				protected = true
				break
			}
		}
	}

	var actions []models.HealingAction
	for _, r := range e.rules {
		if !r.appliesTo(ext) {
			continue
		}
		var changes []models.LineChange
		for i, line := range lines {
			out, ok := r.Rewrite(line)
			if !ok {
				continue
			}
			changes = append(changes, models.LineChange{
				Line:      i + 1,
				Old:       line,
				New:       out,
				Delete:    r.Remove,
				Rationale: r.Rationale,
			})
		}
		if len(changes) == 0 {
			continue
		}
		action := models.HealingAction{
			ID:             task.ID + "/" + r.Name,
			Type:           r.Type,
			Rule:           r.Name,
			Changes:        changes,
			Confidence:     clampConfidence(r.Confidence),
			Impact:         r.Impact,
			Risk:           r.Risk,
			AutoApplicable: r.AutoApplicable,
		}
		if protected {
			action.Risk = models.MaxRisk(action.Risk, models.RiskMedium)
			action.AutoApplicable = false
		}
		actions = append(actions, action)
	}
	return actions
}

func (e *Engine) process(actions []models.HealingAction) []models.HealingAction {
	actions = dedupe(actions)

	filtered := actions[:0]
	for _, a := range actions {
		if a.Risk.AtMost(e.cfg.MaxRisk) {
			filtered = append(filtered, a)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Confidence > filtered[j].Confidence
	})

	applied := 0
	for i := range filtered {
		if e.shouldApply(filtered[i]) {
			filtered[i].Applied = true
			applied++
		}
	}

	e.mu.Lock()
	e.stats.Runs++
	e.stats.Proposed += len(filtered)
	e.stats.Applied += applied
	e.mu.Unlock()
	return filtered
}

// shouldApply is the auto-apply gate.
func (e *Engine) shouldApply(a models.HealingAction) bool {
	return e.cfg.AutoApply &&
		a.AutoApplicable &&
		a.Confidence >= e.cfg.ConfidenceThreshold &&
		a.Risk.AtMost(e.cfg.MaxRisk)
}

// dedupe drops actions whose ID or change set repeats an earlier action.
func dedupe(actions []models.HealingAction) []models.HealingAction {
	seenID := make(map[string]bool, len(actions))
	seenChanges := make(map[string]bool, len(actions))
	out := make([]models.HealingAction, 0, len(actions))
	for _, a := range actions {
		key := changeKey(a)
		if seenID[a.ID] || seenChanges[key] {
			continue
		}
		seenID[a.ID] = true
		seenChanges[key] = true
		out = append(out, a)
	}
	return out
}

func changeKey(a models.HealingAction) string {
	var b strings.Builder
	b.WriteString(string(a.Type))
	for _, c := range a.Changes {
		fmt.Fprintf(&b, "|%d:%t:%s", c.Line, c.Delete, c.New)
		if c.Line == 0 {
			b.WriteString(c.Rationale)
		}
	}
	return b.String()
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// Apply returns content with the changes of every applied action made.
// A change is skipped when its line no longer holds the expected text or
// an earlier action already changed that line. The second result is the
// number of actions that changed at least one line.
func Apply(content string, actions []models.HealingAction) (string, int) {
	lines := strings.Split(content, "\n")
	changed := make(map[int]models.LineChange)
	applied := 0
	for _, a := range actions {
		if !a.Applied {
			continue
		}
		made := false
		for _, c := range a.Changes {
			if c.Line < 1 || c.Line > len(lines) {
				continue
			}
			if _, taken := changed[c.Line]; taken || lines[c.Line-1] != c.Old {
				continue
			}
			changed[c.Line] = c
			made = true
		}
		if made {
			applied++
		}
	}
	if applied == 0 {
		return content, 0
	}

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		c, ok := changed[i+1]
		switch {
		case !ok:
			out = append(out, line)
		case c.Delete:
		default:
			out = append(out, c.New)
		}
	}
	return strings.Join(out, "\n"), applied
}
