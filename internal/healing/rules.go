package healing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// Example is a before/after pair documenting what a rule does.
type Example struct {
	Before string `yaml:"before"`
	After  string `yaml:"after"`
}

// Rule matches single lines and proposes a change for each match.
type Rule struct {
	Name           string
	Category       string
	Pattern        *regexp.Regexp
	Type           models.HealingActionType
	Confidence     int
	Risk           models.RiskLevel
	Impact         models.RiskLevel
	AutoApplicable bool
	Rationale      string
	// Replacement is expanded with Pattern.ReplaceAllString when Generate is nil.
	Replacement string
	// Remove deletes matching lines instead of rewriting them.
	Remove bool
	// Generate returns the rewritten line, or false to skip the match.
	Generate func(line string) (string, bool)
	// Extensions limits the rule to artifacts with these extensions.
	// Empty means every artifact.
	Extensions []string
	Examples   []Example
}

// appliesTo reports whether the rule should run for an artifact path.
func (r Rule) appliesTo(ext string) bool {
	if len(r.Extensions) == 0 || ext == "" {
		return true
	}
	for _, e := range r.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Rewrite applies the rule to one line.
func (r Rule) Rewrite(line string) (string, bool) {
	if !r.Pattern.MatchString(line) {
		return "", false
	}
	if r.Remove {
		return "", true
	}
	if r.Generate != nil {
		return r.Generate(line)
	}
	out := r.Pattern.ReplaceAllString(line, r.Replacement)
	return out, out != line
}

// Check verifies that every example rewrites to its expected output.
func (r Rule) Check() error {
	for i, ex := range r.Examples {
		got, ok := r.Rewrite(ex.Before)
		if !ok {
			return fmt.Errorf("rule %s: example %d does not match", r.Name, i+1)
		}
		if got != ex.After {
			return fmt.Errorf("rule %s: example %d rewrites to %q, want %q", r.Name, i+1, got, ex.After)
		}
	}
	return nil
}

// RefactorPattern is a structural rewrite expressed as a pattern and a
// replacement template, documented by example pairs.
type RefactorPattern struct {
	Name       string
	Pattern    *regexp.Regexp
	Template   string
	Type       models.HealingActionType
	Confidence int
	Risk       models.RiskLevel
	Rationale  string
	Extensions []string
	Examples   []Example
}

// rule converts the pattern to a Rule so both run through the same pipeline.
func (p RefactorPattern) rule() Rule {
	return Rule{
		Name:           p.Name,
		Category:       "refactoring",
		Pattern:        p.Pattern,
		Type:           p.Type,
		Confidence:     p.Confidence,
		Risk:           p.Risk,
		Impact:         models.RiskLow,
		AutoApplicable: p.Type == models.HealingOptimize,
		Rationale:      p.Rationale,
		Replacement:    p.Template,
		Extensions:     p.Extensions,
		Examples:       p.Examples,
	}
}

var secretPattern = regexp.MustCompile(`(?i)\b(password|passwd|secret|api_?key|token)\b(\s*[:=]\s*)(["'])[^"']+(["'])`)

// BuiltinRules returns the default rule set, in evaluation order.
func BuiltinRules() []Rule {
	return []Rule{
		{
			Name:           "trailing-whitespace",
			Category:       "style",
			Pattern:        regexp.MustCompile(`[ \t]+$`),
			Type:           models.HealingAutoFix,
			Confidence:     95,
			Risk:           models.RiskLow,
			Impact:         models.RiskLow,
			AutoApplicable: true,
			Rationale:      "trailing whitespace is noise in diffs",
			Examples:       []Example{{Before: "x := 1   ", After: "x := 1"}},
		},
		{
			Name:           "debug-print",
			Category:       "logging",
			Pattern:        regexp.MustCompile(`^\s*(console\.log|fmt\.Println|print)\(.*\)\s*;?\s*$`),
			Type:           models.HealingAutoFix,
			Confidence:     85,
			Risk:           models.RiskLow,
			Impact:         models.RiskLow,
			AutoApplicable: true,
			Remove:         true,
			Rationale:      "leftover debug output",
			Examples:       []Example{{Before: `  console.log("here");`, After: ""}},
		},
		{
			Name:       "todo-marker",
			Category:   "maintenance",
			Pattern:    regexp.MustCompile(`(//|#)\s*(TODO|FIXME|XXX)\b:?\s*`),
			Type:       models.HealingSuggestion,
			Confidence: 60,
			Risk:       models.RiskLow,
			Impact:     models.RiskLow,
			Rationale:  "unfinished work should be tracked in the issue tracker",
			Replacement: "${1} tracked: ",
			Examples:   []Example{{Before: "// TODO: retry", After: "// tracked: retry"}},
		},
		{
			Name:       "hardcoded-secret",
			Category:   "security",
			Pattern:    secretPattern,
			Type:       models.HealingSuggestion,
			Confidence: 75,
			Risk:       models.RiskMedium,
			Impact:     models.RiskHigh,
			Rationale:  "credentials must come from the environment, not source",
			Generate: func(line string) (string, bool) {
				m := secretPattern.FindStringSubmatch(line)
				if m == nil {
					return "", false
				}
				name := strings.ToUpper(m[1])
				return strings.Replace(line, m[0], m[1]+m[2]+m[3]+"${"+name+"}"+m[4], 1), true
			},
			Examples: []Example{{Before: `password = "hunter2"`, After: `password = "${PASSWORD}"`}},
		},
		{
			Name:       "empty-catch",
			Category:   "error-handling",
			Pattern:    regexp.MustCompile(`catch\s*\((\w+)[^)]*\)\s*\{\s*\}`),
			Type:       models.HealingRefactor,
			Confidence: 70,
			Risk:       models.RiskMedium,
			Impact:     models.RiskMedium,
			Rationale:  "swallowed errors hide failures",
			Replacement: "catch (${1}) { throw ${1}; }",
			Extensions:  []string{".js", ".jsx", ".ts", ".tsx", ".java"},
			Examples:   []Example{{Before: "} catch (err) {}", After: "} catch (err) { throw err; }"}},
		},
		{
			Name:           "bare-except",
			Category:       "error-handling",
			Pattern:        regexp.MustCompile(`^(\s*)except\s*:`),
			Type:           models.HealingAutoFix,
			Confidence:     82,
			Risk:           models.RiskMedium,
			Impact:         models.RiskMedium,
			AutoApplicable: true,
			Rationale:      "a bare except also catches KeyboardInterrupt and SystemExit",
			Replacement:    "${1}except Exception:",
			Extensions:     []string{".py"},
			Examples:       []Example{{Before: "    except:", After: "    except Exception:"}},
		},
		{
			Name:           "loose-equality",
			Category:       "correctness",
			Pattern:        regexp.MustCompile(`([^=!<>])\s==\s([^=])`),
			Type:           models.HealingAutoFix,
			Confidence:     80,
			Risk:           models.RiskMedium,
			Impact:         models.RiskMedium,
			AutoApplicable: true,
			Rationale:      "loose equality coerces types",
			Replacement:    "${1} === ${2}",
			Extensions:     []string{".js", ".jsx", ".ts", ".tsx"},
			Examples:       []Example{{Before: "if (a == b) {", After: "if (a === b) {"}},
		},
		{
			Name:       "ignored-error",
			Category:   "error-handling",
			Pattern:    regexp.MustCompile(`^(\s*)_\s*=\s*([\w.]+\(.*\))\s*$`),
			Type:       models.HealingSuggestion,
			Confidence: 55,
			Risk:       models.RiskLow,
			Impact:     models.RiskMedium,
			Rationale:  "discarded errors should at least be logged",
			Replacement: "${1}if err := ${2}; err != nil {",
			Extensions:  []string{".go"},
			Examples:   []Example{{Before: "\t_ = f.Close()", After: "\tif err := f.Close(); err != nil {"}},
		},
	}
}

// BuiltinPatterns returns the default refactoring patterns.
func BuiltinPatterns() []RefactorPattern {
	return []RefactorPattern{
		{
			Name:       "redundant-bool-compare",
			Pattern:    regexp.MustCompile(`\bif\s*\(?\s*([\w.]+)\s*===?\s*true\s*\)?`),
			Template:   "if (${1})",
			Type:       models.HealingOptimize,
			Confidence: 85,
			Risk:       models.RiskLow,
			Rationale:  "comparing a boolean with true is redundant",
			Examples:   []Example{{Before: "if (done == true) {", After: "if (done) {"}},
		},
		{
			Name:       "var-to-let",
			Pattern:    regexp.MustCompile(`^(\s*)var\s+(\w+\s*=)`),
			Template:   "${1}let ${2}",
			Extensions: []string{".js", ".jsx", ".ts", ".tsx"},
			Type:       models.HealingRefactor,
			Confidence: 78,
			Risk:       models.RiskLow,
			Rationale:  "block scoping avoids hoisting surprises",
			Examples:   []Example{{Before: "  var count = 0;", After: "  let count = 0;"}},
		},
		{
			Name:       "length-zero-check",
			Pattern:    regexp.MustCompile(`!\s*\(\s*([\w.]+)\.length\s*>\s*0\s*\)`),
			Template:   "${1}.length === 0",
			Extensions: []string{".js", ".jsx", ".ts", ".tsx"},
			Type:       models.HealingOptimize,
			Confidence: 80,
			Risk:       models.RiskLow,
			Rationale:  "direct comparison reads better than a negated one",
			Examples:   []Example{{Before: "if (!(items.length > 0)) {", After: "if (items.length === 0) {"}},
		},
	}
}

// hint is a failure-message driven suggestion without line changes.
type hint struct {
	name    string
	pattern *regexp.Regexp
	advice  string
}

var failureHints = []hint{
	{"retry-smaller", regexp.MustCompile(`(?i)timed out|deadline exceeded`), "split the task or raise orchestrator.task_timeout"},
	{"switch-to-update", regexp.MustCompile(`(?i)already exists`), "the artifact exists: use an update task instead of create"},
	{"create-first", regexp.MustCompile(`(?i)not found|no such file`), "the artifact is missing: schedule a create task first"},
	{"fill-artifact", regexp.MustCompile(`(?i)is empty`), "the artifact is empty: regenerate its content"},
}
