// Package validation scores the artifacts a task produced with a fixed set
// of line-oriented checks.
//
// Validation is advisory: a report below the quality threshold is surfaced
// as a ValidationFailure in metrics and does not stop execution unless the
// orchestrator gates phases on it.
package validation

import (
	"strings"
	"sync"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// Defaults for Config.
const (
	DefaultQualityThreshold = 70.0
	DefaultMaxLineLength    = 120
	DefaultMaxNesting       = 4
	DefaultMaxLines         = 500
)

// Config tunes the checks and the pass threshold.
type Config struct {
	// QualityThreshold is the minimum quality score for a report to pass.
	QualityThreshold float64
	MaxLineLength    int
	MaxNesting       int
	MaxLines         int
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		QualityThreshold: DefaultQualityThreshold,
		MaxLineLength:    DefaultMaxLineLength,
		MaxNesting:       DefaultMaxNesting,
		MaxLines:         DefaultMaxLines,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = d.MaxLineLength
	}
	if c.MaxNesting <= 0 {
		c.MaxNesting = d.MaxNesting
	}
	if c.MaxLines <= 0 {
		c.MaxLines = d.MaxLines
	}
	return c
}

// Stats aggregates every report the engine produced.
type Stats struct {
	Validated      int     `json:"validated"`
	Failures       int     `json:"failures"`
	OpenIssues     int     `json:"open_issues"`
	AverageQuality float64 `json:"average_quality"`
}

// Engine runs the checks. Safe for concurrent use.
type Engine struct {
	cfg    Config
	checks []check
	now    func() time.Time

	mu           sync.Mutex
	stats        Stats
	totalQuality float64
}

// NewEngine creates an engine. Zero config fields take their defaults.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		checks: checks(),
		now:    time.Now,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Validate runs every check against content and scores the result.
func (e *Engine) Validate(task *models.Task, content string) models.ValidationReport {
	in := &input{
		task:    task,
		content: content,
		lines:   splitLines(content),
		cfg:     e.cfg,
	}

	report := models.ValidationReport{
		TotalChecks: len(e.checks),
		ValidatedAt: e.now(),
	}
	if task != nil {
		report.TaskID = task.ID
	}

	for _, c := range e.checks {
		found := c.run(in)
		if len(found) == 0 {
			report.PassedChecks++
			continue
		}
		if len(found) > maxIssuesPerCheck {
			found = found[:maxIssuesPerCheck]
		}
		for _, is := range found {
			is.Check = c.name
			report.Issues = append(report.Issues, is)
		}
	}

	report.Scores = score(report.Issues, task, content)
	report.Passed = report.Scores.Quality >= e.cfg.QualityThreshold

	e.mu.Lock()
	e.stats.Validated++
	if !report.Passed {
		e.stats.Failures++
	}
	e.stats.OpenIssues += len(report.Issues)
	e.totalQuality += report.Scores.Quality
	e.stats.AverageQuality = e.totalQuality / float64(e.stats.Validated)
	e.mu.Unlock()

	return report
}

// Verify returns a *ValidationFailure when the report did not pass.
func (e *Engine) Verify(report models.ValidationReport) error {
	if report.Passed {
		return nil
	}
	return &ValidationFailure{
		TaskID:    report.TaskID,
		Quality:   report.Scores.Quality,
		Threshold: e.cfg.QualityThreshold,
		Issues:    len(report.Issues),
	}
}

// Stats returns a snapshot of the aggregate counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// kindWeight scales an issue's severity into a quality penalty.
var kindWeight = map[models.IssueKind]float64{
	models.IssueError:      3,
	models.IssueWarning:    1.5,
	models.IssueSuggestion: 0.5,
}

var maintainabilityChecks = map[string]bool{
	CheckLineLength:   true,
	CheckTodoMarkers:  true,
	CheckNestingDepth: true,
	CheckFileSize:     true,
}

func score(issues []models.ValidationIssue, task *models.Task, content string) models.QualityScores {
	quality, maint, perf := 100.0, 100.0, 100.0
	empty := false
	for _, is := range issues {
		quality -= float64(is.Severity) * kindWeight[is.Kind]
		if maintainabilityChecks[is.Check] {
			maint -= float64(is.Severity) * 2
		}
		switch is.Check {
		case CheckNestedLoops:
			perf -= 15
		case CheckDebugOutput:
			perf -= 5
		case CheckNonEmpty:
			empty = true
		}
	}
	if empty {
		quality, maint = 0, 0
	}

	coverage := 100.0
	if needsTests(task) && !hasTests(task, content) {
		coverage = 0
	}

	return models.QualityScores{
		Quality:         clamp(quality),
		Maintainability: clamp(maint),
		TestCoverage:    coverage,
		Performance:     clamp(perf),
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
