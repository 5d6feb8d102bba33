package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// maxIssuesPerCheck bounds how many findings a single check may report.
const maxIssuesPerCheck = 20

// Check names, as they appear in ValidationIssue.Check.
const (
	CheckNonEmpty           = "non-empty"
	CheckLineLength         = "line-length"
	CheckTrailingWhitespace = "trailing-whitespace"
	CheckDebugOutput        = "debug-output"
	CheckTodoMarkers        = "todo-markers"
	CheckNestingDepth       = "nesting-depth"
	CheckFileSize           = "file-size"
	CheckNestedLoops        = "nested-loops"
	CheckTestPresence       = "test-presence"
)

var (
	debugRe = regexp.MustCompile(`console\.(log|debug)\(|\bprint\(|fmt\.Print(ln|f)?\(|System\.out\.print|\bdebugger;|\bvar_dump\(|\bpp\(`)
	todoRe  = regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`)
	loopRe  = regexp.MustCompile(`^\s*(for|while|do)\b|\.forEach\(`)
	testRe  = regexp.MustCompile(`func Test\w*\(|def test_\w*\(|\b(describe|it|test)\(\s*['"]|@Test\b`)
)

// input is what each check sees.
type input struct {
	task    *models.Task
	content string
	lines   []string
	cfg     Config
}

// check inspects the input and reports findings. No findings means passed.
type check struct {
	name string
	run  func(in *input) []models.ValidationIssue
}

func checks() []check {
	return []check{
		{CheckNonEmpty, checkNonEmpty},
		{CheckLineLength, checkLineLength},
		{CheckTrailingWhitespace, checkTrailingWhitespace},
		{CheckDebugOutput, checkDebugOutput},
		{CheckTodoMarkers, checkTodoMarkers},
		{CheckNestingDepth, checkNestingDepth},
		{CheckFileSize, checkFileSize},
		{CheckNestedLoops, checkNestedLoops},
		{CheckTestPresence, checkTestPresence},
	}
}

func checkNonEmpty(in *input) []models.ValidationIssue {
	if strings.TrimSpace(in.content) != "" {
		return nil
	}
	return []models.ValidationIssue{{
		Kind:     models.IssueError,
		Severity: 9,
		Message:  "artifact is empty",
	}}
}

func checkLineLength(in *input) []models.ValidationIssue {
	var out []models.ValidationIssue
	for i, line := range in.lines {
		if n := len([]rune(line)); n > in.cfg.MaxLineLength {
			out = append(out, models.ValidationIssue{
				Kind:     models.IssueWarning,
				Severity: 3,
				Line:     i + 1,
				Message:  fmt.Sprintf("line is %d characters long (max %d)", n, in.cfg.MaxLineLength),
			})
		}
	}
	return out
}

func checkTrailingWhitespace(in *input) []models.ValidationIssue {
	var out []models.ValidationIssue
	for i, line := range in.lines {
		if line != strings.TrimRight(line, " \t") {
			out = append(out, models.ValidationIssue{
				Kind:        models.IssueSuggestion,
				Severity:    1,
				Line:        i + 1,
				Message:     "trailing whitespace",
				AutoFixable: true,
			})
		}
	}
	return out
}

func checkDebugOutput(in *input) []models.ValidationIssue {
	if isTestArtifact(primaryArtifact(in.task)) {
		return nil
	}
	var out []models.ValidationIssue
	for i, line := range in.lines {
		if debugRe.MatchString(line) {
			out = append(out, models.ValidationIssue{
				Kind:        models.IssueWarning,
				Severity:    4,
				Line:        i + 1,
				Message:     "debug output left in code",
				AutoFixable: true,
			})
		}
	}
	return out
}

func checkTodoMarkers(in *input) []models.ValidationIssue {
	var out []models.ValidationIssue
	for i, line := range in.lines {
		if m := todoRe.FindString(line); m != "" {
			out = append(out, models.ValidationIssue{
				Kind:     models.IssueSuggestion,
				Severity: 2,
				Line:     i + 1,
				Message:  m + " marker",
			})
		}
	}
	return out
}

// checkNestingDepth measures brace depth, or indentation depth for
// artifacts without braces. It reports the first line past the limit.
func checkNestingDepth(in *input) []models.ValidationIssue {
	braces := strings.ContainsAny(in.content, "{}")
	depth, deepest, at := 0, 0, 0
	for i, line := range in.lines {
		d := 0
		if braces {
			d = depth
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if depth < 0 {
				depth = 0
			}
			if depth > d {
				d = depth
			}
		} else if strings.TrimSpace(line) != "" {
			d = indentWidth(line) / 4
		}
		if d > deepest {
			deepest = d
			if d > in.cfg.MaxNesting && at == 0 {
				at = i + 1
			}
		}
	}
	if deepest <= in.cfg.MaxNesting {
		return nil
	}
	return []models.ValidationIssue{{
		Kind:     models.IssueWarning,
		Severity: 5,
		Line:     at,
		Message:  fmt.Sprintf("nesting depth %d exceeds %d", deepest, in.cfg.MaxNesting),
	}}
}

func checkFileSize(in *input) []models.ValidationIssue {
	if len(in.lines) <= in.cfg.MaxLines {
		return nil
	}
	return []models.ValidationIssue{{
		Kind:     models.IssueWarning,
		Severity: 4,
		Message:  fmt.Sprintf("artifact has %d lines (max %d)", len(in.lines), in.cfg.MaxLines),
	}}
}

// checkNestedLoops flags loops opened inside another loop's indented body.
func checkNestedLoops(in *input) []models.ValidationIssue {
	var (
		out   []models.ValidationIssue
		stack []int
	)
	for i, line := range in.lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := indentWidth(line)
		for len(stack) > 0 && stack[len(stack)-1] >= indent {
			stack = stack[:len(stack)-1]
		}
		if !loopRe.MatchString(line) {
			continue
		}
		if len(stack) > 0 {
			out = append(out, models.ValidationIssue{
				Kind:     models.IssueWarning,
				Severity: 5,
				Line:     i + 1,
				Message:  fmt.Sprintf("loop nested %d deep", len(stack)+1),
			})
		}
		stack = append(stack, indent)
	}
	return out
}

func checkTestPresence(in *input) []models.ValidationIssue {
	if !needsTests(in.task) || hasTests(in.task, in.content) {
		return nil
	}
	return []models.ValidationIssue{{
		Kind:     models.IssueSuggestion,
		Severity: 3,
		Message:  "no tests accompany this change",
	}}
}

// needsTests reports whether the task touches source artifacts a test
// could cover. Documentation and config only changes do not.
func needsTests(task *models.Task) bool {
	if task == nil {
		return false
	}
	switch task.Type {
	case models.TaskTypeDelete, models.TaskTypeValidate:
		return false
	}
	for _, a := range task.Metadata.Artifacts {
		if isSource(a) {
			return true
		}
	}
	return false
}

func hasTests(task *models.Task, content string) bool {
	if testRe.MatchString(content) {
		return true
	}
	if task == nil {
		return false
	}
	for _, a := range task.Metadata.Artifacts {
		if isTestArtifact(a) {
			return true
		}
	}
	return false
}

var sourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".rb": true, ".rs": true, ".c": true, ".cc": true, ".cpp": true,
	".cs": true, ".php": true, ".kt": true, ".swift": true,
}

func isSource(p string) bool {
	return sourceExts[strings.ToLower(path.Ext(p))]
}

func isTestArtifact(p string) bool {
	if p == "" {
		return false
	}
	base := path.Base(p)
	return strings.Contains(base, "_test.") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(p, "/tests/") ||
		strings.HasPrefix(p, "tests/")
}

func primaryArtifact(task *models.Task) string {
	if task == nil || len(task.Metadata.Artifacts) == 0 {
		return ""
	}
	return task.Metadata.Artifacts[0]
}

// indentWidth counts leading whitespace, a tab counting as four spaces.
func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}
