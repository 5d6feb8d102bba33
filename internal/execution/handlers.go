package execution

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	iexec "github.com/Camier/2SEARX2COOL-sub001/internal/exec"
	"github.com/Camier/2SEARX2COOL-sub001/internal/healing"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// Output is what a handler produced.
type Output struct {
	// Artifacts maps each touched path to its content afterwards.
	// Deleted artifacts map to the empty string.
	Artifacts map[string]string
	Summary   string
	// Applied counts healing actions a fix task applied.
	Applied int
}

// Handler performs the side effects of one task type.
type Handler func(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error)

// Handlers maps task types to their handler.
type Handlers map[models.TaskType]Handler

// DefaultHandlers returns the built-in handler for every task type.
func DefaultHandlers() Handlers {
	return Handlers{
		models.TaskTypeCreate:   handleCreate,
		models.TaskTypeUpdate:   handleUpdate,
		models.TaskTypeDelete:   handleDelete,
		models.TaskTypeOptimize: handleOptimize,
		models.TaskTypeFix:      handleFix,
		models.TaskTypeValidate: ValidateHandler(nil, "", ""),
	}
}

// eachArtifact runs fn over the task's artifacts, stopping on the first
// error or on context cancellation.
func eachArtifact(ctx context.Context, task *models.Task, fn func(path string) (string, error)) (Output, error) {
	out := Output{Artifacts: make(map[string]string, len(task.Metadata.Artifacts))}
	for _, path := range task.Metadata.Artifacts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		content, err := fn(path)
		if err != nil {
			return out, err
		}
		out.Artifacts[path] = content
	}
	return out, nil
}

func handleCreate(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error) {
	out, err := eachArtifact(ctx, task, func(path string) (string, error) {
		if store.Exists(path) {
			return "", fmt.Errorf("artifact %s already exists", path)
		}
		content := scaffold(path, task)
		return content, store.Write(path, content)
	})
	out.Summary = fmt.Sprintf("created %d artifact(s)", len(out.Artifacts))
	return out, err
}

func handleUpdate(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error) {
	out, err := eachArtifact(ctx, task, func(path string) (string, error) {
		content, err := store.Read(path)
		if err != nil {
			return "", err
		}
		content = ensureNewline(content) + commentLine(path, "updated: "+task.Title)
		return content, store.Write(path, content)
	})
	out.Summary = fmt.Sprintf("updated %d artifact(s)", len(out.Artifacts))
	return out, err
}

func handleDelete(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error) {
	out, err := eachArtifact(ctx, task, func(path string) (string, error) {
		return "", store.Delete(path)
	})
	out.Summary = fmt.Sprintf("deleted %d artifact(s)", len(out.Artifacts))
	return out, err
}

// handleOptimize collapses runs of blank lines and trailing blank lines.
func handleOptimize(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error) {
	out, err := eachArtifact(ctx, task, func(path string) (string, error) {
		content, err := store.Read(path)
		if err != nil {
			return "", err
		}
		content = collapseBlankLines(content)
		return content, store.Write(path, content)
	})
	out.Summary = fmt.Sprintf("optimized %d artifact(s)", len(out.Artifacts))
	return out, err
}

// handleFix applies the task's healing actions when it carries any, and
// otherwise strips trailing whitespace and normalizes the final newline.
func handleFix(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error) {
	if len(task.Healing) > 0 {
		return applyHealing(ctx, store, task)
	}
	out, err := eachArtifact(ctx, task, func(path string) (string, error) {
		content, err := store.Read(path)
		if err != nil {
			return "", err
		}
		lines := strings.Split(content, "\n")
		for i, l := range lines {
			lines[i] = strings.TrimRight(l, " \t")
		}
		content = ensureNewline(strings.TrimRight(strings.Join(lines, "\n"), "\n"))
		return content, store.Write(path, content)
	})
	out.Summary = fmt.Sprintf("fixed %d artifact(s)", len(out.Artifacts))
	return out, err
}

// applyHealing makes the approved healing changes on every artifact.
// Changes whose line no longer holds the expected text are skipped, so an
// artifact rewritten since the failure is left alone.
func applyHealing(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error) {
	applied := 0
	out, err := eachArtifact(ctx, task, func(path string) (string, error) {
		content, err := store.Read(path)
		if err != nil {
			return "", err
		}
		healed, n := healing.Apply(content, task.Healing)
		if n == 0 {
			return content, nil
		}
		applied += n
		return healed, store.Write(path, healed)
	})
	out.Applied = min(applied, len(task.Healing))
	out.Summary = fmt.Sprintf("applied %d of %d healing action(s)", out.Applied, len(task.Healing))
	return out, err
}

// ValidateHandler returns the handler for validate tasks. It checks that
// every artifact exists and is non-empty, then runs command in workDir
// when both runner and command are set.
func ValidateHandler(runner iexec.CommandRunner, workDir, command string) Handler {
	return func(ctx context.Context, store ArtifactStore, task *models.Task) (Output, error) {
		out, err := eachArtifact(ctx, task, func(path string) (string, error) {
			content, err := store.Read(path)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(content) == "" {
				return "", fmt.Errorf("artifact %s is empty", path)
			}
			return content, nil
		})
		if err != nil {
			return out, err
		}
		out.Summary = fmt.Sprintf("validated %d artifact(s)", len(out.Artifacts))
		if runner == nil || command == "" {
			return out, nil
		}
		output, err := runner.RunShell(ctx, workDir, command)
		if err != nil {
			return out, fmt.Errorf("validate command %q: %w: %s", command, err, strings.TrimSpace(string(output)))
		}
		out.Summary += "; " + command + " passed"
		return out, nil
	}
}

// scaffold returns the initial content for a new artifact.
func scaffold(path string, task *models.Task) string {
	title := task.Title
	if title == "" {
		title = task.ID
	}
	switch filepath.Ext(path) {
	case ".go":
		pkg := filepath.Base(filepath.Dir(path))
		if pkg == "." || pkg == "/" {
			pkg = "main"
		}
		return fmt.Sprintf("package %s\n\n// %s\n", strings.ReplaceAll(pkg, "-", "_"), title)
	case ".md":
		return fmt.Sprintf("# %s\n\n%s\n", title, task.Description)
	default:
		return commentLine(path, title)
	}
}

func commentLine(path, text string) string {
	switch filepath.Ext(path) {
	case ".go", ".js", ".ts", ".tsx", ".jsx", ".java", ".c", ".h", ".cpp", ".rs", ".swift", ".kt":
		return "// " + text + "\n"
	case ".md", ".html", ".xml":
		return "<!-- " + text + " -->\n"
	case ".json":
		return ""
	default:
		return "# " + text + "\n"
	}
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func collapseBlankLines(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		isBlank := strings.TrimSpace(l) == ""
		if isBlank && blank {
			continue
		}
		blank = isBlank
		out = append(out, l)
	}
	return ensureNewline(strings.TrimRight(strings.Join(out, "\n"), "\n \t"))
}
