package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// TaskSubmittedMsg is sent when the user submits a task.
type TaskSubmittedMsg struct {
	Task *models.Task
}

// TaskRejectedMsg is sent when the typed text is not a valid task.
type TaskRejectedMsg struct {
	Err error
}

// InputField is a text input component for entering tasks.
type InputField struct {
	input textinput.Model
	width int
}

// NewInputField creates a new, unfocused InputField.
func NewInputField() *InputField {
	ti := textinput.New()
	ti.Placeholder = "fix: tidy imports @main.go !high"
	ti.CharLimit = 500
	ti.Width = 60

	return &InputField{
		input: ti,
		width: 80,
	}
}

// SetWidth sets the width of the input field.
func (f *InputField) SetWidth(width int) {
	f.width = width
	f.input.Width = width - 4 // Account for prompt and padding
}

// Update handles messages for the input field.
func (f *InputField) Update(msg tea.Msg) (*InputField, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		text := f.input.Value()
		if strings.TrimSpace(text) == "" {
			return f, nil
		}
		f.input.Reset()
		task, err := ParseTask(text)
		return f, func() tea.Msg {
			if err != nil {
				return TaskRejectedMsg{Err: err}
			}
			return TaskSubmittedMsg{Task: task}
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the input field.
func (f *InputField) View() string {
	promptStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(f.width - 2)

	prompt := promptStyle.Render("> ")
	return boxStyle.Render(prompt + f.input.View())
}

// Focus sets focus on the input field.
func (f *InputField) Focus() tea.Cmd {
	return f.input.Focus()
}

// Blur removes focus from the input field.
func (f *InputField) Blur() {
	f.input.Blur()
}

// Focused reports whether the field has focus.
func (f *InputField) Focused() bool {
	return f.input.Focused()
}

// ParseTask turns a typed line into an ad-hoc task. The line is
// "<type>: <title>", where words starting with @ name artifacts and one
// of !critical, !high, !medium or !low sets the priority. Without a type
// prefix the task is an update.
func ParseTask(text string) (*models.Task, error) {
	text = strings.TrimSpace(text)
	typ := models.TaskTypeUpdate
	if head, rest, ok := strings.Cut(text, ":"); ok && models.TaskType(strings.ToLower(head)).Valid() {
		typ = models.TaskType(strings.ToLower(head))
		text = rest
	}

	task := &models.Task{
		ID:       "adhoc-" + strings.ToLower(ulid.Make().String()),
		Type:     typ,
		Priority: models.PriorityMedium,
		Metadata: models.TaskMetadata{Category: "adhoc", Difficulty: 3, Risk: models.RiskLow},
	}

	var title []string
	for _, word := range strings.Fields(text) {
		switch {
		case strings.HasPrefix(word, "@") && len(word) > 1:
			task.Metadata.Artifacts = append(task.Metadata.Artifacts, word[1:])
		case strings.HasPrefix(word, "!") && models.Priority(strings.ToLower(word[1:])).Valid():
			task.Priority = models.Priority(strings.ToLower(word[1:]))
		default:
			title = append(title, word)
		}
	}
	task.Title = strings.Join(title, " ")

	if task.Title == "" {
		return nil, errors.New("task has no title")
	}
	if len(task.Metadata.Artifacts) == 0 {
		return nil, errors.New("task names no artifact; add one with @path")
	}
	return task, nil
}
